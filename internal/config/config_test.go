package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/palmprint/internal/align"
	"github.com/ayusman/palmprint/internal/fingerprint"
	"github.com/ayusman/palmprint/internal/session"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 3000, cfg.SteadyDurationMs)
	assert.Equal(t, 480, cfg.FrameWidth)
	assert.Equal(t, 320, cfg.FrameHeight)
	assert.Equal(t, 4.0, cfg.AlignmentMarginPx)
	assert.Equal(t, 3, cfg.AlignmentToleranceCount)
	assert.Equal(t, 4, cfg.RoundDecimals)
	assert.Equal(t, 300, cfg.CompletionSettleMs)
	assert.Equal(t, "sha256", cfg.HashAlgorithm)
	assert.Equal(t, align.DefaultGuide(), cfg.Guide())
}

func TestDefault_MatchesSessionDefaults(t *testing.T) {
	got := Default().Session()
	want := session.DefaultConfig()

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Session() mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_YAML(t *testing.T) {
	path := writeFile(t, "palmprint.yaml", `
steady_duration_ms: 2000
alignment_tolerance_count: 5
hash_algorithm: sha3-256
hook_command: /usr/local/bin/notify
listen_addr: "127.0.0.1:9000"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 2000, cfg.SteadyDurationMs)
	assert.Equal(t, 5, cfg.AlignmentToleranceCount)
	assert.Equal(t, "sha3-256", cfg.HashAlgorithm)
	assert.Equal(t, "/usr/local/bin/notify", cfg.HookCommand)
	assert.Equal(t, "127.0.0.1:9000", cfg.ListenAddr)

	// Untouched keys keep defaults.
	assert.Equal(t, 480, cfg.FrameWidth)
	assert.Equal(t, 300, cfg.CompletionSettleMs)

	sc := cfg.Session()
	assert.Equal(t, 2*time.Second, sc.SteadyDuration)
	assert.Equal(t, fingerprint.SHA3_256, sc.Algorithm)
	assert.Equal(t, 5, sc.Evaluator.Tolerance)
}

func TestLoad_INI(t *testing.T) {
	path := writeFile(t, "palmprint.ini", `
[capture]
frame_width = 640
frame_height = 480
alignment_margin_px = 6.5
round_decimals = 3
completion_settle_ms = 0
camera_id = 2
hook_timeout_ms = 1500
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 640, cfg.FrameWidth)
	assert.Equal(t, 480, cfg.FrameHeight)
	assert.Equal(t, 6.5, cfg.AlignmentMarginPx)
	assert.Equal(t, 3, cfg.RoundDecimals)
	assert.Equal(t, 0, cfg.CompletionSettleMs)
	assert.Equal(t, 2, cfg.CameraID)
	assert.Equal(t, 1500*time.Millisecond, cfg.HookTimeout())

	assert.Equal(t, 3000, cfg.SteadyDurationMs)
	assert.Equal(t, "sha256", cfg.HashAlgorithm)

	ev := cfg.Evaluator()
	assert.Equal(t, align.Frame{Width: 640, Height: 480}, ev.Frame)
	assert.Equal(t, 6.5, ev.MarginPx)
}

func TestLoad_INIIgnoresOtherSections(t *testing.T) {
	path := writeFile(t, "palmprint.ini", `
[server]
frame_width = 1
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 480, cfg.FrameWidth)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		wantErr error
	}{
		{name: "unknown extension", file: "palmprint.toml", content: "a = 1", wantErr: ErrUnknownFormat},
		{name: "bad yaml", file: "bad.yaml", content: "steady_duration_ms: [", wantErr: nil},
		{name: "invalid value", file: "neg.yaml", content: "steady_duration_ms: -1", wantErr: nil},
		{name: "unknown algorithm", file: "alg.yml", content: "hash_algorithm: md5", wantErr: fingerprint.ErrUnsupportedAlgorithm},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tt.file, tt.content))
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "error %v should wrap %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero duration", func(c *Config) { c.SteadyDurationMs = 0 }},
		{"zero width", func(c *Config) { c.FrameWidth = 0 }},
		{"negative height", func(c *Config) { c.FrameHeight = -320 }},
		{"negative settle", func(c *Config) { c.CompletionSettleMs = -1 }},
		{"negative margin", func(c *Config) { c.AlignmentMarginPx = -1 }},
		{"negative tolerance", func(c *Config) { c.AlignmentToleranceCount = -1 }},
		{"tolerance above landmark count", func(c *Config) { c.AlignmentToleranceCount = 22 }},
		{"too many decimals", func(c *Config) { c.RoundDecimals = 11 }},
		{"negative decimals", func(c *Config) { c.RoundDecimals = -1 }},
		{"zero fps", func(c *Config) { c.FPS = 0 }},
		{"zero hook timeout", func(c *Config) { c.HookTimeoutMs = 0 }},
		{"guide off the right edge", func(c *Config) { c.GuideLeft = 0.5 }},
		{"guide with zero height", func(c *Config) { c.GuideHeight = 0 }},
		{"guide negative left", func(c *Config) { c.GuideLeft = -0.01 }},
		{"unknown algorithm", func(c *Config) { c.HashAlgorithm = "crc32" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidate_Boundaries(t *testing.T) {
	cfg := Default()
	cfg.AlignmentToleranceCount = 21
	cfg.RoundDecimals = 0
	cfg.CompletionSettleMs = 0
	cfg.AlignmentMarginPx = 0
	cfg.GuideLeft, cfg.GuideTop, cfg.GuideWidth, cfg.GuideHeight = 0, 0, 1, 1
	assert.NoError(t, cfg.Validate())
}

func TestResolveDBPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("no home directory: %v", err)
	}

	cfg := Default()
	got, err := cfg.ResolveDBPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".palmprint", "palmprint.db"), got)

	cfg.DBPath = "/var/lib/palmprint.db"
	got, err = cfg.ResolveDBPath()
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/palmprint.db", got)

	cfg.DBPath = "~other/palmprint.db"
	got, err = cfg.ResolveDBPath()
	require.NoError(t, err)
	assert.Equal(t, "~other/palmprint.db", got)
}
