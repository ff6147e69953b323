// Package config loads palmprint settings from YAML or INI files.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/ini.v1"
	"gopkg.in/yaml.v3"

	"github.com/ayusman/palmprint/internal/align"
	"github.com/ayusman/palmprint/internal/detector"
	"github.com/ayusman/palmprint/internal/fingerprint"
	"github.com/ayusman/palmprint/internal/session"
)

// INISection is the section INI files keep their keys under.
const INISection = "capture"

const maxFileSize = 1 << 20

// ErrUnknownFormat is returned for config files that are neither YAML nor INI.
var ErrUnknownFormat = errors.New("unknown config format")

// Config is the full set of recognized options.
type Config struct {
	SteadyDurationMs int `yaml:"steady_duration_ms"`
	FrameWidth       int `yaml:"frame_width"`
	FrameHeight      int `yaml:"frame_height"`

	GuideLeft   float64 `yaml:"guide_left"`
	GuideTop    float64 `yaml:"guide_top"`
	GuideWidth  float64 `yaml:"guide_width"`
	GuideHeight float64 `yaml:"guide_height"`

	AlignmentMarginPx       float64 `yaml:"alignment_margin_px"`
	AlignmentToleranceCount int     `yaml:"alignment_tolerance_count"`
	RoundDecimals           int     `yaml:"round_decimals"`
	CompletionSettleMs      int     `yaml:"completion_settle_ms"`
	HashAlgorithm           string  `yaml:"hash_algorithm"`

	CameraID int `yaml:"camera_id"`
	FPS      int `yaml:"fps"`

	DBPath        string `yaml:"db_path"`
	HookCommand   string `yaml:"hook_command"`
	HookTimeoutMs int    `yaml:"hook_timeout_ms"`
	ListenAddr    string `yaml:"listen_addr"`
}

// Default returns the reference configuration.
func Default() *Config {
	guide := align.DefaultGuide()
	return &Config{
		SteadyDurationMs:        3000,
		FrameWidth:              align.DefaultFrameWidth,
		FrameHeight:             align.DefaultFrameHeight,
		GuideLeft:               guide.Left,
		GuideTop:                guide.Top,
		GuideWidth:              guide.Width,
		GuideHeight:             guide.Height,
		AlignmentMarginPx:       align.DefaultMarginPx,
		AlignmentToleranceCount: align.DefaultTolerance,
		RoundDecimals:           fingerprint.DefaultDecimals,
		CompletionSettleMs:      300,
		HashAlgorithm:           string(fingerprint.SHA256),
		CameraID:                0,
		FPS:                     15,
		DBPath:                  filepath.Join("~", ".palmprint", "palmprint.db"),
		HookTimeoutMs:           5000,
		ListenAddr:              ":8080",
	}
}

// Load reads path, choosing the parser by extension (.yaml, .yml or .ini).
// Keys missing from the file keep their defaults. The result is validated.
func Load(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)

	info, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if info.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxFileSize)
	}

	cfg := Default()
	switch ext := strings.ToLower(filepath.Ext(cleanPath)); ext {
	case ".yaml", ".yml":
		err = cfg.loadYAML(cleanPath)
	case ".ini":
		err = cfg.loadINI(cleanPath)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, ext)
	}
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config YAML: %w", err)
	}
	return nil
}

func (c *Config) loadINI(path string) error {
	file, err := ini.Load(path)
	if err != nil {
		return fmt.Errorf("failed to load config file: %w", err)
	}

	section := file.Section(INISection)

	c.SteadyDurationMs = section.Key("steady_duration_ms").MustInt(c.SteadyDurationMs)
	c.FrameWidth = section.Key("frame_width").MustInt(c.FrameWidth)
	c.FrameHeight = section.Key("frame_height").MustInt(c.FrameHeight)

	c.GuideLeft = section.Key("guide_left").MustFloat64(c.GuideLeft)
	c.GuideTop = section.Key("guide_top").MustFloat64(c.GuideTop)
	c.GuideWidth = section.Key("guide_width").MustFloat64(c.GuideWidth)
	c.GuideHeight = section.Key("guide_height").MustFloat64(c.GuideHeight)

	c.AlignmentMarginPx = section.Key("alignment_margin_px").MustFloat64(c.AlignmentMarginPx)
	c.AlignmentToleranceCount = section.Key("alignment_tolerance_count").MustInt(c.AlignmentToleranceCount)
	c.RoundDecimals = section.Key("round_decimals").MustInt(c.RoundDecimals)
	c.CompletionSettleMs = section.Key("completion_settle_ms").MustInt(c.CompletionSettleMs)
	c.HashAlgorithm = section.Key("hash_algorithm").MustString(c.HashAlgorithm)

	c.CameraID = section.Key("camera_id").MustInt(c.CameraID)
	c.FPS = section.Key("fps").MustInt(c.FPS)

	c.DBPath = section.Key("db_path").MustString(c.DBPath)
	c.HookCommand = section.Key("hook_command").MustString(c.HookCommand)
	c.HookTimeoutMs = section.Key("hook_timeout_ms").MustInt(c.HookTimeoutMs)
	c.ListenAddr = section.Key("listen_addr").MustString(c.ListenAddr)

	return nil
}

// Validate reports the first out-of-range option.
func (c *Config) Validate() error {
	switch {
	case c.SteadyDurationMs <= 0:
		return fmt.Errorf("steady_duration_ms must be positive, got %d", c.SteadyDurationMs)
	case c.FrameWidth <= 0 || c.FrameHeight <= 0:
		return fmt.Errorf("frame size must be positive, got %dx%d", c.FrameWidth, c.FrameHeight)
	case c.CompletionSettleMs < 0:
		return fmt.Errorf("completion_settle_ms must not be negative, got %d", c.CompletionSettleMs)
	case c.AlignmentMarginPx < 0:
		return fmt.Errorf("alignment_margin_px must not be negative, got %g", c.AlignmentMarginPx)
	case c.AlignmentToleranceCount < 0 || c.AlignmentToleranceCount > detector.NumLandmarks:
		return fmt.Errorf("alignment_tolerance_count must be in [0,%d], got %d",
			detector.NumLandmarks, c.AlignmentToleranceCount)
	case c.RoundDecimals < 0 || c.RoundDecimals > 10:
		return fmt.Errorf("round_decimals must be in [0,10], got %d", c.RoundDecimals)
	case c.FPS <= 0:
		return fmt.Errorf("fps must be positive, got %d", c.FPS)
	case c.HookTimeoutMs <= 0:
		return fmt.Errorf("hook_timeout_ms must be positive, got %d", c.HookTimeoutMs)
	}

	if err := validateGuide(c.Guide()); err != nil {
		return err
	}
	if _, err := fingerprint.ParseAlgorithm(c.HashAlgorithm); err != nil {
		return err
	}
	return nil
}

func validateGuide(g align.GuideRegion) error {
	if g.Width <= 0 || g.Height <= 0 {
		return fmt.Errorf("guide region must have positive size, got %gx%g", g.Width, g.Height)
	}
	if g.Left < 0 || g.Top < 0 || g.Left+g.Width > 1 || g.Top+g.Height > 1 {
		return fmt.Errorf("guide region must lie within the frame, got %+v", g)
	}
	return nil
}

// Guide returns the configured guide region.
func (c *Config) Guide() align.GuideRegion {
	return align.GuideRegion{
		Left:   c.GuideLeft,
		Top:    c.GuideTop,
		Width:  c.GuideWidth,
		Height: c.GuideHeight,
	}
}

// Evaluator returns the alignment evaluator for the configured geometry.
func (c *Config) Evaluator() align.Evaluator {
	return align.Evaluator{
		Frame:     align.Frame{Width: c.FrameWidth, Height: c.FrameHeight},
		Guide:     c.Guide(),
		MarginPx:  c.AlignmentMarginPx,
		Tolerance: c.AlignmentToleranceCount,
	}
}

// Session returns the per-session capture parameters. The clock is left nil
// so sessions use the system clock.
func (c *Config) Session() session.Config {
	return session.Config{
		Evaluator:      c.Evaluator(),
		SteadyDuration: time.Duration(c.SteadyDurationMs) * time.Millisecond,
		SettleDelay:    time.Duration(c.CompletionSettleMs) * time.Millisecond,
		Decimals:       c.RoundDecimals,
		Algorithm:      fingerprint.Algorithm(c.HashAlgorithm),
	}
}

// HookTimeout returns the hook execution timeout.
func (c *Config) HookTimeout() time.Duration {
	return time.Duration(c.HookTimeoutMs) * time.Millisecond
}

// ResolveDBPath expands a leading "~" in DBPath to the user's home directory.
func (c *Config) ResolveDBPath() (string, error) {
	if c.DBPath != "~" && !strings.HasPrefix(c.DBPath, "~/") && !strings.HasPrefix(c.DBPath, "~"+string(filepath.Separator)) {
		return c.DBPath, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, c.DBPath[1:]), nil
}
