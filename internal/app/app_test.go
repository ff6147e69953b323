package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/palmprint/internal/config"
	"github.com/ayusman/palmprint/internal/detector"
	"github.com/ayusman/palmprint/internal/hook"
	"github.com/ayusman/palmprint/internal/session"
	"github.com/ayusman/palmprint/internal/steady"
	"github.com/ayusman/palmprint/internal/store"
)

const (
	openPalmSHA256 = "a229cf60b0cc6c44e5d6ac3796e3e8a2a61ed7fc267933f6821a57c944d8f6ae"
	openPalmCID    = "bafkreifcfhhwbmgmnrcolvvmg6loh2fcuypnp7bgpez7naq2k7eujwhwvy"
)

// heldSource shows the same hand on every frame, advancing a manual clock by
// 100ms between frames. A nil hand means an empty scene.
type heldSource struct {
	clock   *steady.ManualClock
	hand    *detector.HandLandmarks
	openErr error

	// block, when set, parks Next until ctx is done.
	block chan struct{}

	mu     sync.Mutex
	frames int
	closed bool
}

func (s *heldSource) Open(ctx context.Context) error { return s.openErr }

func (s *heldSource) Next(ctx context.Context) (*detector.HandLandmarks, error) {
	if s.block != nil {
		close(s.block)
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frames > 0 {
		s.clock.Advance(100 * time.Millisecond)
	}
	s.frames++
	return s.hand, nil
}

func (s *heldSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func newTestApp(t *testing.T, settings *config.Config, src *heldSource) (*App, *store.Store) {
	t.Helper()
	st, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	a := New(Config{Settings: settings, Store: st})
	a.SetDetector(detector.NewMockDetector())
	a.SetClock(src.clock)
	a.SetSource(func() session.Source { return src })
	t.Cleanup(func() { a.Close() })
	return a, st
}

func openPalmSource() *heldSource {
	palm := detector.OpenPalmLandmarks()
	return &heldSource{
		clock: steady.NewManualClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)),
		hand:  &palm,
	}
}

func writeHook(t *testing.T, content string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("skipping test on Windows")
	}
	path := filepath.Join(t.TempDir(), "hook.sh")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o755))
	return path
}

func TestApp_CaptureCompletesAndJournals(t *testing.T) {
	src := openPalmSource()
	a, st := newTestApp(t, nil, src)

	var progress []float64
	out, err := a.Capture(context.Background(), func(s session.Status) {
		progress = append(progress, s.Progress)
	})
	require.NoError(t, err)

	assert.Equal(t, session.Completed, out.Result.State)
	assert.Equal(t, openPalmSHA256, out.Result.Fingerprint.String())
	assert.Equal(t, openPalmCID, out.CID)
	assert.True(t, out.Journaled)
	assert.False(t, out.Delivered, "no hook configured")
	assert.True(t, src.closed)
	assert.False(t, a.Running())
	assert.NotEmpty(t, progress)

	c, err := st.Captures().GetByID(out.ID)
	require.NoError(t, err)
	assert.Equal(t, store.CaptureCompleted, c.State)
	assert.Equal(t, openPalmSHA256, c.Fingerprint)
	assert.Equal(t, "sha256", c.HashAlgorithm)
	assert.Equal(t, 3300*time.Millisecond, c.FinishedAt.Sub(c.StartedAt))
}

func TestApp_CaptureCancelled(t *testing.T) {
	src := openPalmSource()
	src.hand = nil
	src.block = make(chan struct{})
	a, st := newTestApp(t, nil, src)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-src.block
		cancel()
	}()

	out, err := a.Capture(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, session.Cancelled, out.Result.State)
	assert.Empty(t, out.Result.Fingerprint)
	assert.Empty(t, out.CID)

	c, err := st.Captures().GetByID(out.ID)
	require.NoError(t, err)
	assert.Equal(t, store.CaptureCancelled, c.State)
	assert.Empty(t, c.Fingerprint)
}

func TestApp_CaptureAcquisitionFailure(t *testing.T) {
	src := openPalmSource()
	src.openErr = errors.New("device unavailable")
	a, st := newTestApp(t, nil, src)

	out, err := a.Capture(context.Background(), nil)
	require.ErrorIs(t, err, session.ErrAcquisition)
	assert.Equal(t, session.Failed, out.Result.State)
	assert.True(t, src.closed)

	c, err := st.Captures().GetByID(out.ID)
	require.NoError(t, err)
	assert.Equal(t, store.CaptureFailed, c.State)
	assert.Contains(t, c.Error, "device unavailable")
}

func TestApp_CaptureBusy(t *testing.T) {
	src := openPalmSource()
	src.block = make(chan struct{})
	a, _ := newTestApp(t, nil, src)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		_, err := a.Capture(ctx, nil)
		done <- err
	}()

	<-src.block
	assert.True(t, a.Running())

	_, err := a.Capture(context.Background(), nil)
	assert.ErrorIs(t, err, ErrBusy)

	cancel()
	require.NoError(t, <-done)
	assert.False(t, a.Running())
}

func TestApp_HookDelivery(t *testing.T) {
	script := writeHook(t, `#!/bin/sh
INPUT=$(cat)
echo "{\"success\":true,\"data\":$INPUT}"
`)

	settings := config.Default()
	settings.HookCommand = script
	src := openPalmSource()
	a, st := newTestApp(t, settings, src)

	out, err := a.Capture(context.Background(), nil)
	require.NoError(t, err)
	assert.True(t, out.Delivered)
	assert.Empty(t, out.HookError)

	deliveries, err := st.Captures().Deliveries(out.ID)
	require.NoError(t, err)
	require.Len(t, deliveries, 1)
	assert.True(t, deliveries[0].Success)
}

func TestApp_HookFailureDoesNotChangeOutcome(t *testing.T) {
	script := writeHook(t, `#!/bin/sh
echo '{"success":false,"error":"unknown palm"}'
`)

	src := openPalmSource()
	a, st := newTestApp(t, nil, src)
	a.SetHook(hook.NewExecutor(script, time.Second))

	out, err := a.Capture(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, session.Completed, out.Result.State)
	assert.False(t, out.Delivered)
	assert.Contains(t, out.HookError, "unknown palm")

	deliveries, err := st.Captures().Deliveries(out.ID)
	require.NoError(t, err)
	require.Len(t, deliveries, 1)
	assert.False(t, deliveries[0].Success)
	assert.Contains(t, deliveries[0].Error, "unknown palm")
}

func TestApp_SHA3Settings(t *testing.T) {
	settings := config.Default()
	settings.HashAlgorithm = "sha3-256"
	src := openPalmSource()
	a, st := newTestApp(t, settings, src)

	out, err := a.Capture(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "647632957d09d7bb7aee4e1611437b292c16643f9e416736d688737943fa1f2d", out.Result.Fingerprint.String())
	assert.Empty(t, out.CID, "only sha256 fingerprints have a CID")

	c, err := st.Captures().GetByID(out.ID)
	require.NoError(t, err)
	assert.Equal(t, "sha3-256", c.HashAlgorithm)
}

func TestApp_NoStore(t *testing.T) {
	src := openPalmSource()
	a := New(Config{})
	a.SetDetector(detector.NewMockDetector())
	a.SetClock(src.clock)
	a.SetSource(func() session.Source { return src })

	out, err := a.Capture(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, session.Completed, out.Result.State)
	assert.False(t, out.Journaled)
	assert.Nil(t, a.Store())
	assert.NotNil(t, a.Settings())
}

func TestApp_CloseReleasesDetector(t *testing.T) {
	a := New(Config{})
	det := detector.NewMockDetector()
	a.SetDetector(det)

	require.NoError(t, a.Close())
	assert.True(t, det.Closed())
	assert.Same(t, det, a.Detector())
}
