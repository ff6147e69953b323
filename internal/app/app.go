// Package app wires the camera, detector, capture session, journal and hook
// into the palmprint application.
package app

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/ayusman/palmprint/internal/capture"
	"github.com/ayusman/palmprint/internal/config"
	"github.com/ayusman/palmprint/internal/detector"
	"github.com/ayusman/palmprint/internal/hook"
	"github.com/ayusman/palmprint/internal/session"
	"github.com/ayusman/palmprint/internal/steady"
	"github.com/ayusman/palmprint/internal/store"
)

// ErrBusy is returned by Capture while another capture holds the camera.
var ErrBusy = errors.New("a capture session is already running")

// Config holds configuration options for the application.
type Config struct {
	Settings *config.Config
	Store    *store.Store
}

// App runs capture sessions one at a time against a single camera.
type App struct {
	settings  *config.Config
	store     *store.Store
	hook      *hook.Executor
	camera    capture.Camera
	detector  detector.Detector
	newSource func() session.Source
	clock     steady.Clock
	mu        sync.Mutex
	running   bool
}

// New creates a new App. A nil Settings uses config.Default. The hook is
// enabled when Settings.HookCommand is set.
func New(cfg Config) *App {
	settings := cfg.Settings
	if settings == nil {
		settings = config.Default()
	}

	camera := capture.NewCamera(settings.CameraID, settings.FrameWidth, settings.FrameHeight)
	camera.SetFPS(settings.FPS)

	a := &App{
		settings: settings,
		store:    cfg.Store,
		camera:   camera,
		clock:    steady.SystemClock{},
	}

	if settings.HookCommand != "" {
		a.hook = hook.NewExecutor(settings.HookCommand, settings.HookTimeout())
	}

	// Try MediaPipe first, fall back to mock detector
	if mp, err := detector.NewMediaPipeDetector(detector.DefaultConfig()); err == nil {
		a.detector = mp
		log.Println("Using MediaPipe hand detection")
	} else {
		log.Printf("MediaPipe not available (%v), using mock detector", err)
		a.detector = detector.NewMockDetector()
	}

	return a
}

// SetDetector sets the hand detector used by camera-backed sessions.
func (a *App) SetDetector(d detector.Detector) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.detector = d
}

// Detector returns the hand detector.
func (a *App) Detector() detector.Detector {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.detector
}

// SetSource replaces the camera-backed landmark source. Each Capture calls
// factory once for a fresh source.
func (a *App) SetSource(factory func() session.Source) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.newSource = factory
}

// SetClock sets the clock sessions time their dwell against.
func (a *App) SetClock(c steady.Clock) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.clock = c
}

// SetHook replaces the configured hook executor. Nil disables delivery.
func (a *App) SetHook(h *hook.Executor) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.hook = h
}

// Settings returns the application configuration.
func (a *App) Settings() *config.Config {
	return a.settings
}

// Store returns the capture journal, or nil when journaling is off.
func (a *App) Store() *store.Store {
	return a.store
}

// Camera returns the camera instance.
func (a *App) Camera() capture.Camera {
	return a.camera
}

// Running reports whether a capture is in progress.
func (a *App) Running() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.running
}

// Capture runs one session to completion, journals it and, on success,
// hands the fingerprint to the hook. onStatus may be nil.
//
// The returned error is non-nil only for acquisition failures, a busy
// camera, or an invalid configuration. Cancellation is reported through
// Outcome.Result.State.
func (a *App) Capture(ctx context.Context, onStatus func(session.Status)) (*Outcome, error) {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return nil, ErrBusy
	}
	a.running = true
	src := a.sourceLocked()
	clock := a.clock
	a.mu.Unlock()

	defer func() {
		a.mu.Lock()
		a.running = false
		a.mu.Unlock()
	}()

	sc := a.settings.Session()
	sc.Clock = clock

	s := session.New(src, sc)
	s.OnStatus = onStatus

	started := clock.Now()
	res, err := s.Run(ctx)
	return a.finish(res, err, started, clock.Now()), err
}

func (a *App) sourceLocked() session.Source {
	if a.newSource != nil {
		return a.newSource()
	}
	return capture.NewLandmarkSource(a.camera, a.detector)
}

// Close releases the detector.
func (a *App) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.detector == nil {
		return nil
	}
	if err := a.detector.Close(); err != nil {
		log.Printf("Error closing detector: %v", err)
		return err
	}
	return nil
}
