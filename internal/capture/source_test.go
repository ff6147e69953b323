package capture

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/palmprint/internal/detector"
)

func newTestSource(t *testing.T, loop bool) (*LandmarkSource, *MockCamera, *detector.MockDetector) {
	t.Helper()
	frame := gocv.NewMatWithSize(DefaultHeight, DefaultWidth, gocv.MatTypeCV8UC3)
	t.Cleanup(func() { frame.Close() })

	cam := NewMockCamera([]*gocv.Mat{&frame}, loop)
	cam.SetFPS(200)
	det := detector.NewMockDetector()
	return NewLandmarkSource(cam, det), cam, det
}

func TestLandmarkSource_Next(t *testing.T) {
	src, cam, det := newTestSource(t, true)
	palm := detector.OpenPalmLandmarks()
	det.SetHands([]detector.HandLandmarks{palm, detector.WidePalmLandmarks()})

	ctx := context.Background()
	if err := src.Open(ctx); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer src.Close()

	if !cam.IsOpen() {
		t.Fatal("camera should be open after Open()")
	}

	hand, err := src.Next(ctx)
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if hand == nil {
		t.Fatal("Next() returned no hand")
	}
	if hand.Points != palm.Points {
		t.Error("Next() should return the first detected hand")
	}
}

func TestLandmarkSource_NoHand(t *testing.T) {
	src, _, _ := newTestSource(t, true)

	ctx := context.Background()
	src.Open(ctx)
	defer src.Close()

	hand, err := src.Next(ctx)
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if hand != nil {
		t.Errorf("Next() = %+v, want nil", hand)
	}
}

func TestLandmarkSource_DropsNonFiniteHands(t *testing.T) {
	src, _, det := newTestSource(t, true)

	bad := detector.OpenPalmLandmarks()
	bad.Points[detector.IndexTip].X = math.NaN()
	good := detector.WidePalmLandmarks()
	det.SetHands([]detector.HandLandmarks{bad, good})

	ctx := context.Background()
	src.Open(ctx)
	defer src.Close()

	hand, err := src.Next(ctx)
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if hand == nil || hand.Points != good.Points {
		t.Error("Next() should skip the non-finite hand and return the next one")
	}

	det.SetHands([]detector.HandLandmarks{bad})
	hand, err = src.Next(ctx)
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if hand != nil {
		t.Error("Next() should report no hand when every hand is non-finite")
	}
}

func TestLandmarkSource_FailureBudget(t *testing.T) {
	src, _, det := newTestSource(t, true)
	src.MaxFailures = 3
	detectErr := errors.New("model crashed")
	det.SetError(detectErr)

	ctx := context.Background()
	src.Open(ctx)
	defer src.Close()

	_, err := src.Next(ctx)
	if !errors.Is(err, ErrTooManyFailures) {
		t.Fatalf("Next() error = %v, want ErrTooManyFailures", err)
	}
	if !errors.Is(err, detectErr) {
		t.Errorf("Next() error = %v, should wrap the last cause", err)
	}
	if got := det.Calls(); got != 3 {
		t.Errorf("detector called %d times, want 3", got)
	}
}

func TestLandmarkSource_ExhaustedCamera(t *testing.T) {
	src, _, det := newTestSource(t, false)

	ctx := context.Background()
	src.Open(ctx)
	defer src.Close()

	// The single frame is consumed; later reads fail with ErrNoMoreFrames.
	if _, err := src.Next(ctx); err != nil {
		t.Fatalf("first Next() error = %v", err)
	}
	_, err := src.Next(ctx)
	if !errors.Is(err, ErrNoMoreFrames) {
		t.Errorf("Next() error = %v, want wrapped ErrNoMoreFrames", err)
	}
	if det.Calls() != 1 {
		t.Errorf("detector called %d times, want 1", det.Calls())
	}
}

func TestLandmarkSource_Cancel(t *testing.T) {
	src, _, _ := newTestSource(t, true)
	src.camera.SetFPS(1)

	src.Open(context.Background())
	defer src.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := src.Next(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Next() error = %v, want DeadlineExceeded", err)
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Error("Next() should return promptly on cancellation")
	}
}

func TestLandmarkSource_OpenErrors(t *testing.T) {
	src, cam, _ := newTestSource(t, true)
	cam.SetOpenError(errors.New("device busy"))

	if err := src.Open(context.Background()); err == nil {
		t.Fatal("Open() should fail when the camera cannot open")
	}

	if _, err := src.Next(context.Background()); !errors.Is(err, ErrCameraNotOpen) {
		t.Errorf("Next() before a successful Open() error = %v, want ErrCameraNotOpen", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cam.SetOpenError(nil)
	if err := src.Open(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Open() with cancelled context error = %v, want Canceled", err)
	}
}

func TestLandmarkSource_CloseReleasesCamera(t *testing.T) {
	src, cam, det := newTestSource(t, true)

	src.Open(context.Background())
	if err := src.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := src.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}

	if cam.IsOpen() {
		t.Error("camera should be closed")
	}
	if cam.Closes() != 1 {
		t.Errorf("camera released %d times, want 1", cam.Closes())
	}
	if det.Closed() {
		t.Error("source must not close the shared detector")
	}
}

// stalledDetector blocks in Detect until release is closed, like a detector
// service that is still loading its model.
type stalledDetector struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
	hands   []detector.HandLandmarks
}

func newStalledDetector(hands ...detector.HandLandmarks) *stalledDetector {
	return &stalledDetector{
		entered: make(chan struct{}),
		release: make(chan struct{}),
		hands:   hands,
	}
}

func (d *stalledDetector) Detect(frame *gocv.Mat) ([]detector.HandLandmarks, error) {
	d.once.Do(func() { close(d.entered) })
	<-d.release
	return d.hands, nil
}

func (d *stalledDetector) Close() error { return nil }

func newStalledSource(t *testing.T, det *stalledDetector) (*LandmarkSource, *MockCamera) {
	t.Helper()
	frame := gocv.NewMatWithSize(DefaultHeight, DefaultWidth, gocv.MatTypeCV8UC3)
	t.Cleanup(func() { frame.Close() })

	cam := NewMockCamera([]*gocv.Mat{&frame}, true)
	cam.SetFPS(200)
	return NewLandmarkSource(cam, det), cam
}

func TestLandmarkSource_CancelWhileDetecting(t *testing.T) {
	det := newStalledDetector()
	src, cam := newStalledSource(t, det)
	var releaseOnce sync.Once
	release := func() { releaseOnce.Do(func() { close(det.release) }) }
	t.Cleanup(release)

	if err := src.Open(context.Background()); err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-det.entered
		cancel()
	}()

	done := make(chan error, 1)
	go func() {
		_, err := src.Next(ctx)
		done <- err
	}()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Next() error = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Next() did not return after cancellation while the detector was busy")
	}

	if err := src.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if cam.IsOpen() {
		t.Error("camera should be released while the detector is still busy")
	}
	if cam.Closes() != 1 {
		t.Errorf("camera released %d times, want 1", cam.Closes())
	}
}

func TestLandmarkSource_ResumesPendingFrame(t *testing.T) {
	palm := detector.OpenPalmLandmarks()
	det := newStalledDetector(palm)
	src, _ := newStalledSource(t, det)

	if err := src.Open(context.Background()); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer src.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-det.entered
		cancel()
	}()
	if _, err := src.Next(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Next() error = %v, want context.Canceled", err)
	}

	// The frame abandoned above is delivered rather than a fresh one.
	close(det.release)
	hand, err := src.Next(context.Background())
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if hand == nil || hand.Points != palm.Points {
		t.Errorf("Next() = %v, want the pending frame's hand", hand)
	}
}
