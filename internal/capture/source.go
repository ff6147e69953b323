package capture

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/ayusman/palmprint/internal/detector"
)

// DefaultMaxFailures is how many consecutive frames may fail to read or
// detect before the source gives up.
const DefaultMaxFailures = 5

// ErrTooManyFailures is returned by Next when the failure budget is spent.
var ErrTooManyFailures = errors.New("too many consecutive frame failures")

// LandmarkSource paces a camera at its frame rate and runs each frame through
// a hand detector. It yields at most one hand per frame.
//
// The detector is borrowed: Close releases the camera but leaves the detector
// running so it can serve the next session.
type LandmarkSource struct {
	camera   Camera
	detector detector.Detector

	// MaxFailures bounds consecutive read or detect errors. Zero means
	// DefaultMaxFailures.
	MaxFailures int

	mu       sync.Mutex
	ticker   *time.Ticker
	failures int

	// pending holds the result of a frame still being processed when the
	// last Next call was cancelled.
	pending chan frameResult
}

type frameResult struct {
	hand *detector.HandLandmarks
	err  error
}

// NewLandmarkSource returns a source reading from cam and detecting with det.
func NewLandmarkSource(cam Camera, det detector.Detector) *LandmarkSource {
	return &LandmarkSource{
		camera:   cam,
		detector: det,
	}
}

// Open starts the camera and the frame ticker.
func (s *LandmarkSource) Open(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker != nil {
		return nil
	}
	if err := s.camera.Open(); err != nil {
		return fmt.Errorf("open camera: %w", err)
	}

	fps := s.camera.FPS()
	if fps <= 0 {
		fps = DefaultFPS
	}
	s.ticker = time.NewTicker(time.Second / time.Duration(fps))
	s.failures = 0
	return nil
}

// Next blocks until the next frame has been processed or ctx is done.
// A nil hand with a nil error means the frame held no usable hand. Hands
// with non-finite coordinates are discarded.
//
// Cancellation is observed even while the detector is busy. The abandoned
// frame keeps running in the background and its result is returned by the
// following Next call instead of reading a new frame.
func (s *LandmarkSource) Next(ctx context.Context) (*detector.HandLandmarks, error) {
	s.mu.Lock()
	ticker := s.ticker
	s.mu.Unlock()
	if ticker == nil {
		return nil, ErrCameraNotOpen
	}

	limit := s.MaxFailures
	if limit <= 0 {
		limit = DefaultMaxFailures
	}

	for {
		s.mu.Lock()
		pending := s.pending
		s.mu.Unlock()

		if pending == nil {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-ticker.C:
			}
			pending = s.start()
		}

		var r frameResult
		select {
		case <-ctx.Done():
			s.mu.Lock()
			s.pending = pending
			s.mu.Unlock()
			return nil, ctx.Err()
		case r = <-pending:
		}

		s.mu.Lock()
		s.pending = nil
		s.mu.Unlock()

		if r.err == nil {
			s.failures = 0
			return r.hand, nil
		}

		s.failures++
		log.Printf("Frame failed (%d/%d): %v", s.failures, limit, r.err)
		if s.failures >= limit {
			return nil, fmt.Errorf("%w: %w", ErrTooManyFailures, r.err)
		}
	}
}

// start processes one frame in the background.
func (s *LandmarkSource) start() chan frameResult {
	done := make(chan frameResult, 1)
	go func() {
		hand, err := s.process()
		done <- frameResult{hand: hand, err: err}
	}()
	return done
}

func (s *LandmarkSource) process() (*detector.HandLandmarks, error) {
	frame, err := s.camera.ReadFrame()
	if err != nil {
		return nil, err
	}
	defer frame.Close()

	hands, err := s.detector.Detect(frame)
	if err != nil {
		return nil, fmt.Errorf("detect: %w", err)
	}

	usable := make([]detector.HandLandmarks, 0, len(hands))
	for _, h := range hands {
		if h.Finite() {
			usable = append(usable, h)
		}
	}
	return detector.First(usable), nil
}

// Close stops the ticker and releases the camera. It is safe to call more
// than once. A frame still in the detector is dropped; its Mat is freed once
// the detector returns.
func (s *LandmarkSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pending = nil
	if s.ticker != nil {
		s.ticker.Stop()
		s.ticker = nil
	}
	return s.camera.Close()
}
