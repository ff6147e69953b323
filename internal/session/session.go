// Package session runs one palm capture attempt from first frame to
// fingerprint.
//
// A Session pulls frames from a Source, checks each against the guide region,
// times the dwell, and once the hand has been held for the full duration
// canonicalizes that frame's landmarks and hashes them. Exactly one
// fingerprint is produced per completed session.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ayusman/palmprint/internal/align"
	"github.com/ayusman/palmprint/internal/detector"
	"github.com/ayusman/palmprint/internal/fingerprint"
	"github.com/ayusman/palmprint/internal/steady"
)

// DefaultSettleDelay is the pause between completion and returning the
// fingerprint, giving a UI time to acknowledge.
const DefaultSettleDelay = 300 * time.Millisecond

// Source delivers one frame's worth of landmarks per Next call.
//
// Next blocks until a frame is available or ctx is done. A nil hand with a
// nil error means no hand was detected in that frame. Once Run starts
// scanning, Close is called exactly once on every exit path, including when
// Open fails.
type Source interface {
	Open(ctx context.Context) error
	Next(ctx context.Context) (*detector.HandLandmarks, error)
	Close() error
}

// Config holds the per-session capture parameters.
type Config struct {
	Evaluator      align.Evaluator
	SteadyDuration time.Duration
	SettleDelay    time.Duration
	Decimals       int
	Algorithm      fingerprint.Algorithm

	// Clock drives dwell timing and the settle wait. Nil uses steady.SystemClock.
	Clock steady.Clock
}

// DefaultConfig returns the reference capture parameters.
func DefaultConfig() Config {
	return Config{
		Evaluator:      align.NewEvaluator(),
		SteadyDuration: steady.DefaultDuration,
		SettleDelay:    DefaultSettleDelay,
		Decimals:       fingerprint.DefaultDecimals,
		Algorithm:      fingerprint.SHA256,
	}
}

// Result is the outcome of Run. Fingerprint is set only when State is Completed.
type Result struct {
	State       State
	Fingerprint fingerprint.Fingerprint
}

// Session is a single capture attempt. It owns its steadiness state
// exclusively; nothing is shared between sessions.
type Session struct {
	config Config
	source Source

	// OnStatus, when set, is called from the Run goroutine after every
	// processed frame and on every state transition. It must not block.
	OnStatus func(Status)

	mu    sync.Mutex
	state State
	ran   bool
}

// New returns an Idle session that will read from source.
func New(source Source, config Config) *Session {
	if config.Clock == nil {
		config.Clock = steady.SystemClock{}
	}
	return &Session{
		config: config,
		source: source,
		state:  Idle,
	}
}

// State returns the session's current state. Safe to call from any goroutine.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Run drives the session to a terminal state.
//
// Cancelling ctx while scanning ends in Cancelled with a nil error and no
// fingerprint. A source that cannot open or stops delivering ends in Failed
// with an *AcquisitionError. Once the fingerprint is fixed, cancellation
// during the settle delay no longer discards it.
func (s *Session) Run(ctx context.Context) (Result, error) {
	s.mu.Lock()
	if s.ran {
		state := s.state
		s.mu.Unlock()
		return Result{State: state}, ErrSessionUsed
	}
	s.ran = true
	s.mu.Unlock()

	alg, err := fingerprint.ParseAlgorithm(string(s.config.Algorithm))
	if err != nil {
		s.transition(Failed, false, 0)
		return Result{State: Failed}, fmt.Errorf("session: %w", err)
	}

	s.transition(Scanning, false, 0)
	defer func() {
		if err := s.source.Close(); err != nil {
			Logf("session: close source: %v", err)
		}
	}()

	if err := s.source.Open(ctx); err != nil {
		if ctx.Err() != nil {
			return s.cancelled(), nil
		}
		return s.failed("open", err)
	}

	tracker := steady.NewTracker(s.config.SteadyDuration, s.config.Clock)
	for {
		if ctx.Err() != nil {
			return s.cancelled(), nil
		}

		hand, err := s.source.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return s.cancelled(), nil
			}
			return s.failed("read", err)
		}
		if hand != nil && !hand.Finite() {
			hand = nil
		}

		aligned := s.config.Evaluator.Aligned(hand)
		held, before := tracker.Accumulating(), tracker.Progress()
		progress := tracker.Update(aligned)
		if held && !tracker.Accumulating() {
			Logf("session: dwell interrupted at %.0f%%", before*100)
		}
		s.notify(Status{State: Scanning, Aligned: aligned, Progress: progress})

		if !tracker.Complete() {
			continue
		}

		fp, err := fingerprint.Sum(alg, fingerprint.Canonicalize(hand.Points, s.config.Decimals))
		if err != nil {
			s.transition(Failed, aligned, progress)
			return Result{State: Failed}, fmt.Errorf("session: %w", err)
		}

		s.transition(Completed, true, 1)
		Logf("session: completed")
		s.settle(ctx)
		return Result{State: Completed, Fingerprint: fp}, nil
	}
}

func (s *Session) settle(ctx context.Context) {
	if s.config.SettleDelay <= 0 {
		return
	}
	select {
	case <-s.config.Clock.After(s.config.SettleDelay):
	case <-ctx.Done():
	}
}

func (s *Session) cancelled() Result {
	s.transition(Cancelled, false, 0)
	Logf("session: cancelled")
	return Result{State: Cancelled}
}

func (s *Session) failed(op string, cause error) (Result, error) {
	s.transition(Failed, false, 0)
	err := &AcquisitionError{Op: op, Cause: cause}
	Logf("session: %v", err)
	return Result{State: Failed}, err
}

func (s *Session) transition(to State, aligned bool, progress float64) {
	s.mu.Lock()
	s.state = to
	s.mu.Unlock()
	s.notify(Status{State: to, Aligned: aligned, Progress: progress})
}

func (s *Session) notify(st Status) {
	if s.OnStatus != nil {
		s.OnStatus(st)
	}
}
