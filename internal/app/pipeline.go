package app

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/ayusman/palmprint/internal/fingerprint"
	"github.com/ayusman/palmprint/internal/hook"
	"github.com/ayusman/palmprint/internal/session"
	"github.com/ayusman/palmprint/internal/store"
)

// Outcome is what Capture reports back to its caller.
type Outcome struct {
	// ID identifies the capture in the journal and in hook deliveries.
	ID     string
	Result session.Result

	// CID is the fingerprint as a CIDv1, set only for completed sha256
	// captures.
	CID string

	// Journaled is false when there is no store or the insert failed.
	Journaled bool

	// Delivered reports a successful hook run; HookError holds the
	// failure otherwise. Both are zero when no hook is configured.
	Delivered bool
	HookError string
}

var journalStates = map[session.State]store.CaptureState{
	session.Completed: store.CaptureCompleted,
	session.Cancelled: store.CaptureCancelled,
	session.Failed:    store.CaptureFailed,
}

// finish runs the post-session steps in order: derive the CID, journal the
// capture, then deliver a completed fingerprint to the hook. Failures here
// are logged and recorded but never change the session's result.
func (a *App) finish(res session.Result, runErr error, started, finished time.Time) *Outcome {
	out := &Outcome{
		ID:     uuid.NewString(),
		Result: res,
	}

	alg, err := fingerprint.ParseAlgorithm(a.settings.HashAlgorithm)
	if err != nil {
		alg = fingerprint.SHA256
	}

	if res.State == session.Completed && alg == fingerprint.SHA256 {
		if cid, err := res.Fingerprint.CID(alg); err == nil {
			out.CID = cid
		} else {
			log.Printf("Error deriving CID for capture %s: %v", out.ID, err)
		}
	}

	a.journal(out, alg, runErr, started, finished)

	if res.State == session.Completed {
		a.deliver(out, alg, finished)
	}

	log.Printf("Capture %s finished: %s", out.ID, res.State)
	return out
}

func (a *App) journal(out *Outcome, alg fingerprint.Algorithm, runErr error, started, finished time.Time) {
	if a.store == nil {
		return
	}

	state, ok := journalStates[out.Result.State]
	if !ok {
		log.Printf("Not journaling capture %s in non-terminal state %s", out.ID, out.Result.State)
		return
	}

	c := &store.Capture{
		ID:         out.ID,
		State:      state,
		StartedAt:  started,
		FinishedAt: finished,
	}
	if state == store.CaptureCompleted {
		c.Fingerprint = out.Result.Fingerprint.String()
		c.HashAlgorithm = string(alg)
	}
	if runErr != nil {
		c.Error = runErr.Error()
	}

	if err := a.store.Captures().Create(c); err != nil {
		log.Printf("Error journaling capture %s: %v", out.ID, err)
		return
	}
	out.Journaled = true
}

func (a *App) deliver(out *Outcome, alg fingerprint.Algorithm, completed time.Time) {
	a.mu.Lock()
	h := a.hook
	a.mu.Unlock()
	if h == nil {
		return
	}

	// The fingerprint is already fixed, so delivery does not inherit the
	// session's cancellation.
	_, err := h.Deliver(context.Background(), hook.Delivery{
		SessionID:     out.ID,
		Fingerprint:   out.Result.Fingerprint.String(),
		HashAlgorithm: string(alg),
		CID:           out.CID,
		CompletedAt:   completed,
	})
	if err != nil {
		out.HookError = err.Error()
		log.Printf("Hook delivery for capture %s failed: %v", out.ID, err)
	} else {
		out.Delivered = true
	}

	if a.store == nil || !out.Journaled {
		return
	}
	d := &store.Delivery{
		CaptureID: out.ID,
		Success:   out.Delivered,
		Error:     out.HookError,
	}
	if err := a.store.Captures().RecordDelivery(d); err != nil {
		log.Printf("Error recording delivery for capture %s: %v", out.ID, err)
	}
}
