package session

import (
	"errors"
	"log"
)

var (
	// ErrAcquisition matches every *AcquisitionError via errors.Is.
	ErrAcquisition = errors.New("acquisition failed")

	// ErrSessionUsed is returned when Run is called on a session that has
	// already run. Each attempt needs a fresh Session.
	ErrSessionUsed = errors.New("session already run")
)

// AcquisitionError reports that the frame source could not be started or
// stopped delivering frames. It is the only error Run surfaces for a
// session that reached Scanning.
type AcquisitionError struct {
	Op    string // "open" or "read"
	Cause error
}

func (e *AcquisitionError) Error() string {
	return "acquisition failed: " + e.Op + ": " + e.Cause.Error()
}

func (e *AcquisitionError) Unwrap() error { return e.Cause }

func (e *AcquisitionError) Is(target error) bool { return target == ErrAcquisition }

// Logf is the package-level diagnostic logger. It defaults to log.Printf and
// may be replaced with SetLogger.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil mutes it.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}
