package session

import "fmt"

// State is a capture session's lifecycle position.
type State int

const (
	Idle State = iota
	Scanning
	Completed
	Cancelled
	Failed
)

var stateNames = map[State]string{
	Idle:      "idle",
	Scanning:  "scanning",
	Completed: "completed",
	Cancelled: "cancelled",
	Failed:    "failed",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Terminal reports whether no further transitions can follow s.
func (s State) Terminal() bool {
	return s == Completed || s == Cancelled || s == Failed
}

// MarshalText encodes the state by name so it reads well in JSON.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a state name produced by MarshalText.
func (s *State) UnmarshalText(text []byte) error {
	for state, name := range stateNames {
		if name == string(text) {
			*s = state
			return nil
		}
	}
	return fmt.Errorf("unknown session state %q", text)
}

// Status is what a presentation layer needs to draw feedback for one frame.
// It never carries the fingerprint.
type Status struct {
	State    State   `json:"state"`
	Aligned  bool    `json:"aligned"`
	Progress float64 `json:"progress"`
}
