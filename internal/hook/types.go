// Package hook hands completed fingerprints to an external program.
//
// The program receives one JSON Delivery on stdin and must answer with a JSON
// Response on stdout before the timeout.
package hook

import (
	"encoding/json"
	"time"
)

// Delivery is the payload written to the hook's stdin.
type Delivery struct {
	SessionID     string    `json:"session_id"`
	Fingerprint   string    `json:"fingerprint"`
	HashAlgorithm string    `json:"hash_algorithm"`
	CID           string    `json:"cid,omitempty"`
	CompletedAt   time.Time `json:"completed_at"`
}

// Response is what the hook prints on stdout.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}
