package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// CaptureState is the terminal state a capture session ended in.
type CaptureState string

const (
	CaptureCompleted CaptureState = "completed"
	CaptureCancelled CaptureState = "cancelled"
	CaptureFailed    CaptureState = "failed"
)

// DefaultListLimit caps List when no positive limit is given.
const DefaultListLimit = 100

// Capture is the journal record of one finished capture session.
// Fingerprint and HashAlgorithm are empty unless State is CaptureCompleted.
type Capture struct {
	ID            string
	State         CaptureState
	Fingerprint   string
	HashAlgorithm string
	Error         string
	StartedAt     time.Time
	FinishedAt    time.Time
}

// Delivery records one attempt to hand a fingerprint to the external hook.
type Delivery struct {
	ID          int64
	CaptureID   string
	Success     bool
	Error       string
	AttemptedAt time.Time
}

// CaptureRepository provides operations on the capture journal.
type CaptureRepository struct {
	db *sql.DB
}

// Captures returns the capture repository for this store.
func (s *Store) Captures() *CaptureRepository {
	return &CaptureRepository{db: s.db}
}

// Create inserts c, assigning a new UUID when c.ID is empty.
func (r *CaptureRepository) Create(c *Capture) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.FinishedAt.IsZero() {
		c.FinishedAt = time.Now()
	}
	if c.StartedAt.IsZero() {
		c.StartedAt = c.FinishedAt
	}

	_, err := r.db.Exec(
		`INSERT INTO captures (id, state, fingerprint, hash_algorithm, error, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, string(c.State), c.Fingerprint, c.HashAlgorithm, c.Error, c.StartedAt, c.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("insert capture: %w", err)
	}

	return nil
}

// GetByID retrieves a capture by its ID.
func (r *CaptureRepository) GetByID(id string) (*Capture, error) {
	c := &Capture{}
	var state string

	err := r.db.QueryRow(
		`SELECT id, state, fingerprint, hash_algorithm, error, started_at, finished_at
		 FROM captures WHERE id = ?`,
		id,
	).Scan(&c.ID, &state, &c.Fingerprint, &c.HashAlgorithm, &c.Error, &c.StartedAt, &c.FinishedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	c.State = CaptureState(state)
	return c, nil
}

// List returns up to limit captures, most recent first.
func (r *CaptureRepository) List(limit int) ([]*Capture, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	rows, err := r.db.Query(
		`SELECT id, state, fingerprint, hash_algorithm, error, started_at, finished_at
		 FROM captures ORDER BY started_at DESC, id LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var captures []*Capture
	for rows.Next() {
		c := &Capture{}
		var state string

		err := rows.Scan(&c.ID, &state, &c.Fingerprint, &c.HashAlgorithm, &c.Error, &c.StartedAt, &c.FinishedAt)
		if err != nil {
			return nil, err
		}

		c.State = CaptureState(state)
		captures = append(captures, c)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return captures, nil
}

// Delete removes a capture and its delivery history.
func (r *CaptureRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM captures WHERE id = ?`, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// RecordDelivery appends a hook attempt for an existing capture.
func (r *CaptureRepository) RecordDelivery(d *Delivery) error {
	if d.AttemptedAt.IsZero() {
		d.AttemptedAt = time.Now()
	}

	result, err := r.db.Exec(
		`INSERT INTO deliveries (capture_id, success, error, attempted_at) VALUES (?, ?, ?, ?)`,
		d.CaptureID, d.Success, d.Error, d.AttemptedAt,
	)
	if err != nil {
		return fmt.Errorf("insert delivery: %w", err)
	}

	d.ID, err = result.LastInsertId()
	return err
}

// Deliveries returns the hook attempts for a capture, oldest first.
func (r *CaptureRepository) Deliveries(captureID string) ([]*Delivery, error) {
	rows, err := r.db.Query(
		`SELECT id, capture_id, success, error, attempted_at
		 FROM deliveries WHERE capture_id = ? ORDER BY id`,
		captureID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var deliveries []*Delivery
	for rows.Next() {
		d := &Delivery{}
		if err := rows.Scan(&d.ID, &d.CaptureID, &d.Success, &d.Error, &d.AttemptedAt); err != nil {
			return nil, err
		}
		deliveries = append(deliveries, d)
	}

	return deliveries, rows.Err()
}
