// Package api provides HTTP API handlers for the palmprint capture journal.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ayusman/palmprint/internal/fingerprint"
	"github.com/ayusman/palmprint/internal/store"
)

// CaptureHandler serves the capture journal. Full fingerprints never leave
// the server; responses carry only a short prefix for identification.
type CaptureHandler struct {
	store *store.Store
}

// NewCaptureHandler creates a new CaptureHandler with the given store.
func NewCaptureHandler(s *store.Store) *CaptureHandler {
	return &CaptureHandler{store: s}
}

// ServeHTTP routes /api/captures and /api/captures/{id}.
func (h *CaptureHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/captures")
	path = strings.TrimPrefix(path, "/")

	if path == "" {
		switch r.Method {
		case http.MethodGet:
			h.list(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
		return
	}

	id := path
	switch r.Method {
	case http.MethodGet:
		h.get(w, r, id)
	case http.MethodDelete:
		h.delete(w, r, id)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// Response types

type captureResponse struct {
	ID                string `json:"id"`
	State             string `json:"state"`
	FingerprintPrefix string `json:"fingerprint_prefix,omitempty"`
	HashAlgorithm     string `json:"hash_algorithm,omitempty"`
	Error             string `json:"error,omitempty"`
	StartedAt         string `json:"started_at"`
	FinishedAt        string `json:"finished_at"`
}

type deliveryResponse struct {
	Success     bool   `json:"success"`
	Error       string `json:"error,omitempty"`
	AttemptedAt string `json:"attempted_at"`
}

type captureDetailResponse struct {
	captureResponse
	Deliveries []deliveryResponse `json:"deliveries"`
}

type listCapturesResponse struct {
	Captures []captureResponse `json:"captures"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func toResponse(c *store.Capture) captureResponse {
	return captureResponse{
		ID:                c.ID,
		State:             string(c.State),
		FingerprintPrefix: fingerprint.Fingerprint(c.Fingerprint).Short(),
		HashAlgorithm:     c.HashAlgorithm,
		Error:             c.Error,
		StartedAt:         c.StartedAt.Format(time.RFC3339),
		FinishedAt:        c.FinishedAt.Format(time.RFC3339),
	}
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// list handles GET /api/captures?limit=N, most recent first.
func (h *CaptureHandler) list(w http.ResponseWriter, r *http.Request) {
	limit := store.DefaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	captures, err := h.store.Captures().List(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list captures")
		return
	}

	response := listCapturesResponse{
		Captures: make([]captureResponse, 0, len(captures)),
	}
	for _, c := range captures {
		response.Captures = append(response.Captures, toResponse(c))
	}

	writeJSON(w, http.StatusOK, response)
}

// get handles GET /api/captures/{id}, including hook delivery history.
func (h *CaptureHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	c, err := h.store.Captures().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Capture not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get capture")
		return
	}

	deliveries, err := h.store.Captures().Deliveries(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get deliveries")
		return
	}

	response := captureDetailResponse{
		captureResponse: toResponse(c),
		Deliveries:      make([]deliveryResponse, 0, len(deliveries)),
	}
	for _, d := range deliveries {
		response.Deliveries = append(response.Deliveries, deliveryResponse{
			Success:     d.Success,
			Error:       d.Error,
			AttemptedAt: d.AttemptedAt.Format(time.RFC3339),
		})
	}

	writeJSON(w, http.StatusOK, response)
}

// delete handles DELETE /api/captures/{id}.
func (h *CaptureHandler) delete(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.store.Captures().Delete(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Capture not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete capture")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
