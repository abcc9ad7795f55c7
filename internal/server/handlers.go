package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/joacominatel/ciphersql/internal/app"
	"github.com/joacominatel/ciphersql/internal/assignment"
	"github.com/joacominatel/ciphersql/internal/gateway"
	"github.com/joacominatel/ciphersql/internal/hint"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

type handlers struct {
	backend Backend
	logger  *slog.Logger
}

// executeRequest is the body of POST /api/execute. ExpectedColumns stays
// raw so a malformed value leaves the query ungraded instead of failing it.
type executeRequest struct {
	Query           string          `json:"query"`
	ExpectedColumns json.RawMessage `json:"expectedColumns"`
	AssignmentID    string          `json:"assignmentId"`
}

type errorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

func (h *handlers) root(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "CipherSQLStudio API running"})
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	if err := h.backend.Ping(r.Context()); err != nil {
		h.logger.Warn("health check failed", slog.Any("error", err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handlers) listAssignments(w http.ResponseWriter, r *http.Request) {
	list, err := h.backend.Assignments(r.Context())
	if err != nil {
		h.logger.Error("list assignments", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "Failed to fetch assignments")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *handlers) getAssignment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	a, err := h.backend.Assignment(r.Context(), id)
	switch {
	case errors.Is(err, assignment.ErrNotFound):
		writeError(w, http.StatusNotFound, "Assignment not found")
	case err != nil:
		h.logger.Error("get assignment", slog.String("id", id), slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "Failed to fetch assignment")
	default:
		writeJSON(w, http.StatusOK, a)
	}
}

func (h *handlers) execute(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	expected, _ := gateway.ParseExpected(req.ExpectedColumns)

	// The request context is the execution context: a client that goes
	// away cancels its statement.
	resp, err := h.backend.Execute(r.Context(), app.ExecuteRequest{
		Query:        req.Query,
		Expected:     expected,
		AssignmentID: req.AssignmentID,
	})
	if err != nil {
		h.writeGatewayError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) hint(w http.ResponseWriter, r *http.Request) {
	var req hint.Request
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"hint": h.backend.Hint(r.Context(), req)})
}

func (h *handlers) writeGatewayError(w http.ResponseWriter, r *http.Request, err error) {
	switch gateway.Classify(err) {
	case gateway.ClassInput, gateway.ClassExecution, gateway.ClassTimedOut:
		writeError(w, http.StatusBadRequest, err.Error())

	case gateway.ClassPolicy:
		var policyErr *gateway.ErrPolicy
		errors.As(err, &policyErr)
		writeJSON(w, http.StatusForbidden, errorResponse{
			Error:  gateway.PolicyMessage,
			Reason: policyErr.Reason,
		})

	case gateway.ClassPoolExhausted:
		var exhausted *gateway.ErrPoolExhausted
		errors.As(err, &exhausted)
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(exhausted)))
		writeError(w, http.StatusServiceUnavailable, err.Error())

	default:
		h.logger.Error("execute failed", slog.String("path", r.URL.Path), slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func retryAfterSeconds(e *gateway.ErrPoolExhausted) int {
	secs := int(math.Ceil(e.Wait.Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}
