package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/tphummel/devices/internal/models"
	"github.com/tphummel/devices/internal/service"
)

const maxBodyBytes = 64 * 1024

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	Devices *service.Service
	Store   Pinger
	Logger  *slog.Logger
	Version string
	Commit  string
}

func (h *Handler) logger() *slog.Logger {
	if h.Logger == nil {
		return slog.Default()
	}
	return h.Logger
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, msg string, fields map[string]string) {
	writeJSON(w, status, models.ErrorResponse{
		Message:     msg,
		Code:        code,
		Timestamp:   time.Now().UTC().Format(models.TimestampFormat),
		Path:        r.URL.Path,
		FieldErrors: fields,
	})
}

// fail maps err onto the error response for r. Unknown errors are logged and
// reported with a generic message.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	var (
		notFound  *service.NotFoundError
		duplicate *service.DuplicateError
		rule      *service.RuleViolationError
		invalid   *models.ValidationError
		badState  *models.InvalidStateError
		maxErr    *http.MaxBytesError
	)
	switch {
	case errors.As(err, &notFound):
		writeError(w, r, http.StatusNotFound, "DEVICE_NOT_FOUND", notFound.Error(), nil)
	case errors.As(err, &duplicate):
		writeError(w, r, http.StatusConflict, "DUPLICATE_DEVICE", duplicate.Error(), nil)
	case errors.As(err, &rule):
		writeError(w, r, http.StatusConflict, string(rule.Rule), rule.Message, nil)
	case errors.As(err, &invalid):
		writeError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", invalid.Error(), invalid.Fields)
	case errors.As(err, &badState):
		writeError(w, r, http.StatusBadRequest, "INVALID_STATE", badState.Error(), nil)
	case errors.As(err, &maxErr):
		writeError(w, r, http.StatusRequestEntityTooLarge, "REQUEST_TOO_LARGE", "request body too large", nil)
	default:
		h.logger().ErrorContext(r.Context(), "unexpected error",
			"method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, r, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "An unexpected error occurred", nil)
	}
}

// decode reads a JSON body of at most maxBodyBytes into v. It writes the error
// response itself and reports whether decoding succeeded.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil {
		return true
	}
	var (
		maxErr   *http.MaxBytesError
		badState *models.InvalidStateError
	)
	if errors.As(err, &maxErr) || errors.As(err, &badState) {
		h.fail(w, r, err)
		return false
	}
	writeError(w, r, http.StatusBadRequest, "INVALID_REQUEST_BODY", "Malformed JSON request body", nil)
	return false
}

// pathID parses the {id} path value.
func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := r.PathValue("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_PARAMETER",
			fmt.Sprintf("Invalid value '%s' for parameter 'id'", raw), nil)
		return 0, false
	}
	return id, true
}

type healthResponse struct {
	Status  string         `json:"status"`
	Version string         `json:"version,omitempty"`
	Commit  string         `json:"commit,omitempty"`
	Devices map[string]int `json:"devices,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// Health handles GET /healthz; no auth required.
// Returns 503 if the store is unreachable.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, healthResponse{
			Status: "unavailable",
			Error:  err.Error(),
		})
		return
	}

	counts := make(map[string]int, 3)
	for _, s := range models.ValidStates() {
		n, err := h.Devices.CountByState(r.Context(), s)
		if err != nil {
			writeJSON(w, http.StatusServiceUnavailable, healthResponse{
				Status: "unavailable",
				Error:  err.Error(),
			})
			return
		}
		counts[string(s)] = n
	}
	writeJSON(w, http.StatusOK, healthResponse{
		Status:  "ok",
		Version: h.Version,
		Commit:  h.Commit,
		Devices: counts,
	})
}

// Ping handles GET /api/v1/devices/health with a plain-text liveness answer.
func (h *Handler) Ping(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("Devices API is running"))
}

// CreateDevice handles POST /api/v1/devices.
func (h *Handler) CreateDevice(w http.ResponseWriter, r *http.Request) {
	var req models.CreateRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		h.fail(w, r, err)
		return
	}

	dev, err := h.Devices.Create(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Location", fmt.Sprintf("/api/v1/devices/%d", dev.ID))
	writeJSON(w, http.StatusCreated, dev)
}

// GetDevice handles GET /api/v1/devices/{id}.
func (h *Handler) GetDevice(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	dev, err := h.Devices.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dev)
}

// ListDevices handles GET /api/v1/devices, newest first.
func (h *Handler) ListDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := h.Devices.List(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, devices)
}

// ListDevicesByBrand handles GET /api/v1/devices/brand/{brand}.
func (h *Handler) ListDevicesByBrand(w http.ResponseWriter, r *http.Request) {
	devices, err := h.Devices.ListByBrand(r.Context(), r.PathValue("brand"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, devices)
}

// ListDevicesByState handles GET /api/v1/devices/state/{state}. The state
// token is matched ignoring case.
func (h *Handler) ListDevicesByState(w http.ResponseWriter, r *http.Request) {
	state, err := models.ParseState(r.PathValue("state"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	devices, err := h.Devices.ListByState(r.Context(), state)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, devices)
}

// UpdateDevice handles PUT /api/v1/devices/{id}.
func (h *Handler) UpdateDevice(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req models.UpdateRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		h.fail(w, r, err)
		return
	}

	dev, err := h.Devices.Update(r.Context(), id, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dev)
}

// PatchDevice handles PATCH /api/v1/devices/{id}.
func (h *Handler) PatchDevice(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req models.PatchRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		h.fail(w, r, err)
		return
	}

	dev, err := h.Devices.Patch(r.Context(), id, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dev)
}

// DeleteDevice handles DELETE /api/v1/devices/{id}.
func (h *Handler) DeleteDevice(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.Devices.Delete(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
