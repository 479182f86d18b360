package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"authorities/internal/contact"
	"authorities/internal/models"
	"authorities/internal/ratelimit"
	"authorities/internal/storage"
	"authorities/internal/version"
)

// maxBodyBytes caps the size of a contact event submission.
const maxBodyBytes = 64 << 10

const messageEventLogged = "Contact event logged successfully"

// Handlers contains HTTP handlers for the contact API
type Handlers struct {
	contactService contact.ServiceInterface
	storage        storage.Storage
	version        version.Info
	startedAt      time.Time
	now            func() time.Time
}

// HandlerOption configures optional handler dependencies.
type HandlerOption func(*Handlers)

// WithStorage lets the health check ping the record store.
func WithStorage(s storage.Storage) HandlerOption {
	return func(h *Handlers) {
		h.storage = s
	}
}

// WithVersion sets the build info reported by the health check.
func WithVersion(v version.Info) HandlerOption {
	return func(h *Handlers) {
		h.version = v
	}
}

// WithClock replaces the time source used for rate limiting and timestamps.
func WithClock(now func() time.Time) HandlerOption {
	return func(h *Handlers) {
		h.now = now
	}
}

// NewHandlers creates a new handlers instance
func NewHandlers(contactService contact.ServiceInterface, opts ...HandlerOption) *Handlers {
	h := &Handlers{
		contactService: contactService,
		startedAt:      time.Now(),
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// CreateEvent logs a contact event.
// POST /api/contact-authorities
//
// The rate limit is charged before the body is looked at, so malformed JSON
// still counts against the caller and is reported as missing fields.
func (h *Handlers) CreateEvent(w http.ResponseWriter, r *http.Request) {
	callerAddress := ratelimit.ClientAddress(r)
	input := decodeEventInput(w, r)

	result, err := h.contactService.RecordEvent(r.Context(), callerAddress, input, h.now())
	if result != nil {
		ratelimit.SetHeaders(w, result.Decision)
	}
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeJSONResponse(w, http.StatusCreated, &models.CreateEventResponse{
		Success: true,
		EventID: result.Event.ID,
		Message: messageEventLogged,
	})
}

// ListEvents returns the most recent contact events.
// GET /api/contact-authorities?limit=20&target=police
func (h *Handlers) ListEvents(w http.ResponseWriter, r *http.Request) {
	callerAddress := ratelimit.ClientAddress(r)

	query := models.ListEventsQuery{Target: r.URL.Query().Get("target")}
	if limitParam := r.URL.Query().Get("limit"); limitParam != "" {
		if limit, err := strconv.Atoi(limitParam); err == nil {
			query.Limit = limit
		}
	}

	result, err := h.contactService.ListEvents(r.Context(), callerAddress, query, h.now())
	if result != nil {
		ratelimit.SetHeaders(w, result.Decision)
	}
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, models.NewListEventsResponse(result.Events))
}

// RateLimitStatus reports the caller's quota without consuming it.
// GET /api/contact-authorities/status
func (h *Handlers) RateLimitStatus(w http.ResponseWriter, r *http.Request) {
	callerAddress := ratelimit.ClientAddress(r)

	status, err := h.contactService.LimiterStatus(r.Context(), callerAddress, h.now())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	ratelimit.SetHeaders(w, ratelimit.Decision{
		Admitted:  true,
		Remaining: status.Remaining,
		Limit:     status.Limit,
		ResetAt:   status.ResetAt,
	})
	h.writeJSONResponse(w, http.StatusOK, &models.RateLimitStatusResponse{
		CallerAddress: callerAddress,
		Count:         status.Count,
		Limit:         status.Limit,
		Remaining:     status.Remaining,
		WindowSeconds: int(status.Window / time.Second),
	})
}

// HealthCheck handles health check requests
// GET /health, GET /api/health
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := models.NewHealthCheckResponse(models.StatusHealthy)
	response.Version = h.version.Semantic()
	response.Uptime = time.Since(h.startedAt).Round(time.Second).String()

	statusCode := http.StatusOK
	if h.storage != nil {
		if err := h.storage.Ping(r.Context()); err != nil {
			slog.Error("Health check storage ping failed", "error", err)
			response.Status = models.StatusUnhealthy
			response.AddComponent("storage", models.StatusUnhealthy, "Storage is unreachable")
			statusCode = http.StatusServiceUnavailable
		} else {
			response.AddComponent("storage", models.StatusHealthy, "Storage is operational")
		}
	}
	response.AddComponent("api", models.StatusHealthy, "API is operational")

	h.writeJSONResponse(w, statusCode, response)
}

// decodeEventInput reads the submission leniently: malformed bodies yield an
// empty input and scalar fields are converted to strings.
func decodeEventInput(w http.ResponseWriter, r *http.Request) models.ContactEventInput {
	var input models.ContactEventInput
	if r.Body == nil {
		return input
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		slog.Debug("Failed to read request body", "error", err)
		return input
	}

	var fields map[string]any
	if err := json.Unmarshal(body, &fields); err != nil {
		slog.Debug("Malformed JSON body", "error", err)
		return input
	}

	input.Title = scalarString(fields["title"])
	input.Target = scalarString(fields["target"])
	input.Description = scalarString(fields["description"])
	return input
}

// scalarString renders JSON strings, numbers and booleans; anything else is
// treated as absent.
func scalarString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		if !val {
			return ""
		}
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// writeJSONResponse writes a JSON response
func (h *Handlers) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Headers are already written; nothing left to send.
		slog.Error("Error encoding JSON response", "error", err)
	}
}

// writeErrorResponse writes an error response
func (h *Handlers) writeErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) {
	h.writeJSONResponse(w, statusCode, models.NewErrorResponse(message, errorCode))
}

// writeServiceError maps a contact service error to its HTTP response.
func (h *Handlers) writeServiceError(w http.ResponseWriter, err error) {
	serviceErr, ok := contact.AsServiceError(err)
	if !ok {
		slog.Error("Unexpected service error", "error", err)
		h.writeErrorResponse(w, http.StatusInternalServerError, models.ErrorCodeInternalError, "Internal server error")
		return
	}

	resp := models.NewErrorResponse(serviceErr.Message, serviceErr.Code)
	resp.RateLimitExceeded = errors.Is(err, contact.ErrRateLimited)
	h.writeJSONResponse(w, serviceErr.StatusCode, resp)
}

// writeMethodNotAllowed is shared by the router and explicit method guards.
func writeMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusMethodNotAllowed)
	errorResp := models.NewErrorResponse(fmt.Sprintf("Method %s not allowed", r.Method), models.ErrorCodeMethodNotAllowed)
	json.NewEncoder(w).Encode(errorResp)
}
