package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/R3E-Network/service_layer/internal/app/domain"
	"github.com/R3E-Network/service_layer/internal/app/services/traces"
	"github.com/R3E-Network/service_layer/internal/app/storage"
	"github.com/R3E-Network/service_layer/internal/vigilerr"
)

// traces handles the collection endpoint: POST ingests a batch of spans,
// GET lists a project's traces with optional status/limit/offset filters.
func (h *Handler) traces(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.ingestTrace(w, r)
	case http.MethodGet:
		h.listTraces(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, errMethodNotAllowed)
	}
}

type ingestSpanRequest struct {
	ID           string             `json:"id,omitempty"`
	ParentSpanID *string            `json:"parent_span_id,omitempty"`
	Name         string             `json:"name"`
	Kind         domain.SpanKind    `json:"kind,omitempty"`
	Status       domain.TraceStatus `json:"status,omitempty"`
	Input        map[string]any     `json:"input,omitempty"`
	Output       map[string]any     `json:"output,omitempty"`
	StartedAt    time.Time          `json:"started_at"`
	EndedAt      *time.Time         `json:"ended_at,omitempty"`
	Metadata     map[string]any     `json:"metadata,omitempty"`
}

type ingestTraceRequest struct {
	TraceID   string              `json:"trace_id,omitempty"`
	Name      string              `json:"name,omitempty"`
	ExternalID *string            `json:"external_id,omitempty"`
	Spans     []ingestSpanRequest `json:"spans"`
}

func (h *Handler) ingestTrace(w http.ResponseWriter, r *http.Request) {
	projectID, ok := projectIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, errUnauthorized)
		return
	}

	var req ingestTraceRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}

	spans := make([]traces.IngestSpan, 0, len(req.Spans))
	for _, sp := range req.Spans {
		spans = append(spans, traces.IngestSpan{
			ID:           sp.ID,
			ParentSpanID: sp.ParentSpanID,
			Name:         sp.Name,
			Kind:         sp.Kind,
			Status:       sp.Status,
			Input:        sp.Input,
			Output:       sp.Output,
			StartedAt:    sp.StartedAt,
			EndedAt:      sp.EndedAt,
			Metadata:     sp.Metadata,
		})
	}

	if err := traces.ValidateSpans(spans); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}

	trace, err := h.app.Traces.Ingest(r.Context(), projectID, req.TraceID, req.Name, spans)
	if err != nil {
		writeError(w, http.StatusInternalServerError, errors.New("failed to ingest trace"))
		return
	}
	writeJSON(w, http.StatusCreated, trace)
}

func (h *Handler) listTraces(w http.ResponseWriter, r *http.Request) {
	projectID, ok := projectIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, errUnauthorized)
		return
	}

	limit, err := parseLimitParam(r.URL.Query().Get("limit"), 0)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	filter := storage.TraceFilter{
		Status: r.URL.Query().Get("status"),
		Limit:  limit,
		Offset: offset,
	}
	list, err := h.app.Traces.List(r.Context(), projectID, filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, errors.New("failed to list traces"))
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// traceResource handles /v1/traces/{id}, its events and replay subroutes.
func (h *Handler) traceResource(w http.ResponseWriter, r *http.Request) {
	segments := pathSegments(r.URL.Path, "/v1/traces/")
	if len(segments) == 0 {
		writeError(w, http.StatusNotFound, errMissingID)
		return
	}
	traceID := segments[0]

	switch {
	case len(segments) == 1:
		h.traceDetail(w, r, traceID)
	case len(segments) == 3 && segments[1] == "events":
		h.appendSpanEvent(w, r, traceID, segments[2])
	case len(segments) == 2 && segments[1] == "replay":
		h.createReplay(w, r, traceID)
	case len(segments) == 4 && segments[1] == "replay" && segments[3] == "confirm":
		h.confirmReplay(w, r, segments[2])
	case len(segments) == 4 && segments[1] == "replay" && segments[3] == "cancel":
		h.cancelReplay(w, r, segments[2])
	case len(segments) == 3 && segments[1] == "replay":
		h.replayDetail(w, r, segments[2])
	case len(segments) == 4 && segments[1] == "replay" && segments[3] == "diff":
		h.replayDiff(w, r, segments[2])
	default:
		writeError(w, http.StatusNotFound, errors.New("unknown trace route"))
	}
}

func (h *Handler) traceDetail(w http.ResponseWriter, r *http.Request, traceID string) {
	switch r.Method {
	case http.MethodGet:
		trace, err := h.app.Traces.Get(r.Context(), traceID)
		if err != nil {
			writeError(w, http.StatusNotFound, vigilerr.NotFound("trace", traceID))
			return
		}
		writeJSON(w, http.StatusOK, trace)
	case http.MethodPatch:
		h.patchTrace(w, r, traceID)
	default:
		writeError(w, http.StatusMethodNotAllowed, errMethodNotAllowed)
	}
}

type patchTraceRequest struct {
	Status   domain.TraceStatus `json:"status,omitempty"`
	Metadata map[string]any     `json:"metadata,omitempty"`
}

func (h *Handler) patchTrace(w http.ResponseWriter, r *http.Request, traceID string) {
	var req patchTraceRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	trace, err := h.app.Traces.UpdateTrace(r.Context(), traceID, req.Status, req.Metadata)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, vigilerr.NotFound("trace", traceID))
			return
		}
		writeError(w, http.StatusInternalServerError, errors.New("failed to update trace"))
		return
	}
	writeJSON(w, http.StatusOK, trace)
}

type appendEventRequest struct {
	Name       string         `json:"name"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

func (h *Handler) appendSpanEvent(w http.ResponseWriter, r *http.Request, traceID, spanID string) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, errMethodNotAllowed)
		return
	}
	var req appendEventRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusUnprocessableEntity, errors.New("name is required"))
		return
	}
	span, err := h.app.Traces.AppendEvent(r.Context(), traceID, spanID, req.Name, req.Attributes)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, vigilerr.NotFound("span", spanID))
			return
		}
		writeError(w, http.StatusInternalServerError, errors.New("failed to append span event"))
		return
	}
	writeJSON(w, http.StatusCreated, span)
}

// spans handles GET /v1/spans, listing a project's spans with optional
// trace_id/kind/status filters.
func (h *Handler) spans(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, errMethodNotAllowed)
		return
	}
	projectID, ok := projectIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, errUnauthorized)
		return
	}
	limit, err := parseLimitParam(r.URL.Query().Get("limit"), 0)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	filter := storage.TraceFilter{
		TraceID: r.URL.Query().Get("trace_id"),
		Kind:    r.URL.Query().Get("kind"),
		Status:  r.URL.Query().Get("status"),
		Limit:   limit,
		Offset:  offset,
	}
	list, err := h.app.Traces.ListSpans(r.Context(), projectID, filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, errors.New("failed to list spans"))
		return
	}
	writeJSON(w, http.StatusOK, list)
}
