package inbound

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-reconcile/core"
	"github.com/goliatone/go-reconcile/webhooks"
)

const (
	WebhookRoute = "POST /webhooks/{processor}"
	HealthRoute  = "GET /health"
	MetricsRoute = "GET /metrics"
)

type Handler struct {
	dispatcher   *Dispatcher
	logger       core.Logger
	maxBodyBytes int64
	metrics      *HTTPMetrics
	metricsPage  http.Handler
	mux          *http.ServeMux
}

type HandlerOption func(*Handler)

func WithLogger(logger core.Logger) HandlerOption {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

func WithMaxBodyBytes(limit int64) HandlerOption {
	return func(h *Handler) {
		if limit > 0 {
			h.maxBodyBytes = limit
		}
	}
}

// WithMetrics instruments every route and, when page is set, serves it on
// /metrics.
func WithMetrics(metrics *HTTPMetrics, page http.Handler) HandlerOption {
	return func(h *Handler) {
		h.metrics = metrics
		h.metricsPage = page
	}
}

func NewHandler(dispatcher *Dispatcher, opts ...HandlerOption) (*Handler, error) {
	if dispatcher == nil {
		return nil, core.NewError("inbound: dispatcher is required", goerrors.CategoryInternal, core.ErrorInternal, nil)
	}
	h := &Handler{
		dispatcher:   dispatcher,
		logger:       glog.Nop(),
		maxBodyBytes: core.DefaultWebhookMaxBodyBytes,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}

	mux := http.NewServeMux()
	mux.Handle(WebhookRoute, h.metrics.Instrument("webhook", http.HandlerFunc(h.serveWebhook)))
	mux.Handle(HealthRoute, h.metrics.Instrument("health", http.HandlerFunc(h.serveHealth)))
	if h.metricsPage != nil {
		mux.Handle(MetricsRoute, h.metricsPage)
	}
	h.mux = mux
	return h, nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) serveHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"processors": h.dispatcher.Processors(),
	})
}

func (h *Handler) serveWebhook(w http.ResponseWriter, r *http.Request) {
	processorID := r.PathValue("processor")
	logger := h.logger.WithContext(r.Context())

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			logger.Warn("webhook body too large", "processor", processorID, "limit", tooLarge.Limit)
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]any{"ok": false, "error": "payload too large"})
			return
		}
		logger.Warn("webhook body unreadable", "processor", processorID, "error", err)
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": "unreadable body"})
		return
	}

	result, err := h.dispatcher.Dispatch(r.Context(), webhooks.Request{
		ProcessorID: processorID,
		Headers:     flattenHeaders(r.Header),
		Body:        body,
	})
	if err != nil && result.StatusCode == http.StatusNotFound {
		logger.Warn("webhook for unknown processor", "processor", processorID)
	}
	status := result.StatusCode
	if status == 0 {
		status = http.StatusInternalServerError
		if err == nil {
			status = http.StatusOK
		}
	}
	payload := result.Body
	if payload == nil {
		payload = map[string]any{"ok": status == http.StatusOK}
	}
	writeJSON(w, status, payload)
}

func flattenHeaders(header http.Header) map[string]string {
	out := make(map[string]string, len(header))
	for key, values := range header {
		if len(values) == 0 {
			continue
		}
		out[strings.ToLower(key)] = values[0]
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
