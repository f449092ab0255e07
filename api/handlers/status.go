package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/JasonDeee/Project-L.I.F.E/api"
	"github.com/JasonDeee/Project-L.I.F.E/chat"
	"github.com/JasonDeee/Project-L.I.F.E/compression"
)

// StatusHandler serves the compression status and manual trigger
// endpoints.
type StatusHandler struct {
	service *chat.Service
	engine  *compression.Engine
	logger  *zap.Logger
}

// NewStatusHandler creates the compression status handler.
func NewStatusHandler(service *chat.Service, engine *compression.Engine, logger *zap.Logger) *StatusHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatusHandler{service: service, engine: engine, logger: logger}
}

// HandleStatus handles GET /v1/compression/status. An optional
// ?scope=YYYY-MM-DD query selects a past day; the default is today.
func (h *StatusHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	scope := r.URL.Query().Get("scope")
	if scope == "" {
		scope = h.service.Scope()
	}
	status, err := h.service.GetCompressionStatusForScope(r.Context(), scope)
	if err != nil {
		WriteError(w, ErrorFrom(err), h.logger)
		return
	}
	WriteSuccess(w, status)
}

// HandleCompress handles POST /v1/compression/compress: run a
// compression pass for the current scope immediately, bypassing the
// debounce. The threshold check still applies through the engine's
// own decision; this endpoint forces the pass regardless.
func (h *StatusHandler) HandleCompress(w http.ResponseWriter, r *http.Request) {
	scope := h.service.Scope()
	result, err := h.engine.CompressHistory(r.Context(), scope)
	if err != nil {
		WriteError(w, ErrorFrom(err), h.logger)
		return
	}

	h.logger.Info("manual compression pass",
		zap.String("scope", scope),
		zap.Bool("success", result.Success),
		zap.String("reason", result.Reason),
	)
	WriteSuccess(w, result)
}

// HandleTaskManager handles PUT /v1/config/task-manager: toggle the
// task manager prompt block at runtime.
func (h *StatusHandler) HandleTaskManager(w http.ResponseWriter, r *http.Request) {
	if !ValidateContentType(w, r, h.logger) {
		return
	}
	var req api.TaskManagerRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}

	h.service.SetTaskManagerEnabled(req.Enabled)
	h.logger.Info("task manager toggled", zap.Bool("enabled", req.Enabled))
	WriteSuccess(w, map[string]bool{"enabled": req.Enabled})
}
