package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"songrelay/config"
	"songrelay/core/manifest"
	"songrelay/core/relay"
	"songrelay/logger"
	"songrelay/model"
)

// maxBodyBytes caps a /send-tracks request body.
const maxBodyBytes = 1 << 20

// APIHandler holds dependencies for HTTP handlers.
type APIHandler struct {
	cfg   *config.Config
	relay *relay.Service
	now   func() time.Time
}

// NewAPIHandler creates a new APIHandler.
func NewAPIHandler(cfg *config.Config, svc *relay.Service) *APIHandler {
	return &APIHandler{cfg: cfg, relay: svc, now: time.Now}
}

// SendTracksHandler handles POST /send-tracks.
// Validation failures are answered with 422 before anything is forwarded.
func (h *APIHandler) SendTracksHandler(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorBody("request body too large"))
			return
		}
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read request body: "+err.Error()))
		return
	}

	req, err := model.ParseSendTracksRequest(body)
	if err != nil {
		var verr *model.ValidationError
		if errors.As(err, &verr) {
			logger.Info("rejected invalid send-tracks request", logger.String("reason", verr.Error()))
			writeJSON(w, http.StatusUnprocessableEntity, model.ValidationErrorResponse{Detail: verr.Issues})
			return
		}
		writeJSON(w, http.StatusInternalServerError, errorBody(relay.Describe(err)))
		return
	}

	// The caller hanging up does not abort delivery; only the client timeout does.
	resp, err := h.relay.SendTracks(context.WithoutCancel(r.Context()), req.Tracks)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorBody(relay.Describe(err)))
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// HealthHandler handles GET /health.
func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, model.HealthResponse{
		Status:             "healthy",
		Timestamp:          model.FormatTimestamp(h.now()),
		MusicAppConfigured: h.cfg.MusicAppConfigured(),
	})
}

// ManifestHandler handles GET /.well-known/mcp.json.
func (h *APIHandler) ManifestHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(manifest.JSON()); err != nil {
		logger.Warn("failed to write manifest", logger.ErrorField(err))
	}
}

func errorBody(detail string) model.ErrorResponse {
	return model.ErrorResponse{Detail: detail}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("failed to encode response", logger.ErrorField(err))
	}
}
