package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/BaSui01/docqa/rag"
	"github.com/BaSui01/docqa/types"
)

// SettingsHandler serves the session chunk settings.
type SettingsHandler struct {
	engine *rag.Engine
	logger *zap.Logger
}

// NewSettingsHandler creates a settings handler.
func NewSettingsHandler(engine *rag.Engine, logger *zap.Logger) *SettingsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SettingsHandler{
		engine: engine,
		logger: logger.With(zap.String("component", "settings_handler")),
	}
}

type settingsResponse struct {
	ChunkSize    int  `json:"chunk_size"`
	ChunkOverlap int  `json:"chunk_overlap"`
	Explicit     bool `json:"explicit"`
}

// HandleSettings dispatches /api/settings: GET reads, PUT updates. Updates
// apply to future ingestions only.
func (h *SettingsHandler) HandleSettings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		settings, explicit := h.engine.Settings()
		WriteSuccess(w, settingsResponse{
			ChunkSize:    settings.ChunkSize,
			ChunkOverlap: settings.ChunkOverlap,
			Explicit:     explicit,
		})

	case http.MethodPut, http.MethodPost:
		var req types.ChunkSettings
		if !DecodeJSONBody(w, r, &req, h.logger) {
			return
		}
		if err := h.engine.UpdateSettings(req); err != nil {
			WriteError(w, err, h.logger)
			return
		}
		WriteSuccess(w, settingsResponse{
			ChunkSize:    req.ChunkSize,
			ChunkOverlap: req.ChunkOverlap,
			Explicit:     true,
		})

	default:
		MethodNotAllowed(w)
	}
}
