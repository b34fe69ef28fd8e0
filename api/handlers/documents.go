package handlers

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/docqa/rag"
	"github.com/BaSui01/docqa/types"
)

// DocumentHandler serves document upload, listing and removal.
type DocumentHandler struct {
	engine         *rag.Engine
	maxUploadBytes int64
	logger         *zap.Logger
}

// NewDocumentHandler creates a document handler.
func NewDocumentHandler(engine *rag.Engine, maxUploadBytes int64, logger *zap.Logger) *DocumentHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxUploadBytes <= 0 {
		maxUploadBytes = 32 << 20
	}
	return &DocumentHandler{
		engine:         engine,
		maxUploadBytes: maxUploadBytes,
		logger:         logger.With(zap.String("component", "document_handler")),
	}
}

// HandleCollection dispatches /api/documents: POST uploads, GET lists,
// DELETE clears the session.
func (h *DocumentHandler) HandleCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.handleUpload(w, r)
	case http.MethodGet:
		h.handleList(w, r)
	case http.MethodDelete:
		h.handleClear(w, r)
	default:
		MethodNotAllowed(w)
	}
}

// HandleItem dispatches /api/documents/{name}: DELETE removes one document.
func (h *DocumentHandler) HandleItem(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		MethodNotAllowed(w)
		return
	}

	name := strings.TrimPrefix(r.URL.Path, "/api/documents/")
	if name == "" {
		WriteError(w, types.NewValidation("document name is missing from the path"), h.logger)
		return
	}

	if err := h.engine.RemoveDocument(r.Context(), name); err != nil {
		WriteError(w, err, h.logger)
		return
	}
	WriteSuccess(w, map[string]string{"removed": name})
}

// handleUpload ingests one multipart file under the "file" field. Chunk
// settings may be overridden per upload via chunk_size/chunk_overlap form
// fields.
func (h *DocumentHandler) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)

	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		WriteError(w, types.NewValidation("invalid multipart upload: %v", err), h.logger)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		WriteError(w, types.NewValidation(`multipart field "file" is required`), h.logger)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		WriteError(w, types.NewValidation("failed to read upload: %v", err), h.logger)
		return
	}

	override, err := chunkOverrideFromForm(r)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}

	count, err := h.engine.IngestDocument(r.Context(), data, header.Filename, override)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}

	WriteSuccess(w, map[string]any{
		"file_name": header.Filename,
		"segments":  count,
	})
}

func (h *DocumentHandler) handleList(w http.ResponseWriter, _ *http.Request) {
	WriteSuccess(w, map[string]any{
		"documents":            h.engine.ListDocuments(),
		"supported_extensions": h.engine.SupportedExtensions(),
	})
}

func (h *DocumentHandler) handleClear(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.ClearAll(r.Context()); err != nil {
		WriteError(w, err, h.logger)
		return
	}
	WriteSuccess(w, map[string]string{"status": "cleared"})
}

// chunkOverrideFromForm reads optional chunk settings from the upload form.
// Both fields must be present to form an override.
func chunkOverrideFromForm(r *http.Request) (*types.ChunkSettings, error) {
	sizeRaw := strings.TrimSpace(r.FormValue("chunk_size"))
	overlapRaw := strings.TrimSpace(r.FormValue("chunk_overlap"))
	if sizeRaw == "" && overlapRaw == "" {
		return nil, nil
	}
	if sizeRaw == "" || overlapRaw == "" {
		return nil, types.NewValidation("chunk_size and chunk_overlap must be supplied together")
	}

	size, err := strconv.Atoi(sizeRaw)
	if err != nil {
		return nil, types.NewValidation("chunk_size must be an integer, got %q", sizeRaw)
	}
	overlap, err := strconv.Atoi(overlapRaw)
	if err != nil {
		return nil, types.NewValidation("chunk_overlap must be an integer, got %q", overlapRaw)
	}

	settings := types.ChunkSettings{ChunkSize: size, ChunkOverlap: overlap}
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return &settings, nil
}
