package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/BaSui01/docqa/rag"
)

// QueryHandler answers questions against the session corpus.
type QueryHandler struct {
	engine *rag.Engine
	logger *zap.Logger
}

// NewQueryHandler creates a query handler.
func NewQueryHandler(engine *rag.Engine, logger *zap.Logger) *QueryHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueryHandler{
		engine: engine,
		logger: logger.With(zap.String("component", "query_handler")),
	}
}

type queryRequest struct {
	Question string `json:"question"`
}

type queryResponse struct {
	Answer     string   `json:"answer"`
	FilesUsed  []string `json:"files_used"`
	Strategies []string `json:"strategies"`
}

// HandleQuery serves POST /api/query.
func (h *QueryHandler) HandleQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		MethodNotAllowed(w)
		return
	}

	var req queryRequest
	if !DecodeJSONBody(w, r, &req, h.logger) {
		return
	}

	answer, err := h.engine.AnswerQuestion(r.Context(), req.Question)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}

	WriteSuccess(w, queryResponse{
		Answer:     answer.Text,
		FilesUsed:  answer.FilesUsed,
		Strategies: answer.Strategies,
	})
}
