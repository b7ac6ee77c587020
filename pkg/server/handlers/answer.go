package handlers

import (
	"errors"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/soundprediction/risposta"
	"github.com/soundprediction/risposta/pkg/server/dto"
	"github.com/soundprediction/risposta/pkg/types"
	"github.com/soundprediction/risposta/pkg/utils"
)

// AnswerHandler handles answer requests. The engine's scorer processes one
// question at a time; the mutex keeps concurrent requests from interleaving
// scoring batches.
type AnswerHandler struct {
	mu     sync.Mutex
	engine risposta.Risposta
}

// NewAnswerHandler creates a new answer handler
func NewAnswerHandler(engine risposta.Risposta) *AnswerHandler {
	return &AnswerHandler{engine: engine}
}

// Answer handles POST /answer
func (h *AnswerHandler) Answer(c *gin.Context) {
	var req dto.AnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid_request", Message: err.Error()})
		return
	}
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid_request", Message: err.Error()})
		return
	}

	question := types.Question{ID: req.ID, Text: req.Question}
	if question.ID == "" {
		// Ad-hoc questions still need a stable id in the result payload.
		question.ID = utils.GenerateUUID()
	}

	ctx := c.Request.Context()

	h.mu.Lock()
	defer h.mu.Unlock()

	var result *types.QuestionResult
	var err error
	if len(req.Passages) > 0 {
		passages := make([]types.Passage, len(req.Passages))
		for i, passage := range req.Passages {
			passages[i] = types.Passage{
				Index: i,
				ID:    passage.ID,
				Title: passage.Title,
				Text:  passage.Text,
			}
		}
		result, err = h.engine.Answer(ctx, question, passages)
	} else {
		result, err = h.engine.AnswerQuestion(ctx, question)
	}
	if err != nil {
		status := http.StatusInternalServerError
		errCode := "answer_failed"
		if errors.Is(err, risposta.ErrNoRetriever) {
			status = http.StatusServiceUnavailable
			errCode = "no_retriever"
		}
		c.JSON(status, dto.ErrorResponse{Error: errCode, Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}
