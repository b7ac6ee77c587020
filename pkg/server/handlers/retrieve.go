package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/soundprediction/risposta"
	"github.com/soundprediction/risposta/pkg/server/dto"
)

// RetrieveHandler handles retrieval-only requests
type RetrieveHandler struct {
	engine risposta.Risposta
}

// NewRetrieveHandler creates a new retrieve handler
func NewRetrieveHandler(engine risposta.Risposta) *RetrieveHandler {
	return &RetrieveHandler{engine: engine}
}

// Retrieve handles POST /retrieve
func (h *RetrieveHandler) Retrieve(c *gin.Context) {
	var req dto.RetrieveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid_request", Message: err.Error()})
		return
	}
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid_request", Message: err.Error()})
		return
	}

	passages, err := h.engine.Retrieve(c.Request.Context(), req.Query)
	if err != nil {
		status := http.StatusInternalServerError
		errCode := "retrieve_failed"
		if errors.Is(err, risposta.ErrNoRetriever) {
			status = http.StatusServiceUnavailable
			errCode = "no_retriever"
		}
		c.JSON(status, dto.ErrorResponse{Error: errCode, Message: err.Error()})
		return
	}

	// The engine retrieves its configured top-k; a smaller requested limit
	// trims the tail.
	if req.Limit > 0 && len(passages) > req.Limit {
		passages = passages[:req.Limit]
	}

	c.JSON(http.StatusOK, gin.H{
		"query":    req.Query,
		"count":    len(passages),
		"passages": passages,
	})
}
