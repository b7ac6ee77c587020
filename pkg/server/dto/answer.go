// Package dto defines the request and response bodies of the HTTP API.
package dto

import (
	"errors"
	"fmt"
	"strings"
)

// Validation errors
var (
	ErrEmptyQuestion   = errors.New("question cannot be empty")
	ErrQuestionTooLong = errors.New("question exceeds maximum length (8192)")
	ErrEmptyQuery      = errors.New("query cannot be empty")
	ErrTooManyPassages = errors.New("passages count exceeds maximum (1000)")
)

// Field limits guard against abusive request bodies.
const (
	MaxQuestionLength = 8192
	MaxPassagesCount  = 1000
	MaxPassageLength  = 1024 * 1024 // 1MB
)

// Passage is one caller-supplied candidate context for an answer request.
type Passage struct {
	ID    string `json:"id,omitempty"`
	Title string `json:"title,omitempty"`
	Text  string `json:"text" binding:"required"`
}

// AnswerRequest asks for an answer to one question. When passages are given
// they are used as the candidate contexts in the given order; otherwise the
// configured retriever finds them.
type AnswerRequest struct {
	ID       string    `json:"id,omitempty"`
	Question string    `json:"question" binding:"required"`
	Passages []Passage `json:"passages,omitempty"`
}

// Validate performs validation on AnswerRequest
func (r *AnswerRequest) Validate() error {
	if strings.TrimSpace(r.Question) == "" {
		return ErrEmptyQuestion
	}
	if len(r.Question) > MaxQuestionLength {
		return ErrQuestionTooLong
	}
	if len(r.Passages) > MaxPassagesCount {
		return ErrTooManyPassages
	}
	for i, passage := range r.Passages {
		if strings.TrimSpace(passage.Text) == "" {
			return fmt.Errorf("passage %d: text cannot be empty", i)
		}
		if len(passage.Text) > MaxPassageLength {
			return fmt.Errorf("passage %d: text exceeds maximum length (1MB)", i)
		}
	}
	return nil
}

// RetrieveRequest asks for ranked candidate passages for a query. A zero
// limit means the server's configured top-k.
type RetrieveRequest struct {
	Query string `json:"query" binding:"required"`
	Limit int    `json:"limit,omitempty"`
}

// Validate performs validation on RetrieveRequest
func (r *RetrieveRequest) Validate() error {
	if strings.TrimSpace(r.Query) == "" {
		return ErrEmptyQuery
	}
	return nil
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
}
