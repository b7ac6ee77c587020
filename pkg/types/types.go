package types

import (
	"errors"
	"fmt"
)

// Validation errors
var (
	ErrEmptyQuestionID   = errors.New("question id cannot be empty")
	ErrEmptyQuestionText = errors.New("question text cannot be empty")
	ErrDuplicateQuestion = errors.New("duplicate question id")
	ErrEmptyPassage      = errors.New("passage text cannot be empty")
)

// Question is a single evaluation item. Questions are immutable once created.
type Question struct {
	ID   string `json:"id" mapstructure:"id"`
	Text string `json:"text" mapstructure:"text"`
}

// Validate checks if the Question has all required fields set.
func (q *Question) Validate() error {
	if q.ID == "" {
		return ErrEmptyQuestionID
	}
	if q.Text == "" {
		return ErrEmptyQuestionText
	}
	return nil
}

// Passage is one retrieved candidate context for a question. Index is the
// 0-based rank within the question's retrieved list; the order reflects
// retrieval relevance and is never reused as a scoring prior.
type Passage struct {
	Index int     `json:"index"`
	ID    string  `json:"id,omitempty"`
	Title string  `json:"title,omitempty"`
	Text  string  `json:"text"`
	Score float64 `json:"score,omitempty"`
}

// Offset maps one token position back to a character span in the passage
// text. Context is false for positions that belong to the question segment,
// special tokens, or padding; such positions carry no usable span.
type Offset struct {
	Start   int  `json:"start"`
	End     int  `json:"end"`
	Context bool `json:"context"`
}

// Window is one fixed-length token sequence derived from a (question,
// passage) pair. A passage whose tokens exceed the window length yields
// several overlapping windows; a window never spans two passages.
type Window struct {
	TokenIDs      []int    `json:"token_ids"`
	AttentionMask []int    `json:"attention_mask"`
	Offsets       []Offset `json:"offsets"`
	PassageIndex  int      `json:"passage_index"`
}

// WindowScore holds per-token start and end scores for one window, aligned
// positionally with the window's token sequence.
type WindowScore struct {
	Start []float64 `json:"start"`
	End   []float64 `json:"end"`
}

// Validate checks that the score arrays match the window's token count.
func (s *WindowScore) Validate(w *Window) error {
	if len(s.Start) != len(w.TokenIDs) || len(s.End) != len(w.TokenIDs) {
		return fmt.Errorf("score length %d/%d does not match window length %d",
			len(s.Start), len(s.End), len(w.TokenIDs))
	}
	return nil
}

// Candidate is one resolved answer span from a single window. CharStart and
// CharEnd are character offsets into the originating passage text; InContext
// reports whether both resolved positions landed on passage tokens. A
// candidate with degenerate geometry still enters the n-best pool.
type Candidate struct {
	Text         string
	StartLogit   float64
	EndLogit     float64
	Score        float64
	CharStart    int
	CharEnd      int
	PassageIndex int
	InContext    bool
}

// NBestEntry is one ranked alternative answer. The combined score is consumed
// when the probability is assigned and is not exposed downstream.
type NBestEntry struct {
	Text        string  `json:"text"`
	StartLogit  float64 `json:"start_logit"`
	EndLogit    float64 `json:"end_logit"`
	Probability float64 `json:"probability"`
}

// QuestionResult is the final output for one question: the promoted best
// answer (possibly empty) plus the probability-ranked shortlist. Written
// once, immutable thereafter.
type QuestionResult struct {
	QuestionID string       `json:"question_id"`
	BestAnswer string       `json:"best_answer"`
	NBest      []NBestEntry `json:"n_best"`
}
