package risposta

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/soundprediction/risposta/pkg/predictions"
	"github.com/soundprediction/risposta/pkg/types"
)

// Answer runs the extraction pipeline for one question: window every passage,
// score the windows in batches, resolve one candidate span per window, then
// consolidate, rank, and sanitize. Passage order is retrieval rank order.
func (c *Client) Answer(ctx context.Context, question types.Question, passages []types.Passage) (*types.QuestionResult, error) {
	if err := question.Validate(); err != nil {
		return nil, err
	}

	var windows []types.Window
	for i, passage := range passages {
		w, err := c.windower.Windows(question.Text, passage.Text, i)
		if err != nil {
			return nil, fmt.Errorf("windowing passage %d for question %s: %w", i, question.ID, err)
		}
		windows = append(windows, w...)
	}

	if len(windows) == 0 {
		return &types.QuestionResult{
			QuestionID: question.ID,
			BestAnswer: "",
			NBest:      []types.NBestEntry{},
		}, nil
	}

	scores, err := c.scoreWindows(ctx, windows)
	if err != nil {
		return nil, err
	}
	if err := c.scorer.ReleaseTransient(ctx); err != nil {
		c.logger.Warn("failed to release scorer transient memory",
			"question", question.ID, "error", err)
	}

	agg := newConsolidator(c.config.MaxAnswerLength)
	for i := range windows {
		passageText := passages[windows[i].PassageIndex].Text
		agg.add(resolveSpan(&windows[i], &scores[i], passageText))
	}

	nbest := rankCandidates(agg.pool, c.config.NBestSize)
	best := SanitizeAnswer(agg.bestAnswer)

	c.logger.Debug("consolidated answer",
		"question", question.ID,
		"passages", len(passages),
		"windows", len(windows),
		"candidates", len(agg.pool),
		"n_best", len(nbest))

	return &types.QuestionResult{
		QuestionID: question.ID,
		BestAnswer: best,
		NBest:      nbest,
	}, nil
}

// AnswerQuestion retrieves passages for the question and then answers it.
func (c *Client) AnswerQuestion(ctx context.Context, question types.Question) (*types.QuestionResult, error) {
	passages, err := c.Retrieve(ctx, question.Text)
	if err != nil {
		return nil, err
	}
	return c.Answer(ctx, question, passages)
}

// AnswerBatch processes questions strictly in order, one at a time. Any
// scorer, retriever, or input error aborts the whole run; per-question
// no-answer outcomes do not.
func (c *Client) AnswerBatch(ctx context.Context, questions []types.Question) (*predictions.Store, error) {
	if c.retriever == nil {
		return nil, ErrNoRetriever
	}

	store := predictions.NewStore()
	for i, question := range questions {
		result, err := c.AnswerQuestion(ctx, question)
		if err != nil {
			return nil, fmt.Errorf("question %s: %w", question.ID, err)
		}
		if err := store.Record(result); err != nil {
			return nil, err
		}
		c.logger.Info("answered question",
			"id", question.ID,
			"progress", fmt.Sprintf("%d/%d", i+1, len(questions)))
	}
	return store, nil
}

// scoreWindows submits windows to the scorer in fixed-size batches, one batch
// at a time, preserving window order across the returned scores.
func (c *Client) scoreWindows(ctx context.Context, windows []types.Window) ([]types.WindowScore, error) {
	scores := make([]types.WindowScore, 0, len(windows))
	for start := 0; start < len(windows); start += c.config.BatchSize {
		end := start + c.config.BatchSize
		if end > len(windows) {
			end = len(windows)
		}
		batch, err := c.scorer.Score(ctx, windows[start:end])
		if err != nil {
			return nil, fmt.Errorf("scoring batch at window %d: %w", start, err)
		}
		if len(batch) != end-start {
			return nil, fmt.Errorf("scorer returned %d scores for batch of %d", len(batch), end-start)
		}
		scores = append(scores, batch...)
	}
	return scores, nil
}

// resolveSpan picks the start and end token positions independently by argmax
// and maps them through the offset mapping to a character span in the source
// passage. Start and end are never jointly constrained, so a resolved pair
// can be inverted or land on non-context tokens; the degenerate candidate
// stays eligible for the n-best pool.
func resolveSpan(w *types.Window, score *types.WindowScore, passageText string) types.Candidate {
	startIdx := argmax(score.Start)
	endIdx := argmax(score.End)
	startOffset := w.Offsets[startIdx]
	endOffset := w.Offsets[endIdx]

	charStart := startOffset.Start
	charEnd := endOffset.End
	return types.Candidate{
		Text:         sliceSpan(passageText, charStart, charEnd),
		StartLogit:   score.Start[startIdx],
		EndLogit:     score.End[endIdx],
		Score:        score.Start[startIdx] + score.End[endIdx],
		CharStart:    charStart,
		CharEnd:      charEnd,
		PassageIndex: w.PassageIndex,
		InContext:    startOffset.Context && endOffset.Context,
	}
}

// argmax returns the index of the first maximum value.
func argmax(values []float64) int {
	best := 0
	for i, v := range values {
		if v > values[best] {
			best = i
		}
	}
	return best
}

// sliceSpan slices text by byte offsets; inverted or out-of-range spans yield
// the empty string.
func sliceSpan(text string, start, end int) string {
	if start < 0 {
		start = 0
	}
	if end > len(text) {
		end = len(text)
	}
	if start >= end {
		return ""
	}
	return text[start:end]
}

// consolidator tracks the running best valid span and the full candidate pool
// for one question. A fresh value is built per question so no best-answer
// state leaks across questions.
type consolidator struct {
	maxAnswerLength int
	bestScore       float64
	bestAnswer      string
	pool            []types.Candidate
}

func newConsolidator(maxAnswerLength int) *consolidator {
	return &consolidator{maxAnswerLength: maxAnswerLength}
}

// add appends the candidate to the pool unconditionally, then promotes it to
// the running best only when the span is non-empty, well ordered, within the
// answer length cap, resolved inside passage context, and strictly improves
// on the best score. Ties keep the earlier candidate, which favors higher
// retrieval rank. The zero initial best score means a candidate with a
// non-positive combined score never replaces the empty default answer.
func (a *consolidator) add(candidate types.Candidate) {
	a.pool = append(a.pool, candidate)

	if candidate.CharStart == candidate.CharEnd || candidate.CharEnd < candidate.CharStart {
		return
	}
	if candidate.CharEnd-candidate.CharStart > a.maxAnswerLength {
		return
	}
	if !candidate.InContext {
		return
	}
	if candidate.Score <= a.bestScore {
		return
	}
	a.bestScore = candidate.Score
	a.bestAnswer = candidate.Text
}

// rankCandidates sorts the pool by combined score descending with encounter
// order as tiebreak, truncates to limit, and assigns each survivor a
// probability via a stabilized softmax over the retained scores. The combined
// score itself is not exposed downstream.
func rankCandidates(pool []types.Candidate, limit int) []types.NBestEntry {
	ranked := make([]types.Candidate, len(pool))
	copy(ranked, pool)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	if len(ranked) == 0 {
		return []types.NBestEntry{}
	}

	maxScore := ranked[0].Score
	weights := make([]float64, len(ranked))
	var sum float64
	for i, candidate := range ranked {
		weights[i] = math.Exp(candidate.Score - maxScore)
		sum += weights[i]
	}

	entries := make([]types.NBestEntry, len(ranked))
	for i, candidate := range ranked {
		entries[i] = types.NBestEntry{
			Text:        candidate.Text,
			StartLogit:  candidate.StartLogit,
			EndLogit:    candidate.EndLogit,
			Probability: weights[i] / sum,
		}
	}
	return entries
}

// quoteRuns matches runs of one or two double-quote characters.
var quoteRuns = regexp.MustCompile(`""?`)

// SanitizeAnswer normalizes a promoted answer string. Rules apply in order:
// trim surrounding whitespace, drop literal backslashes, collapse runs of one
// or two double quotes into a single quote, then strip one leading and one
// trailing quote. Later rules depend on earlier ones, so the order is fixed.
func SanitizeAnswer(answer string) string {
	answer = strings.TrimSpace(answer)
	answer = strings.ReplaceAll(answer, `\`, "")
	answer = quoteRuns.ReplaceAllString(answer, `"`)
	answer = strings.TrimPrefix(answer, `"`)
	answer = strings.TrimSuffix(answer, `"`)
	return answer
}
