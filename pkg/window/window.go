// Package window turns (question, passage) text pairs into fixed-length
// token windows with sliding-window overflow handling.
//
// Each window holds the full question segment followed by a chunk of passage
// tokens; only the passage portion slides. Adjacent windows overlap by a
// configurable number of passage tokens so that spans near a chunk boundary
// appear whole in at least one window. Every token position carries an offset
// mapping back to the passage text, with a non-context sentinel for question,
// special, and padding positions.
package window

import (
	"errors"
	"fmt"

	"github.com/soundprediction/risposta/pkg/types"
)

// ErrGeometry is returned when the configured window cannot hold the
// question segment plus at least one passage token, or when the stride
// prevents the window from advancing. Both indicate a fatal misconfiguration.
var ErrGeometry = errors.New("window geometry impossible")

const (
	// DefaultMaxLength is the total token length of one window.
	DefaultMaxLength = 384
	// DefaultStride is the passage-token overlap between adjacent windows.
	DefaultStride = 128
)

// Config holds windowing parameters.
type Config struct {
	// MaxLength is the fixed total window length in tokens, padding included.
	MaxLength int
	// Stride is the number of passage tokens shared by adjacent windows.
	Stride int
	// Lowercase controls token-id case folding in the default tokenizer.
	Lowercase bool
}

// SlidingWindower produces token windows for (question, passage) pairs.
type SlidingWindower struct {
	tokenizer Tokenizer
	maxLength int
	stride    int
}

// New creates a SlidingWindower with the given tokenizer. A nil tokenizer
// selects the built-in word tokenizer.
func New(tokenizer Tokenizer, config Config) *SlidingWindower {
	if config.MaxLength <= 0 {
		config.MaxLength = DefaultMaxLength
	}
	if config.Stride <= 0 {
		config.Stride = DefaultStride
	}
	if tokenizer == nil {
		tokenizer = NewWordTokenizer(config.Lowercase)
	}
	return &SlidingWindower{
		tokenizer: tokenizer,
		maxLength: config.MaxLength,
		stride:    config.Stride,
	}
}

// Windows tokenizes one (question, passage) pair into one or more windows of
// exactly MaxLength tokens. The question tokens are re-prepended to every
// window; the passage chunk advances so that consecutive windows share
// Stride passage tokens. passageIndex is stamped onto every produced window.
//
// Layout per window: [CLS] question [SEP] passage-chunk [SEP] padding.
func (s *SlidingWindower) Windows(questionText, passageText string, passageIndex int) ([]types.Window, error) {
	qTokens := s.tokenizer.Tokenize(questionText)
	pTokens := s.tokenizer.Tokenize(passageText)

	// CLS, the separator after the question, and the final separator.
	capacity := s.maxLength - len(qTokens) - 3
	if capacity < 1 {
		return nil, fmt.Errorf("%w: max length %d leaves no room for passage tokens after %d question tokens",
			ErrGeometry, s.maxLength, len(qTokens))
	}
	if len(pTokens) > capacity && s.stride >= capacity {
		return nil, fmt.Errorf("%w: stride %d must be smaller than passage capacity %d",
			ErrGeometry, s.stride, capacity)
	}

	var windows []types.Window
	step := capacity - s.stride
	for start := 0; ; start += step {
		end := start + capacity
		if end > len(pTokens) {
			end = len(pTokens)
		}
		windows = append(windows, s.build(qTokens, pTokens[start:end], passageIndex))
		if end >= len(pTokens) {
			break
		}
	}
	return windows, nil
}

// build assembles one fixed-length window from the question tokens and a
// passage chunk.
func (s *SlidingWindower) build(qTokens []Token, chunk []Token, passageIndex int) types.Window {
	w := types.Window{
		TokenIDs:      make([]int, 0, s.maxLength),
		AttentionMask: make([]int, 0, s.maxLength),
		Offsets:       make([]types.Offset, 0, s.maxLength),
		PassageIndex:  passageIndex,
	}

	push := func(id int, attend int, off types.Offset) {
		w.TokenIDs = append(w.TokenIDs, id)
		w.AttentionMask = append(w.AttentionMask, attend)
		w.Offsets = append(w.Offsets, off)
	}

	push(ClsID, 1, types.Offset{})
	for _, t := range qTokens {
		push(t.ID, 1, types.Offset{})
	}
	push(SepID, 1, types.Offset{})
	for _, t := range chunk {
		push(t.ID, 1, types.Offset{Start: t.Start, End: t.End, Context: true})
	}
	push(SepID, 1, types.Offset{})

	for len(w.TokenIDs) < s.maxLength {
		push(PadID, 0, types.Offset{})
	}
	return w
}
