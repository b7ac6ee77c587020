package window

import (
	"hash/fnv"
	"strings"
	"unicode"
)

// Token is one tokenizer output unit with its character span in the source
// text. Start and End are byte offsets into the original string.
type Token struct {
	ID    int
	Start int
	End   int
}

// Tokenizer converts text into tokens carrying character offsets.
// Implementations must be total for well-formed text: tokenization never
// fails, it only produces zero tokens for empty or all-space input.
type Tokenizer interface {
	Tokenize(text string) []Token
}

// Special token ids follow the BERT vocabulary convention.
const (
	PadID = 0
	UnkID = 100
	ClsID = 101
	SepID = 102

	// hashIDFloor keeps hashed ids clear of the special-token range.
	hashIDFloor = 999
	vocabSize   = 30522
)

// WordTokenizer is a deterministic word-level tokenizer. Runs of letters,
// digits, and in-word apostrophes form one token; every other non-space rune
// is a token of its own. Ids are stable hashes of the (optionally lowercased)
// surface form, so identical text always produces identical sequences.
type WordTokenizer struct {
	lowercase bool
}

// NewWordTokenizer creates a word-level tokenizer. When lowercase is true,
// token ids are case-insensitive while character offsets still reference the
// original text.
func NewWordTokenizer(lowercase bool) *WordTokenizer {
	return &WordTokenizer{lowercase: lowercase}
}

// Tokenize splits text into tokens and records each token's byte span.
func (t *WordTokenizer) Tokenize(text string) []Token {
	var tokens []Token

	wordStart := -1
	flush := func(end int) {
		if wordStart == -1 {
			return
		}
		tokens = append(tokens, t.token(text, wordStart, end))
		wordStart = -1
	}

	for i, r := range text {
		switch {
		case unicode.IsSpace(r):
			flush(i)
		case isWordRune(r):
			if wordStart == -1 {
				wordStart = i
			}
		default:
			// Punctuation and symbols become standalone tokens.
			flush(i)
			tokens = append(tokens, t.token(text, i, i+len(string(r))))
		}
	}
	flush(len(text))

	return tokens
}

func (t *WordTokenizer) token(text string, start, end int) Token {
	surface := text[start:end]
	if t.lowercase {
		surface = strings.ToLower(surface)
	}
	return Token{ID: hashID(surface), Start: start, End: end}
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '\''
}

// hashID maps a surface form onto a stable id above the special-token range.
func hashID(surface string) int {
	h := fnv.New32a()
	h.Write([]byte(surface))
	span := vocabSize - hashIDFloor
	return hashIDFloor + int(h.Sum32()%uint32(span))
}
