// Package tokenize turns QA text into the filtered token sets that MinHash
// signatures are built from.
package tokenize

import (
	"bufio"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode"

	"github.com/go-ego/gse"
)

//go:embed stopwords.txt
var defaultStopWords string

// ErrStopWords is returned when the stop-word resource is missing or empty.
var ErrStopWords = errors.New("stop-word resource is empty")

var (
	segmenterOnce sync.Once
	segmenter     gse.Segmenter
	segmenterErr  error
)

// TokenSet is an unordered set of tokens.
type TokenSet map[string]struct{}

// Contains reports whether the set holds token.
func (s TokenSet) Contains(token string) bool {
	_, ok := s[token]
	return ok
}

// Tokenizer segments mixed CJK/Latin text and drops stop words.
// It holds no per-call state and is safe for concurrent use.
type Tokenizer struct {
	seg       *gse.Segmenter
	stopWords map[string]struct{}
}

// New creates a Tokenizer with the embedded stop-word list.
func New() (*Tokenizer, error) {
	return NewWithStopWords(defaultStopWords)
}

// NewWithStopWords creates a Tokenizer from a stop-word resource: one word
// per line, blank lines and '#' comments ignored. An empty resource is a
// construction error.
func NewWithStopWords(resource string) (*Tokenizer, error) {
	stopWords := parseStopWords(resource)
	if len(stopWords) == 0 {
		return nil, ErrStopWords
	}

	seg, err := getSegmenter()
	if err != nil {
		return nil, err
	}

	return &Tokenizer{
		seg:       seg,
		stopWords: stopWords,
	}, nil
}

// Tokenize returns the filtered token set for text. Empty or
// punctuation-only input yields an empty set.
func (t *Tokenizer) Tokenize(text string) TokenSet {
	cleaned := clean(text)
	set := make(TokenSet)
	if strings.TrimSpace(cleaned) == "" {
		return set
	}

	for _, token := range t.seg.Cut(cleaned, true) {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		if t.IsStopWord(token) {
			continue
		}
		set[token] = struct{}{}
	}
	return set
}

// IsStopWord reports whether token is on the stop-word list.
func (t *Tokenizer) IsStopWord(token string) bool {
	_, ok := t.stopWords[token]
	return ok
}

// StopWordCount returns the number of loaded stop words.
func (t *Tokenizer) StopWordCount() int {
	return len(t.stopWords)
}

// clean lower-cases text and replaces every rune that is neither a word
// character nor whitespace with a space.
func clean(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		case isWordRune(r):
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}
	return b.String()
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsNumber(r) || unicode.IsMark(r)
}

func parseStopWords(resource string) map[string]struct{} {
	words := make(map[string]struct{})
	scanner := bufio.NewScanner(strings.NewReader(resource))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		words[strings.ToLower(line)] = struct{}{}
	}
	return words
}

// getSegmenter loads the embedded dictionary once per process; the loaded
// segmenter is read-only afterwards.
func getSegmenter() (*gse.Segmenter, error) {
	segmenterOnce.Do(func() {
		if err := segmenter.LoadDictEmbed(); err != nil {
			segmenterErr = fmt.Errorf("load segmenter dictionary: %w", err)
		}
	})
	if segmenterErr != nil {
		return nil, segmenterErr
	}
	return &segmenter, nil
}
