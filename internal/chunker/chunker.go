// Package chunker splits content units into bounded, overlapping,
// sentence-aware chunks ready for embedding.
package chunker

import (
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/answercart/answercart/internal/core/domain"
)

// Engine produces chunks from content units. It is a pure function
// over its input; all I/O is the caller's responsibility.
type Engine struct {
	cfg domain.ChunkConfig
	now func() time.Time
}

// Option configures the engine.
type Option func(*Engine)

// WithClock overrides the chunk timestamp source. Useful for testing.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// New creates a chunking engine, validating the configuration.
func New(cfg domain.ChunkConfig, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		cfg: cfg,
		now: time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Chunk splits a content unit into sentence-aligned chunks of at most
// the configured size, carrying up to the configured overlap of
// sentence-aligned text into each following chunk. Empty or whitespace
// input yields no chunks; input shorter than the chunk size yields one.
//
// A single sentence longer than the chunk size is hard-cut into
// fixed-size pieces, each flagged HardCut.
func (e *Engine) Chunk(unit domain.ContentUnit) ([]domain.Chunk, error) {
	text := NormaliseText(unit.RawText)
	if text == "" {
		return nil, nil
	}

	sentences := SplitSentences(text)

	var chunks []domain.Chunk
	var window []string // sentences carried as overlap into the current chunk
	var body []string   // new sentences in the current chunk

	flush := func(hardCut bool) {
		content := strings.Join(append(append([]string{}, window...), body...), " ")
		if strings.TrimSpace(content) == "" {
			return
		}
		chunks = append(chunks, e.newChunk(unit, content, len(chunks), hardCut))
		window = carrySentences(append(window, body...), e.cfg.Overlap)
		body = body[:0]
	}

	for _, sentence := range sentences {
		if utf8.RuneCountInString(sentence) > e.cfg.ChunkSize {
			// Oversized sentence: close the open chunk, then hard-cut.
			if len(body) > 0 {
				flush(false)
			}
			window = nil
			for _, piece := range hardCut(sentence, e.cfg.ChunkSize) {
				chunks = append(chunks, e.newChunk(unit, piece, len(chunks), true))
			}
			continue
		}

		if !fits(window, body, sentence, e.cfg.ChunkSize) {
			if len(body) == 0 {
				// Only overlap in the window; shed it so the sentence fits.
				window = shrinkToFit(window, sentence, e.cfg.ChunkSize)
			} else {
				flush(false)
				window = shrinkToFit(window, sentence, e.cfg.ChunkSize)
			}
		}
		body = append(body, sentence)
	}

	if len(body) > 0 {
		flush(false)
	}

	return chunks, nil
}

// newChunk assembles a chunk with its derived fields.
func (e *Engine) newChunk(unit domain.ContentUnit, text string, position int, hard bool) domain.Chunk {
	return domain.Chunk{
		ID:             domain.ChunkID(unit.SourceID, position),
		SourceID:       unit.SourceID,
		SourceType:     unit.SourceType,
		Text:           text,
		TokenEstimate:  domain.EstimateTokens(text),
		ContentHash:    domain.HashContent(text),
		Position:       position,
		Quality:        QualityScore(text),
		HardCut:        hard,
		Language:       unit.Language,
		LastModifiedAt: unit.LastModifiedAt,
		CreatedAt:      e.now(),
	}
}

// fits reports whether adding sentence keeps the chunk within size.
// All sizes are measured in runes so multi-byte text packs the same
// number of characters per chunk as ASCII.
func fits(window, body []string, sentence string, size int) bool {
	length := utf8.RuneCountInString(sentence)
	for _, s := range window {
		length += utf8.RuneCountInString(s) + 1
	}
	for _, s := range body {
		length += utf8.RuneCountInString(s) + 1
	}
	return length <= size
}

// carrySentences returns the largest suffix of whole sentences whose
// joined length does not exceed overlap. Overlap is sentence-aligned:
// a trailing sentence longer than the overlap is not carried at all.
func carrySentences(sentences []string, overlap int) []string {
	if overlap <= 0 || len(sentences) == 0 {
		return nil
	}

	length := 0
	start := len(sentences)
	for i := len(sentences) - 1; i >= 0; i-- {
		add := utf8.RuneCountInString(sentences[i])
		if length > 0 {
			add++
		}
		if length+add > overlap {
			break
		}
		length += add
		start = i
	}
	if start == len(sentences) {
		return nil
	}
	return append([]string{}, sentences[start:]...)
}

// shrinkToFit drops leading overlap sentences until the new sentence
// fits within the chunk size.
func shrinkToFit(window []string, sentence string, size int) []string {
	for len(window) > 0 && !fits(window, nil, sentence, size) {
		window = window[1:]
	}
	if len(window) == 0 {
		return nil
	}
	return window
}

// hardCut splits an oversized sentence into fixed-size pieces. Cuts
// happen at rune boundaries so multi-byte characters never straddle
// two pieces.
func hardCut(sentence string, size int) []string {
	runes := []rune(sentence)
	var pieces []string
	for len(runes) > size {
		pieces = append(pieces, string(runes[:size]))
		runes = runes[size:]
	}
	if len(runes) > 0 {
		pieces = append(pieces, string(runes))
	}
	return pieces
}

// NormaliseText collapses all whitespace runs to single spaces and
// trims the ends. Chunk hashes are computed over normalised text so
// cosmetic whitespace changes never produce new chunks.
func NormaliseText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// abbreviations that end with a period but do not end a sentence.
var abbreviations = map[string]bool{
	"mr":     true,
	"mrs":    true,
	"ms":     true,
	"dr":     true,
	"prof":   true,
	"st":     true,
	"no":     true,
	"vs":     true,
	"etc":    true,
	"approx": true,
	"e.g":    true,
	"i.e":    true,
	"inc":    true,
	"ltd":    true,
	"co":     true,
}

// SplitSentences partitions normalised text into sentences. A boundary
// is a '.', '!' or '?' followed by whitespace and an upper-case letter
// or digit, unless the preceding token is a known abbreviation. The
// returned sentences joined with single spaces reconstruct the input.
func SplitSentences(text string) []string {
	if text == "" {
		return nil
	}

	var sentences []string
	runes := []rune(text)
	start := 0

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		if i+2 >= len(runes) {
			continue
		}
		if !unicode.IsSpace(runes[i+1]) {
			continue
		}
		next := runes[i+2]
		if !unicode.IsUpper(next) && !unicode.IsDigit(next) {
			continue
		}
		if r == '.' && isAbbreviation(runes[start:i]) {
			continue
		}
		sentences = append(sentences, string(runes[start:i+1]))
		start = i + 2
	}

	if start < len(runes) {
		sentences = append(sentences, string(runes[start:]))
	}
	return sentences
}

// isAbbreviation checks whether the text before a period ends in a
// known abbreviation or a single initial.
func isAbbreviation(before []rune) bool {
	s := string(before)
	idx := strings.LastIndexFunc(s, unicode.IsSpace)
	word := strings.ToLower(s[idx+1:])
	if word == "" {
		return false
	}
	if len([]rune(word)) == 1 {
		return true // single-letter initial, e.g. "J."
	}
	return abbreviations[word]
}

// TruncateAtSentence cuts text to at most max characters at the nearest
// preceding sentence boundary. When no boundary precedes the limit it
// falls back to the last word boundary rather than cutting mid-word.
func TruncateAtSentence(text string, max int) string {
	if utf8.RuneCountInString(text) <= max {
		return text
	}
	if max <= 0 {
		return ""
	}

	head := string([]rune(text)[:max])
	for i := len(head) - 1; i > 0; i-- {
		c := head[i]
		if c == '.' || c == '!' || c == '?' {
			return strings.TrimSpace(head[:i+1])
		}
	}

	if idx := strings.LastIndexFunc(head, unicode.IsSpace); idx > 0 {
		return strings.TrimSpace(head[:idx])
	}
	return head
}

// QualityScore assigns a static heuristic score in [0, 1] at chunk
// creation time. Text dominated by navigation separators, links or
// shouting is penalised so the reranker can prefer prose.
func QualityScore(text string) float64 {
	if text == "" {
		return 0
	}

	var letters, digits, separators, upper int
	for _, r := range text {
		switch {
		case unicode.IsLetter(r):
			letters++
			if unicode.IsUpper(r) {
				upper++
			}
		case unicode.IsDigit(r):
			digits++
		case r == '|' || r == '>' || r == '/' || r == '*' || r == '#':
			separators++
		}
	}

	total := len([]rune(text))
	score := float64(letters+digits) / float64(total)

	// Separator-heavy text reads like navigation or markup.
	if ratio := float64(separators) / float64(total); ratio > 0.05 {
		score -= ratio * 2
	}

	// Mostly-uppercase text reads like banner boilerplate.
	if letters > 0 {
		if ratio := float64(upper) / float64(letters); ratio > 0.5 {
			score -= (ratio - 0.5)
		}
	}

	// Very short fragments carry little answerable content.
	if total < 40 {
		score *= float64(total) / 40
	}

	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
