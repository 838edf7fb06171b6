// Package tokenizer turns raw text into index terms. The same pipeline runs
// over documents and queries so both sides share one vocabulary: lower-case,
// split into runs of ASCII letters, drop stop-words, strip one suffix.
package tokenizer

import (
	"regexp"
	"sort"
	"strings"
)

var stopWords = map[string]struct{}{
	"is": {}, "the": {}, "of": {}, "and": {}, "to": {},
	"in": {}, "a": {}, "that": {}, "for": {}, "with": {},
	"this": {}, "on": {}, "as": {}, "by": {}, "an": {},
}

// suffixes are tried in this order; the first match wins.
var suffixes = []string{"ing", "ly", "ed", "s", "es", "er", "est"}

// Processor runs the text pipeline. It holds no mutable state and is safe for
// concurrent use.
type Processor struct {
	pattern *regexp.Regexp
}

// New returns a Processor.
func New() *Processor {
	return &Processor{
		pattern: regexp.MustCompile(`[a-z]+`),
	}
}

// Process tokenizes text, removes stop-words and stems what remains. The
// result is never nil.
func (p *Processor) Process(text string) []string {
	tokens := p.RemoveStopWords(p.Tokenize(text))
	for i, token := range tokens {
		tokens[i] = Stem(token)
	}
	return tokens
}

// Tokenize lower-cases text and returns its maximal runs of ASCII letters in
// order. Digits, punctuation and whitespace only separate tokens.
func (p *Processor) Tokenize(text string) []string {
	words := p.pattern.FindAllString(strings.ToLower(text), -1)
	if words == nil {
		return []string{}
	}
	return words
}

// RemoveStopWords returns the tokens that are not stop-words, keeping order.
func (p *Processor) RemoveStopWords(tokens []string) []string {
	kept := make([]string, 0, len(tokens))
	for _, token := range tokens {
		if IsStopWord(token) {
			continue
		}
		kept = append(kept, token)
	}
	return kept
}

// Stem strips the first matching suffix from word. A suffix is only stripped
// when the word is longer than the suffix plus two, so short words such as
// "is" or "as" survive unchanged and a stem is never empty.
func Stem(word string) string {
	for _, suffix := range suffixes {
		if strings.HasSuffix(word, suffix) && len(word) > len(suffix)+2 {
			return word[:len(word)-len(suffix)]
		}
	}
	return word
}

// IsStopWord reports whether token is in the fixed stop-word set.
func IsStopWord(token string) bool {
	_, ok := stopWords[token]
	return ok
}

// StopWords returns the stop-word set in sorted order.
func StopWords() []string {
	words := make([]string, 0, len(stopWords))
	for w := range stopWords {
		words = append(words, w)
	}
	sort.Strings(words)
	return words
}
