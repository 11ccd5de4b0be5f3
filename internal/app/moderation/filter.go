package moderation

import (
	"strings"
	"unicode/utf8"

	goaway "github.com/TwiN/go-away"
)

// ContentFilter rewrites chat text before it is relayed.
type ContentFilter interface {
	Clean(text string) string
}

// ProfanityFilter masks profanity with go-away.
type ProfanityFilter struct {
	detector *goaway.ProfanityDetector
}

func NewProfanityFilter() *ProfanityFilter {
	return &ProfanityFilter{detector: goaway.NewProfanityDetector()}
}

func (f *ProfanityFilter) Clean(text string) string {
	return f.detector.Censor(text)
}

// NopFilter leaves text untouched.
type NopFilter struct{}

func (NopFilter) Clean(text string) string { return text }

var emotes = strings.NewReplacer(
	":smile:", "🙂",
	":laugh:", "😂",
	":wink:", "😉",
	":sad:", "🙁",
	":heart:", "❤️",
	":thumbsup:", "👍",
	":cards:", "🃏",
)

// ExpandEmotes replaces emote codes such as :smile: with their glyphs.
func ExpandEmotes(text string) string {
	return emotes.Replace(text)
}

// Truncate caps text at max runes. max <= 0 disables the cap.
func Truncate(text string, max int) string {
	if max <= 0 || utf8.RuneCountInString(text) <= max {
		return text
	}
	n := 0
	for i := range text {
		if n == max {
			return text[:i]
		}
		n++
	}
	return text
}

// ChatPipeline prepares a chat line for relaying.
type ChatPipeline struct {
	Filter ContentFilter
	MaxLen int
}

// Process returns the cleaned text and false if nothing is left to send.
func (p ChatPipeline) Process(text string) (string, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", false
	}
	text = Truncate(text, p.MaxLen)
	if p.Filter != nil {
		text = p.Filter.Clean(text)
	}
	return ExpandEmotes(text), true
}
