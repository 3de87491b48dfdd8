package ai

import (
	"strings"
	"unicode"
)

// Mode is the per-turn response configuration bundle.
type Mode string

const (
	ModeGreeting Mode = "greeting"
	ModeExtreme  Mode = "extreme"
	ModeHigh     Mode = "high"
	ModeNormal   Mode = "normal"
)

// complexWordLimit is the word count above which a message is answered in high mode.
const complexWordLimit = 25

var greetings = map[string]struct{}{
	"hi":           {},
	"hello":        {},
	"hey":          {},
	"greetings":    {},
	"sup":          {},
	"yo":           {},
	"good morning": {},
	"good evening": {},
}

var complexKeywords = []string{"explain", "comprehensive", "story", "code", "guide"}

// Classify selects the response mode for a message. The explicit flag always wins.
func Classify(message string, extreme bool) Mode {
	if extreme {
		return ModeExtreme
	}

	if _, ok := greetings[normalizeGreeting(message)]; ok {
		return ModeGreeting
	}

	if len(strings.Fields(message)) > complexWordLimit {
		return ModeHigh
	}
	lower := strings.ToLower(message)
	for _, keyword := range complexKeywords {
		if strings.Contains(lower, keyword) {
			return ModeHigh
		}
	}

	return ModeNormal
}

func normalizeGreeting(message string) string {
	trimmed := strings.TrimSpace(strings.ToLower(message))
	trimmed = strings.TrimFunc(trimmed, func(r rune) bool {
		return unicode.IsPunct(r) || unicode.IsSpace(r)
	})
	return trimmed
}
