package parsers

import (
	"strings"
	"unicode"

	"github.com/pocketwise/server/internal/agent/model"
)

// basic safety limit to avoid pathological classifier output
const maxContentLen = 4 * 1024

// ParseIntentResponse normalises a classifier completion into an intent
// label. Models wrap the label in fences, quotes or prose often enough
// that a bare string compare misses; anything unrecognisable maps to the
// unknown intent.
func ParseIntentResponse(content string) model.Intent {
	if len(content) > maxContentLen {
		content = content[:maxContentLen]
	}

	s := strings.TrimSpace(content)
	s = stripCodeFence(s)
	s = strings.Trim(s, "\"'` \t\r\n")

	// first non-empty line carries the label
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = strings.TrimSpace(s[:i])
	}

	// keep the first token; drop trailing prose or punctuation
	s = firstToken(s)
	s = strings.TrimFunc(s, func(r rune) bool {
		return unicode.IsPunct(r) && r != '_'
	})

	return model.ParseIntent(strings.ToLower(s))
}

func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	// drop an optional language tag on the fence line
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	if i := strings.LastIndex(s, "```"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

func firstToken(s string) string {
	for i, r := range s {
		if unicode.IsSpace(r) {
			return s[:i]
		}
	}
	return s
}
