package engine

import (
	"strings"
	"unicode/utf8"
)

// defaultTitlePrefix mirrors a freshly created session's placeholder
// title (the storage layer stamps new sessions with "New Session").
const defaultTitlePrefix = "New Session"

// isDefaultTitle reports whether title is still the placeholder a new
// session is created with.
func isDefaultTitle(title string) bool {
	return title == "" || title == defaultTitlePrefix || strings.HasPrefix(title, defaultTitlePrefix)
}

// DeriveTitle produces a short session title from the first user
// message's display text, grounded on the teacher's title.go cleanup
// heuristic (first non-empty line, 100-char ceiling) but deliberately
// LLM-free per SPEC_FULL.md's supplemented-features decision: the engine
// has no business making a model round trip just to name a session.
func DeriveTitle(userText string) string {
	text := strings.TrimSpace(userText)
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			text = line
			break
		}
	}

	if len(text) > 100 {
		cut := 97
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = strings.TrimSpace(text[:cut]) + "..."
	}

	return text
}
