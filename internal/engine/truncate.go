package engine

import "unicode/utf8"

const truncationSuffix = "...<truncated>"

// DeltaTruncateLimit bounds a single streamed text delta (§4.5.3).
const DeltaTruncateLimit = 4 * 1024

// StoredTruncateLimit bounds persisted/final text, e.g. a finalized
// assistant message or a tool result (§4.5.3).
const StoredTruncateLimit = 16 * 1024

// truncate cuts s to at most limit bytes on a UTF-8 rune boundary and
// appends truncationSuffix, never splitting a multi-byte rune. A s
// already within limit is returned unchanged.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + truncationSuffix
}
