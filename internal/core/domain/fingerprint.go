package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"
)

// fingerprintContextTurns is how many trailing turns participate in the
// fingerprint. It matches the window the rewriter resolves follow-ups
// against, so "what else?" after different subjects keys differently.
const fingerprintContextTurns = 2

// Fingerprint derives the deterministic cache/single-flight key for a
// request: normalized query text, language tag, and a digest of the
// trailing conversation context. Equal fingerprints are treated as the
// same logical request.
func Fingerprint(query RawQuery, context ConversationContext) string {
	normalized := query.Normalize()

	h := sha256.New()
	h.Write([]byte(normalizeQueryText(normalized.Text)))
	h.Write([]byte{0})
	h.Write([]byte(normalized.Language))
	h.Write([]byte{0})
	for _, turn := range context.Tail(fingerprintContextTurns) {
		h.Write([]byte(normalizeQueryText(turn.Question)))
		h.Write([]byte{1})
		h.Write([]byte(normalizeQueryText(turn.Answer)))
		h.Write([]byte{1})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// normalizeQueryText lowercases and collapses whitespace so trivially
// reformatted duplicates share a fingerprint.
func normalizeQueryText(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	space := false
	for _, r := range strings.TrimSpace(s) {
		if unicode.IsSpace(r) {
			space = true
			continue
		}
		if space && b.Len() > 0 {
			b.WriteByte(' ')
		}
		space = false
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}
