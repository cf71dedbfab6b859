package market

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// artifactPrefix is junk some upstream titles carry glued onto the question,
// as in "archWill X happen?".
const artifactPrefix = "arch"

// dedupKeyLength is how many runes of the folded question identify an event.
const dedupKeyLength = 80

// NormalizeQuestion cleans question text for display and keying. It is
// idempotent.
func NormalizeQuestion(s string) string {
	for {
		next := stripLeadingJunk(stripArtifact(s))
		if next == s {
			break
		}
		s = next
	}
	return strings.Join(strings.Fields(s), " ")
}

// stripArtifact removes the artifact prefix unless it is the start of a real
// word, which is the case when a lowercase letter follows ("Archbishop").
func stripArtifact(s string) string {
	if len(s) < len(artifactPrefix) || !strings.EqualFold(s[:len(artifactPrefix)], artifactPrefix) {
		return s
	}
	rest := s[len(artifactPrefix):]
	if r, _ := utf8.DecodeRuneInString(rest); unicode.IsLower(r) {
		return s
	}
	return rest
}

func stripLeadingJunk(s string) string {
	return strings.TrimLeftFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// DedupKey derives the identity of the real-world question behind q:
// case-folded, punctuation dropped, whitespace collapsed, truncated.
func DedupKey(q string) string {
	var b strings.Builder
	b.Grow(len(q))
	for _, r := range strings.ToLower(NormalizeQuestion(q)) {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}
	key := []rune(strings.Join(strings.Fields(b.String()), " "))
	if len(key) > dedupKeyLength {
		key = key[:dedupKeyLength]
	}
	return strings.TrimSpace(string(key))
}
