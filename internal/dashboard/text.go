package dashboard

import (
	"strings"
	"unicode"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// foldToken trims, lower-cases and strips combining marks so that
// "Diseñador", "DISENADOR " and "disenador" compare equal.
func foldToken(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, strings.ToLower(strings.TrimSpace(s)))
	if err != nil {
		return strings.ToLower(strings.TrimSpace(s))
	}
	return folded
}

func containsAny(folded string, hints []string) bool {
	for _, h := range hints {
		if h = foldToken(h); h != "" && strings.Contains(folded, h) {
			return true
		}
	}
	return false
}

// newCollator returns a Spanish collator. Collators keep internal buffers,
// so every sort gets its own.
func newCollator() *collate.Collator {
	return collate.New(language.Spanish)
}

func uniqueNonEmpty(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
