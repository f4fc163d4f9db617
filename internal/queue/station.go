package queue

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var stationTitleCaser = cases.Title(language.Indonesian)

// StationKey derives a stable lowercase key from a broadcaster's display
// name. Diacritics are stripped and runs of non-alphanumerics collapse to a
// single underscore, so "TV One" and "tv-one" map to the same key.
func StationKey(name string) string {
	stripped := stripDiacritics(strings.TrimSpace(name))
	var b strings.Builder
	b.Grow(len(stripped))
	lastUnderscore := true
	for _, r := range strings.ToLower(stripped) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}

// StationTitle normalizes a broadcaster name for display. All-lowercase
// submissions are title-cased; names with any uppercase keep their branding
// ("TV One" stays "TV One").
func StationTitle(name string) string {
	trimmed := strings.Join(strings.Fields(name), " ")
	if trimmed == "" {
		return ""
	}
	if strings.IndexFunc(trimmed, unicode.IsUpper) >= 0 {
		return trimmed
	}
	return stationTitleCaser.String(trimmed)
}

func stripDiacritics(value string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, value)
	if err != nil {
		return value
	}
	return out
}
