package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// maxTitleRunes caps normalized titles so match keys stay index-friendly.
const maxTitleRunes = 200

var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "of": {}, "in": {}, "on": {}, "at": {},
	"for": {}, "by": {}, "and": {}, "or": {}, "with": {}, "to": {},
	"from": {}, "is": {}, "are": {}, "was": {}, "were": {},
}

// Title normalizes a raw title for match-key construction: Unicode NFC,
// lowercase, punctuation stripped, stop words removed, whitespace collapsed,
// truncated to a fixed rune budget. Returns "" when nothing survives.
func Title(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}

	text := strings.ToLower(norm.NFC.String(trimmed))

	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}

	tokens := strings.Fields(b.String())
	kept := make([]string, 0, len(tokens))
	for _, token := range tokens {
		if _, skip := stopWords[token]; skip {
			continue
		}
		kept = append(kept, token)
	}

	result := strings.Join(kept, " ")
	runes := []rune(result)
	if len(runes) > maxTitleRunes {
		result = strings.TrimSpace(string(runes[:maxTitleRunes]))
	}
	return result
}

// FirstAuthor extracts a normalized surname from the first author string.
// Everything before the first comma is the surname; comma-less names fall
// back to the last whitespace token. Multi-word surnames survive:
// "van den Berg, Jan" -> "van den berg".
func FirstAuthor(authors []string) string {
	if len(authors) == 0 {
		return ""
	}
	first := strings.TrimSpace(authors[0])
	if first == "" {
		return ""
	}

	var surname string
	if idx := strings.Index(first, ","); idx >= 0 {
		surname = first[:idx]
	} else {
		fields := strings.Fields(first)
		surname = fields[len(fields)-1]
	}

	surname = strings.ToLower(surname)
	var b strings.Builder
	b.Grow(len(surname))
	for _, r := range surname {
		if (r >= 'a' && r <= 'z') || r == ' ' {
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Identifier normalizes an external identifier such as a DOI.
func Identifier(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}
