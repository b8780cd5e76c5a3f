package matchkey

import (
	"fmt"
	"strings"
)

// Preset names an ordered fallback of evidence tiers for match-key
// construction. The set is fixed; custom strategies are expressed through
// the strategy config row, not new presets.
type Preset string

const (
	PresetDOIFirstStrict Preset = "doi-first-strict"
	PresetDOIFirstMedium Preset = "doi-first-medium"
	PresetStrict         Preset = "strict"
	PresetMedium         Preset = "medium"
	PresetLoose          Preset = "loose"
)

// Basis labels the evidence tier that produced a match key. The labels match
// the key prefixes and are persisted, so they must not change.
type Basis string

const (
	BasisIdentifier      Basis = "id"
	BasisTitleAuthorYear Basis = "tay"
	BasisTitleYear       Basis = "ty"
	BasisTitleAuthor     Basis = "ta"
	BasisNone            Basis = "none"
)

// ParsePreset validates a stored preset name.
func ParsePreset(raw string) (Preset, error) {
	preset := Preset(strings.ToLower(strings.TrimSpace(raw)))
	switch preset {
	case PresetDOIFirstStrict, PresetDOIFirstMedium, PresetStrict, PresetMedium, PresetLoose:
		return preset, nil
	}
	return "", fmt.Errorf("unknown match strategy preset %q", raw)
}

// Compute derives the cluster key and evidence tier for one source item from
// its precomputed normalized fields. Empty strings and a zero year mean the
// field is absent. An empty key means no reliable merge basis exists; the
// item stays isolated. Pure: identical inputs always produce identical
// output, which is what makes re-clustering idempotent.
func Compute(title, author string, year int, identifier string, preset Preset) (string, Basis) {
	switch preset {
	case PresetDOIFirstStrict:
		if identifier != "" {
			return identifierKey(identifier), BasisIdentifier
		}
		return titleAuthorYearKey(title, author, year)
	case PresetDOIFirstMedium:
		if identifier != "" {
			return identifierKey(identifier), BasisIdentifier
		}
		return titleYearKey(title, year)
	case PresetStrict:
		return titleAuthorYearKey(title, author, year)
	case PresetMedium:
		return titleYearKey(title, year)
	case PresetLoose:
		if title != "" && author != "" {
			return fmt.Sprintf("ta:%s|%s", title, author), BasisTitleAuthor
		}
	}
	return "", BasisNone
}

func identifierKey(identifier string) string {
	return "id:" + identifier
}

func titleAuthorYearKey(title, author string, year int) (string, Basis) {
	if title != "" && author != "" && year != 0 {
		return fmt.Sprintf("tay:%s|%s|%d", title, author, year), BasisTitleAuthorYear
	}
	return "", BasisNone
}

func titleYearKey(title string, year int) (string, Basis) {
	if title != "" && year != 0 {
		return fmt.Sprintf("ty:%s|%d", title, year), BasisTitleYear
	}
	return "", BasisNone
}
