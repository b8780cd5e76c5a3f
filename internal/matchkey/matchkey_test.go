package matchkey

import "testing"

func TestParsePreset(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"doi-first-strict", "doi-first-medium", "strict", "medium", "loose"} {
		if _, err := ParsePreset(name); err != nil {
			t.Fatalf("expected %q to parse: %v", name, err)
		}
	}
	if got, err := ParsePreset("  STRICT "); err != nil || got != PresetStrict {
		t.Fatalf("expected case-insensitive parse, got %q err=%v", got, err)
	}
	if _, err := ParsePreset("fuzzy"); err == nil {
		t.Fatal("expected unknown preset to be rejected")
	}
	if _, err := ParsePreset(""); err == nil {
		t.Fatal("expected empty preset to be rejected")
	}
}

func TestComputeIdentifierFirst(t *testing.T) {
	t.Parallel()

	key, basis := Compute("effects x y", "smith", 2020, "10.1/abc", PresetDOIFirstStrict)
	if key != "id:10.1/abc" || basis != BasisIdentifier {
		t.Fatalf("unexpected result: %q %q", key, basis)
	}

	// Identifier missing: doi-first-strict falls back to title+author+year.
	key, basis = Compute("effects x y", "smith", 2020, "", PresetDOIFirstStrict)
	if key != "tay:effects x y|smith|2020" || basis != BasisTitleAuthorYear {
		t.Fatalf("unexpected fallback: %q %q", key, basis)
	}

	// doi-first-medium falls back to title+year and ignores the author.
	key, basis = Compute("effects x y", "", 2020, "", PresetDOIFirstMedium)
	if key != "ty:effects x y|2020" || basis != BasisTitleYear {
		t.Fatalf("unexpected fallback: %q %q", key, basis)
	}
}

func TestComputeBibliographicPresets(t *testing.T) {
	t.Parallel()

	// strict ignores the identifier entirely.
	key, basis := Compute("effects x y", "smith", 2020, "10.1/abc", PresetStrict)
	if key != "tay:effects x y|smith|2020" || basis != BasisTitleAuthorYear {
		t.Fatalf("unexpected strict result: %q %q", key, basis)
	}

	key, basis = Compute("effects x y", "", 2020, "", PresetMedium)
	if key != "ty:effects x y|2020" || basis != BasisTitleYear {
		t.Fatalf("unexpected medium result: %q %q", key, basis)
	}

	key, basis = Compute("effects x y", "smith", 0, "", PresetLoose)
	if key != "ta:effects x y|smith" || basis != BasisTitleAuthor {
		t.Fatalf("unexpected loose result: %q %q", key, basis)
	}
}

func TestComputeDegradesToNone(t *testing.T) {
	t.Parallel()

	cases := []struct {
		title, author string
		year          int
		identifier    string
		preset        Preset
	}{
		{"", "", 0, "", PresetDOIFirstStrict},
		{"effects x y", "", 2020, "", PresetStrict},  // author missing
		{"effects x y", "smith", 0, "", PresetStrict}, // year missing
		{"", "smith", 2020, "", PresetMedium},         // title missing
		{"effects x y", "", 0, "", PresetLoose},       // author missing
	}
	for _, tc := range cases {
		key, basis := Compute(tc.title, tc.author, tc.year, tc.identifier, tc.preset)
		if key != "" || basis != BasisNone {
			t.Fatalf("expected (none, none) for %+v, got %q %q", tc, key, basis)
		}
	}
}

func TestComputeIsDeterministic(t *testing.T) {
	t.Parallel()

	presets := []Preset{PresetDOIFirstStrict, PresetDOIFirstMedium, PresetStrict, PresetMedium, PresetLoose}
	for _, preset := range presets {
		firstKey, firstBasis := Compute("effects x y", "smith", 2020, "10.1/abc", preset)
		for i := 0; i < 50; i++ {
			key, basis := Compute("effects x y", "smith", 2020, "10.1/abc", preset)
			if key != firstKey || basis != firstBasis {
				t.Fatalf("preset %q not deterministic: %q/%q vs %q/%q", preset, key, basis, firstKey, firstBasis)
			}
		}
	}
}
