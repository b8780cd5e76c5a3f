package normalize

import (
	"strings"
	"testing"
)

func TestTitle(t *testing.T) {
	t.Parallel()

	if got := Title("Effects of X on Y"); got != "effects x y" {
		t.Fatalf("unexpected normalized title: %q", got)
	}
	if got := Title("  The  Impact\tof   DIET: a review!  "); got != "impact diet review" {
		t.Fatalf("unexpected normalized title: %q", got)
	}
	if got := Title("Café au lait"); got != "café au lait" {
		t.Fatalf("expected accented letters to survive, got %q", got)
	}
	if got := Title("!!! ... ???"); got != "" {
		t.Fatalf("expected punctuation-only title to normalize to empty, got %q", got)
	}
	if got := Title(""); got != "" {
		t.Fatalf("expected empty input to stay empty, got %q", got)
	}
}

func TestTitleTruncation(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("word ", 100)
	got := Title(long)
	if len([]rune(got)) > maxTitleRunes {
		t.Fatalf("normalized title exceeds %d runes: %d", maxTitleRunes, len([]rune(got)))
	}
	if strings.HasSuffix(got, " ") {
		t.Fatalf("truncated title has trailing whitespace: %q", got)
	}
}

func TestFirstAuthor(t *testing.T) {
	t.Parallel()

	if got := FirstAuthor([]string{"Smith, John"}); got != "smith" {
		t.Fatalf("unexpected surname: %q", got)
	}
	if got := FirstAuthor([]string{"Smith, J"}); got != "smith" {
		t.Fatalf("unexpected surname: %q", got)
	}
	if got := FirstAuthor([]string{"John Smith", "Jane Doe"}); got != "smith" {
		t.Fatalf("expected last token of comma-less name, got %q", got)
	}
	if got := FirstAuthor([]string{"van den Berg, Jan"}); got != "van den berg" {
		t.Fatalf("expected multi-word surname to survive, got %q", got)
	}
	if got := FirstAuthor([]string{"O'Brien, Pat"}); got != "obrien" {
		t.Fatalf("expected apostrophe to be stripped, got %q", got)
	}
	if got := FirstAuthor(nil); got != "" {
		t.Fatalf("expected empty result for nil authors, got %q", got)
	}
	if got := FirstAuthor([]string{"   "}); got != "" {
		t.Fatalf("expected empty result for blank author, got %q", got)
	}
}

func TestIdentifier(t *testing.T) {
	t.Parallel()

	if got := Identifier(" 10.1/ABC "); got != "10.1/abc" {
		t.Fatalf("unexpected normalized identifier: %q", got)
	}
	if got := Identifier(""); got != "" {
		t.Fatalf("expected empty identifier to stay empty, got %q", got)
	}
}
