package ingest

import (
	"testing"

	payloadschema "collate/schema"
)

func TestBuildFieldsNormalizesOnce(t *testing.T) {
	t.Parallel()

	year := 2019
	identifier := " 10.1000/XYZ123 "
	lang := "EN_us"
	record := &payloadschema.Record{
		PayloadVersion: "v1",
		Title:          "The Effects of X on Y",
		Authors:        []string{"van den Berg, Jan", "Smith, Jane"},
		PubYear:        &year,
		Identifier:     &identifier,
		Language:       &lang,
	}

	fields := buildFields(record)

	if fields.NormTitle == nil || *fields.NormTitle != "effects x y" {
		t.Fatalf("unexpected norm_title %v", fields.NormTitle)
	}
	if fields.NormFirstAuthor == nil || *fields.NormFirstAuthor != "van den berg" {
		t.Fatalf("unexpected norm_first_author %v", fields.NormFirstAuthor)
	}
	if fields.NormIdentifier == nil || *fields.NormIdentifier != "10.1000/xyz123" {
		t.Fatalf("unexpected norm_identifier %v", fields.NormIdentifier)
	}
	if fields.Language == nil || *fields.Language != "en" {
		t.Fatalf("unexpected language %v", fields.Language)
	}
	if len(fields.Authors) == 0 {
		t.Fatalf("expected authors to be serialized")
	}
}

func TestBuildFieldsAbsentFieldsStayNil(t *testing.T) {
	t.Parallel()

	lang := "de"
	record := &payloadschema.Record{
		PayloadVersion: "v1",
		Title:          "of the and",
		Language:       &lang,
	}

	fields := buildFields(record)

	// Every token is a stop word, so the normalized title is absent even
	// though the raw title is not.
	if fields.NormTitle != nil {
		t.Fatalf("expected nil norm_title, got %q", *fields.NormTitle)
	}
	if fields.NormFirstAuthor != nil {
		t.Fatalf("expected nil norm_first_author, got %q", *fields.NormFirstAuthor)
	}
	if fields.NormIdentifier != nil {
		t.Fatalf("expected nil norm_identifier, got %q", *fields.NormIdentifier)
	}
	if fields.PubYear != nil {
		t.Fatalf("expected nil pub_year")
	}
}
