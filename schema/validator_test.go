package payloadschema

import (
	"encoding/json"
	"testing"
)

func TestValidateRecordPayloadAcceptsFullRecord(t *testing.T) {
	t.Parallel()

	payload := json.RawMessage(`{
		"payload_version": "v1",
		"title": "Effects of X on Y",
		"abstract": "We study the effects of X on Y.",
		"authors": ["Smith, Jane", "Doe, John"],
		"pub_year": 2019,
		"journal": "Journal of Examples",
		"volume": "12",
		"issue": "3",
		"pages": "101-110",
		"identifier": "10.1000/xyz123",
		"source_metadata": {"import_batch": "2024-01"}
	}`)

	record, err := ValidateRecordPayload(payload)
	if err != nil {
		t.Fatalf("expected valid payload, got %v", err)
	}
	if record.Title != "Effects of X on Y" {
		t.Fatalf("unexpected title %q", record.Title)
	}
	if record.PubYear == nil || *record.PubYear != 2019 {
		t.Fatalf("unexpected pub_year %v", record.PubYear)
	}
	if len(record.Authors) != 2 {
		t.Fatalf("unexpected authors %v", record.Authors)
	}
}

func TestValidateRecordPayloadMinimal(t *testing.T) {
	t.Parallel()

	record, err := ValidateRecordPayload(json.RawMessage(`{"payload_version":"v1","title":"Untitled preprint"}`))
	if err != nil {
		t.Fatalf("expected minimal payload to validate, got %v", err)
	}
	if record.Identifier != nil {
		t.Fatalf("expected absent identifier, got %v", *record.Identifier)
	}
}

func TestValidateRecordPayloadRejections(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"empty":              ``,
		"not JSON":           `{"title":`,
		"trailing content":   `{"payload_version":"v1","title":"a"} {}`,
		"missing title":      `{"payload_version":"v1"}`,
		"blank title":        `{"payload_version":"v1","title":"   "}`,
		"wrong version":      `{"payload_version":"v2","title":"a"}`,
		"unknown field":      `{"payload_version":"v1","title":"a","doi":"10.1/x"}`,
		"blank author":       `{"payload_version":"v1","title":"a","authors":["  "]}`,
		"year out of range":  `{"payload_version":"v1","title":"a","pub_year":12}`,
		"year wrong type":    `{"payload_version":"v1","title":"a","pub_year":"2019"}`,
		"blank identifier":   `{"payload_version":"v1","title":"a","identifier":"  "}`,
		"authors wrong type": `{"payload_version":"v1","title":"a","authors":"Smith"}`,
	}

	for name, payload := range cases {
		if _, err := ValidateRecordPayload(json.RawMessage(payload)); err == nil {
			t.Errorf("%s: expected rejection", name)
		}
	}
}
