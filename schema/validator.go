// Package payloadschema validates raw bibliographic record payloads before
// they are persisted. The JSON Schema covers shape; semantic checks cover
// what a schema cannot express cheaply.
package payloadschema

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed record.schema.json
var recordSchemaJSON string

// Record is the decoded form of an accepted payload. Pointer fields are
// absent when nil; the raw payload itself is stored verbatim elsewhere.
type Record struct {
	PayloadVersion string          `json:"payload_version"`
	Title          string          `json:"title"`
	Abstract       *string         `json:"abstract,omitempty"`
	Authors        []string        `json:"authors,omitempty"`
	PubYear        *int            `json:"pub_year,omitempty"`
	Journal        *string         `json:"journal,omitempty"`
	Volume         *string         `json:"volume,omitempty"`
	Issue          *string         `json:"issue,omitempty"`
	Pages          *string         `json:"pages,omitempty"`
	Identifier     *string         `json:"identifier,omitempty"`
	Language       *string         `json:"language,omitempty"`
	SourceMetadata map[string]any  `json:"source_metadata,omitempty"`
}

var (
	compileOnce       sync.Once
	compiledSchema    *jsonschema.Schema
	compiledSchemaErr error
)

// ValidateRecordPayload checks one raw payload against the embedded schema
// and the semantic rules, returning the decoded record on success.
func ValidateRecordPayload(payload json.RawMessage) (*Record, error) {
	value, err := decodeStrictJSON(payload)
	if err != nil {
		return nil, fmt.Errorf("decode payload JSON: %w", err)
	}

	schema, err := loadSchema()
	if err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}

	if err := schema.Validate(value); err != nil {
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}

	normalized, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("normalize payload JSON: %w", err)
	}

	var record Record
	if err := json.Unmarshal(normalized, &record); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}

	if err := validateSemantics(&record); err != nil {
		return nil, err
	}

	return &record, nil
}

func loadSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020
		compiler.AssertFormat = true

		if err := compiler.AddResource("record.schema.json", strings.NewReader(recordSchemaJSON)); err != nil {
			compiledSchemaErr = fmt.Errorf("add schema resource: %w", err)
			return
		}

		schema, err := compiler.Compile("record.schema.json")
		if err != nil {
			compiledSchemaErr = fmt.Errorf("compile schema: %w", err)
			return
		}

		compiledSchema = schema
	})

	if compiledSchemaErr != nil {
		return nil, compiledSchemaErr
	}
	if compiledSchema == nil {
		return nil, fmt.Errorf("schema not initialized")
	}
	return compiledSchema, nil
}

func decodeStrictJSON(raw []byte) (any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("payload is empty")
	}

	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.UseNumber()

	var value any
	if err := decoder.Decode(&value); err != nil {
		return nil, err
	}

	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("payload contains trailing content")
	}

	return value, nil
}

func validateSemantics(record *Record) error {
	if record == nil {
		return fmt.Errorf("payload is nil")
	}

	if strings.TrimSpace(record.PayloadVersion) != "v1" {
		return fmt.Errorf("payload_version must be v1")
	}
	if strings.TrimSpace(record.Title) == "" {
		return fmt.Errorf("title must not be empty")
	}

	for i, author := range record.Authors {
		if strings.TrimSpace(author) == "" {
			return fmt.Errorf("authors[%d] must not be empty", i)
		}
	}

	if record.Identifier != nil && strings.TrimSpace(*record.Identifier) == "" {
		return fmt.Errorf("identifier must not be blank when present")
	}

	return nil
}
