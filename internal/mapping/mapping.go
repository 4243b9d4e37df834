// Package mapping implements the declarative field mapping between the
// local contact schema and Brevo contact attributes. The mapping document
// is JSON, validated against a schema at load time, and read-only while a
// sync run is in flight; reload is an exclusive operation.
package mapping

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Field is one entry of the mapping document.
//
// When Split is set the remote side uses the two listed sub-attributes
// instead of Remote (e.g. a composite local "name" split into FNAME/LNAME).
// When UseName is set the local value is a reference id that is exchanged
// for its display name on the remote side, and resolved back on reverse
// mapping.
type Field struct {
	Local   string   `json:"local"`
	Remote  string   `json:"remote"`
	Type    string   `json:"type,omitempty"`
	Split   []string `json:"split,omitempty"`
	UseName bool     `json:"use_name,omitempty"`
}

// Document is the full mapping configuration.
type Document struct {
	Fields []Field `json:"fields"`
}

// localFields is the set of local contact fields a mapping may address.
var localFields = map[string]bool{
	"name":    true,
	"email":   true,
	"mobile":  true,
	"phone":   true,
	"street":  true,
	"city":    true,
	"zip":     true,
	"country": true,
	"website": true,
}

const schemaText = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"required": ["fields"],
	"additionalProperties": false,
	"properties": {
		"fields": {
			"type": "array",
			"minItems": 1,
			"items": {
				"type": "object",
				"required": ["local", "remote"],
				"additionalProperties": false,
				"properties": {
					"local":    {"type": "string", "minLength": 1},
					"remote":   {"type": "string", "minLength": 1},
					"type":     {"enum": ["text", "number", "boolean", "date", "datetime"]},
					"split":    {"type": "array", "items": {"type": "string", "minLength": 1}, "minItems": 2, "maxItems": 2},
					"use_name": {"type": "boolean"}
				}
			}
		}
	}
}`

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(strings.NewReader(schemaText))
		if err != nil {
			schemaErr = err
			return
		}
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("mapping.schema.json", doc); err != nil {
			schemaErr = err
			return
		}
		schema, schemaErr = compiler.Compile("mapping.schema.json")
	})
	return schema, schemaErr
}

// Parse validates raw JSON against the mapping schema plus the local field
// list and returns the document.
func Parse(raw []byte) (*Document, error) {
	sch, err := compiledSchema()
	if err != nil {
		return nil, fmt.Errorf("mapping: compile schema: %w", err)
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("mapping: parse document: %w", err)
	}
	if err := sch.Validate(inst); err != nil {
		return nil, fmt.Errorf("mapping: invalid document: %w", err)
	}

	var doc Document
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("mapping: decode document: %w", err)
	}
	if err := doc.check(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// LoadFile reads and parses a mapping document from disk.
func LoadFile(path string) (*Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("mapping: read %s: %w", path, err)
	}
	return Parse(raw)
}

// check enforces constraints the JSON schema cannot express: known local
// fields, uniqueness, and mutually exclusive transform options.
func (d *Document) check() error {
	seenLocal := make(map[string]bool)
	seenRemote := make(map[string]bool)
	for _, f := range d.Fields {
		if !localFields[f.Local] {
			return fmt.Errorf("mapping: unknown local field %q", f.Local)
		}
		if seenLocal[f.Local] {
			return fmt.Errorf("mapping: duplicate local field %q", f.Local)
		}
		seenLocal[f.Local] = true
		if seenRemote[f.Remote] {
			return fmt.Errorf("mapping: duplicate remote attribute %q", f.Remote)
		}
		seenRemote[f.Remote] = true
		if len(f.Split) > 0 && f.UseName {
			return fmt.Errorf("mapping: field %q sets both split and use_name", f.Local)
		}
	}
	return nil
}
