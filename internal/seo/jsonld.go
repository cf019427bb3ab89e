// Package seo validates structured data and builds the page metadata rendered into layouts.
package seo

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.json
var schemaFS embed.FS

var (
	ErrInvalidJSON = errors.New("structured data is not valid JSON")
	ErrSchema      = errors.New("structured data is not a JSON-LD document")
)

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func jsonldSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		f, err := schemaFS.Open("schemas/jsonld.json")
		if err != nil {
			schemaErr = err
			return
		}
		defer f.Close()
		c := jsonschema.NewCompiler()
		if err := c.AddResource("jsonld.json", f); err != nil {
			schemaErr = fmt.Errorf("add jsonld schema: %w", err)
			return
		}
		schema, schemaErr = c.Compile("jsonld.json")
	})
	return schema, schemaErr
}

// ValidateJSONLD checks that raw is JSON and looks like JSON-LD (an object, or a list of
// objects, carrying @context and either @type or @graph). It returns the compacted form.
func ValidateJSONLD(raw []byte) (json.RawMessage, error) {
	raw = bytes.TrimSpace(raw)
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	s, err := jsonldSchema()
	if err != nil {
		return nil, err
	}
	if err := s.Validate(v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchema, err)
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	return json.RawMessage(buf.Bytes()), nil
}

// Pretty indents JSON by one space for the editor; text that is not JSON is returned as is.
func Pretty(s string) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, []byte(s), "", " "); err != nil {
		return s
	}
	return buf.String()
}

// ScriptJSON prepares stored structured data for a <script type="application/ld+json">
// block. Invalid JSON yields ok=false and nothing is rendered.
func ScriptJSON(s string) (template.JS, bool) {
	s = strings.TrimSpace(s)
	if s == "" || !json.Valid([]byte(s)) {
		return "", false
	}
	var compact, escaped bytes.Buffer
	if err := json.Compact(&compact, []byte(s)); err != nil {
		return "", false
	}
	json.HTMLEscape(&escaped, compact.Bytes())
	return template.JS(escaped.String()), true
}
