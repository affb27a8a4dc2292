package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

//go:embed schema.json
var schemaJSON []byte

// Schema returns the embedded configuration schema document, for external
// tooling (editor integration, CI linting via the schema subcommand).
func Schema() []byte {
	return schemaJSON
}

// compileSchema compiles the embedded schema, or the document at path when
// non-empty.
func compileSchema(path string) (*jsonschema.Schema, error) {
	data := schemaJSON
	name := "kql-config-schema.json"
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read schema %s: %w", path, err)
		}
		data = b
		name = path
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse schema %s: %w", name, err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(name, doc); err != nil {
		return nil, fmt.Errorf("register schema %s: %w", name, err)
	}
	sch, err := c.Compile(name)
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", name, err)
	}
	return sch, nil
}

// validateAgainstSchema checks the decoded YAML document against the schema.
// The document is round-tripped through JSON first so the validator sees the
// value kinds it expects.
func validateAgainstSchema(sch *jsonschema.Schema, doc any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return &InvalidError{Reason: fmt.Sprintf("document is not schema-checkable: %v", err)}
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return &InvalidError{Reason: err.Error()}
	}
	if err := sch.Validate(inst); err != nil {
		return &InvalidError{Field: schemaErrorPath(err), Reason: schemaErrorReason(err)}
	}
	return nil
}

// schemaErrorPath extracts the instance location of the deepest cause, e.g.
// "/queries/0/output/1/format".
func schemaErrorPath(err error) string {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return ""
	}
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}
	if len(ve.InstanceLocation) == 0 {
		return "/"
	}
	return "/" + strings.Join(ve.InstanceLocation, "/")
}

func schemaErrorReason(err error) string {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return err.Error()
	}
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}
	return ve.Error()
}
