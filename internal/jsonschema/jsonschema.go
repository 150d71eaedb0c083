// SPDX-License-Identifier: Apache-2.0

// Package jsonschema validates persisted migration documents against
// Butane's schema.json before they are accepted into a store.
package jsonschema

import (
	"bytes"
	"fmt"
	"os"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// CompileFile compiles the JSON schema at path into a reusable validator.
func CompileFile(path string) (*jsonschema.Schema, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("jsonschema: reading %s: %w", path, err)
	}

	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("jsonschema: parsing %s: %w", path, err)
	}

	compiler := jsonschema.NewCompiler()
	compiler.DefaultDraft(jsonschema.Draft2020)
	if err := compiler.AddResource(path, doc); err != nil {
		return nil, fmt.Errorf("jsonschema: registering %s: %w", path, err)
	}

	sch, err := compiler.Compile(path)
	if err != nil {
		return nil, fmt.Errorf("jsonschema: compiling %s: %w", path, err)
	}
	return sch, nil
}
