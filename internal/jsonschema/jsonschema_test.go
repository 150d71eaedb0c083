// SPDX-License-Identifier: Apache-2.0

package jsonschema_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/butaneorm/butane/internal/jsonschema"
)

func TestMigrationDocumentValidation(t *testing.T) {
	t.Parallel()

	sch, err := jsonschema.CompileFile("../../schema.json")
	require.NoError(t, err)

	tests := []struct {
		name       string
		doc        string
		shouldPass bool
	}{
		{
			name:       "root migration with no parent",
			doc:        `{"name":"0001_init","db":{"tables":{},"extra_types":{}},"from":null,"up":{"sqlite":"CREATE TABLE Foo (id INTEGER PRIMARY KEY);"},"down":{"sqlite":"DROP TABLE Foo;"}}`,
			shouldPass: true,
		},
		{
			name:       "child migration naming its parent",
			doc:        `{"name":"0002_add_bar","db":{"tables":{},"extra_types":{}},"from":"0001_init","up":{"pg":"ALTER TABLE \"Foo\" ADD COLUMN bar text;"},"down":{"pg":"ALTER TABLE \"Foo\" DROP COLUMN bar;"}}`,
			shouldPass: true,
		},
		{
			name:       "missing required name",
			doc:        `{"db":{"tables":{},"extra_types":{}},"from":null,"up":{},"down":{}}`,
			shouldPass: false,
		},
		{
			name:       "missing required db",
			doc:        `{"name":"0001_init","from":null,"up":{},"down":{}}`,
			shouldPass: false,
		},
		{
			name:       "db missing extra_types",
			doc:        `{"name":"0001_init","db":{"tables":{}},"from":null,"up":{},"down":{}}`,
			shouldPass: false,
		},
		{
			name:       "unknown top-level field rejected",
			doc:        `{"name":"0001_init","db":{"tables":{},"extra_types":{}},"from":null,"up":{},"down":{},"unexpected":true}`,
			shouldPass: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var v any
			require.NoError(t, json.Unmarshal([]byte(tt.doc), &v))

			err := sch.Validate(v)
			if tt.shouldPass {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
