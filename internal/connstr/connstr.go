// SPDX-License-Identifier: Apache-2.0

// Package connstr parses and persists Butane's connection spec (spec §6):
// the {backend_name, conn_str} pair describing which backend and
// connection string a project's migrations and queries run against.
package connstr

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/butaneorm/butane/pkg/backend"
)

const fileName = "connection.json"

// Spec is the {backend_name, conn_str} pair persisted at
// <base>/connection.json (spec §6).
type Spec struct {
	BackendName string `json:"backend_name"`
	ConnStr     string `json:"conn_str"`
}

// Parse classifies uri into a Spec per spec §6's accepted URI forms:
//
//	sqlite:<path>                 -> file:<path>
//	:memory:                      -> sqlite, literal
//	postgres://…, postgresql://…  -> pg, passed through
//	key=value (host=… user=…)     -> pg, passed through
//	turso:<path>                  -> turso, file:<path>
//	libsql://…, libsql+http://…   -> libsql, passed through
//	<anything else>               -> sqlite, treated as a plain file path
func Parse(uri string) (Spec, error) {
	switch {
	case uri == ":memory:":
		return Spec{BackendName: backend.NameSQLite, ConnStr: uri}, nil

	case strings.HasPrefix(uri, "sqlite:"):
		path := strings.TrimPrefix(uri, "sqlite:")
		return Spec{BackendName: backend.NameSQLite, ConnStr: asFileURI(path)}, nil

	case strings.HasPrefix(uri, "turso:"):
		path := strings.TrimPrefix(uri, "turso:")
		return Spec{BackendName: backend.NameTurso, ConnStr: asFileURI(path)}, nil

	case strings.HasPrefix(uri, "postgres://"), strings.HasPrefix(uri, "postgresql://"):
		return Spec{BackendName: backend.NamePostgres, ConnStr: uri}, nil

	case strings.HasPrefix(uri, "libsql://"), strings.HasPrefix(uri, "libsql+http://"):
		return Spec{BackendName: backend.NameLibSQL, ConnStr: uri}, nil

	case looksLikeKeyValue(uri):
		return Spec{BackendName: backend.NamePostgres, ConnStr: uri}, nil

	default:
		return Spec{BackendName: backend.NameSQLite, ConnStr: asFileURI(uri)}, nil
	}
}

func asFileURI(path string) string {
	if path == ":memory:" || strings.HasPrefix(path, "file:") {
		return path
	}
	return "file:" + path
}

// looksLikeKeyValue recognizes Postgres's "host=… user=…" connection string
// form: at least one whitespace-separated key=value token.
func looksLikeKeyValue(s string) bool {
	for _, tok := range strings.Fields(s) {
		if !strings.Contains(tok, "=") {
			return false
		}
	}
	return strings.Contains(s, "=")
}

// Path returns <base>/connection.json.
func Path(base string) string {
	return filepath.Join(base, fileName)
}

// Load reads and parses the connection spec persisted under base.
func Load(base string) (Spec, error) {
	raw, err := os.ReadFile(Path(base))
	if err != nil {
		return Spec{}, fmt.Errorf("connstr: reading %s: %w", Path(base), err)
	}
	var spec Spec
	if err := json.Unmarshal(raw, &spec); err != nil {
		return Spec{}, fmt.Errorf("connstr: decoding %s: %w", Path(base), err)
	}
	return spec, nil
}

// Save persists spec under base, creating base if necessary.
func Save(base string, spec Spec) error {
	if err := os.MkdirAll(base, 0o755); err != nil {
		return fmt.Errorf("connstr: creating %s: %w", base, err)
	}
	raw, err := json.MarshalIndent(spec, "", "  ")
	if err != nil {
		return fmt.Errorf("connstr: encoding connection spec: %w", err)
	}
	if err := os.WriteFile(Path(base), raw, 0o644); err != nil {
		return fmt.Errorf("connstr: writing %s: %w", Path(base), err)
	}
	return nil
}

// AppendSearchPathOption takes a Postgres connection string in URL format
// and returns the same string with the search_path option set to schema,
// for callers that scope Butane's tables to a non-default schema.
func AppendSearchPathOption(connStr, schema string) (string, error) {
	u, err := url.Parse(connStr)
	if err != nil {
		return "", fmt.Errorf("connstr: parsing connection string: %w", err)
	}
	if schema == "" {
		return connStr, nil
	}

	q := u.Query()
	q.Set("options", fmt.Sprintf("-c search_path=%s", schema))
	encodedQuery := q.Encode()

	// Replace '+' with '%20' to ensure proper encoding of spaces within the
	// `options` query parameter.
	encodedQuery = strings.ReplaceAll(encodedQuery, "+", "%20")
	u.RawQuery = encodedQuery

	return u.String(), nil
}
