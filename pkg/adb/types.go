// SPDX-License-Identifier: Apache-2.0

// Package adb implements Butane's Abstract Database: a backend-neutral
// representation of relational schema, the type resolver, the diffing
// algorithm, and the Operation list it produces.
package adb

import (
	"fmt"
	"sort"
	"strings"

	"github.com/butaneorm/butane/pkg/value"
)

// SqlType is the closed enum of primitive column types Butane understands.
type SqlType int

const (
	TypeBool SqlType = iota
	TypeInt
	TypeBigInt
	TypeReal
	TypeText
	TypeBlob
	TypeTimestamp
	TypeDate
	TypeJSON
	TypeCustom
)

func (t SqlType) String() string {
	switch t {
	case TypeBool:
		return "Bool"
	case TypeInt:
		return "Int"
	case TypeBigInt:
		return "BigInt"
	case TypeReal:
		return "Real"
	case TypeText:
		return "Text"
	case TypeBlob:
		return "Blob"
	case TypeTimestamp:
		return "Timestamp"
	case TypeDate:
		return "Date"
	case TypeJSON:
		return "Json"
	case TypeCustom:
		return "Custom"
	default:
		return "Unknown"
	}
}

// TypeIdentifier is either a resolved SqlType or an unresolved symbolic
// name (used for Custom types before they are registered).
type TypeIdentifier struct {
	Ty         *SqlType
	CustomName string
}

func KnownTy(t SqlType) TypeIdentifier { return TypeIdentifier{Ty: &t} }
func CustomTy(name string) TypeIdentifier {
	t := TypeCustom
	return TypeIdentifier{Ty: &t, CustomName: name}
}

func (t TypeIdentifier) Equal(o TypeIdentifier) bool {
	if t.Ty == nil || o.Ty == nil {
		return t.Ty == nil && o.Ty == nil
	}
	if *t.Ty != *o.Ty {
		return false
	}
	if *t.Ty == TypeCustom {
		return t.CustomName == o.CustomName
	}
	return true
}

func (t TypeIdentifier) String() string {
	if t.Ty == nil {
		return "<unresolved>"
	}
	if *t.Ty == TypeCustom {
		return fmt.Sprintf("Custom(%s)", t.CustomName)
	}
	return t.Ty.String()
}

// TypeKeyKind distinguishes the two TypeKey variants.
type TypeKeyKind int

const (
	TypeKeyPK TypeKeyKind = iota
	TypeKeyCustom
)

// TypeKey is a mapping key into ADB.ExtraTypes: either a reference to a
// table's primary key type, or a user-declared custom type alias.
// Serialized as "PK:<name>" / "CT:<name>" per spec §3.
type TypeKey struct {
	Kind TypeKeyKind
	Name string
}

func PKKey(table string) TypeKey     { return TypeKey{Kind: TypeKeyPK, Name: table} }
func CustomKey(name string) TypeKey  { return TypeKey{Kind: TypeKeyCustom, Name: name} }

func (k TypeKey) String() string {
	if k.Kind == TypeKeyPK {
		return "PK:" + k.Name
	}
	return "CT:" + k.Name
}

// ParseTypeKey parses the "PK:<name>" / "CT:<name>" textual form.
func ParseTypeKey(s string) (TypeKey, error) {
	switch {
	case strings.HasPrefix(s, "PK:"):
		return PKKey(strings.TrimPrefix(s, "PK:")), nil
	case strings.HasPrefix(s, "CT:"):
		return CustomKey(strings.TrimPrefix(s, "CT:")), nil
	default:
		return TypeKey{}, fmt.Errorf("invalid type key %q", s)
	}
}

// MarshalText/UnmarshalText let TypeKey serve as a JSON object key (the
// persisted ExtraTypes map, spec §4.5 persistence contract), since
// encoding/json only accepts string-like map keys.
func (k TypeKey) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *TypeKey) UnmarshalText(text []byte) error {
	parsed, err := ParseTypeKey(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// CompareTypeKeys orders PK keys before CT keys; within a kind,
// lexicographically by name, per spec §3.
func CompareTypeKeys(a, b TypeKey) int {
	if a.Kind != b.Kind {
		if a.Kind == TypeKeyPK {
			return -1
		}
		return 1
	}
	return strings.Compare(a.Name, b.Name)
}

// DeferredKind distinguishes the three DeferredSqlType variants.
type DeferredKind int

const (
	DeferredKnown DeferredKind = iota
	DeferredKnownID
	DeferredDeferred
)

// DeferredSqlType is a column type that may still need resolving: Known
// wraps a resolved SqlType directly, KnownID wraps a TypeIdentifier
// (equivalent to Known when it holds a non-custom type), and Deferred
// references a TypeKey to be resolved against ADB.ExtraTypes or a table's
// primary key.
type DeferredSqlType struct {
	Kind  DeferredKind
	Known SqlType
	ID    TypeIdentifier
	Key   TypeKey
}

func Known(t SqlType) DeferredSqlType            { return DeferredSqlType{Kind: DeferredKnown, Known: t} }
func KnownID(id TypeIdentifier) DeferredSqlType  { return DeferredSqlType{Kind: DeferredKnownID, ID: id} }
func Deferred(key TypeKey) DeferredSqlType       { return DeferredSqlType{Kind: DeferredDeferred, Key: key} }

// IsResolved reports whether the type no longer needs resolution.
func (d DeferredSqlType) IsResolved() bool { return d.Kind != DeferredDeferred }

// ResolvedType returns the underlying SqlType once resolved. Panics if
// still Deferred; callers must check IsResolved first.
func (d DeferredSqlType) ResolvedType() SqlType {
	switch d.Kind {
	case DeferredKnown:
		return d.Known
	case DeferredKnownID:
		return *d.ID.Ty
	default:
		panic("adb: ResolvedType called on a still-deferred type")
	}
}

// Equal treats Known(t) and KnownId(Ty(t)) as identical, per spec §3.
func (d DeferredSqlType) Equal(o DeferredSqlType) bool {
	if d.IsResolved() && o.IsResolved() {
		dt, ot := d.ResolvedType(), o.ResolvedType()
		if dt != ot {
			return false
		}
		if dt == TypeCustom {
			return d.customName() == o.customName()
		}
		return true
	}
	if d.Kind != o.Kind {
		return false
	}
	return d.Key == o.Key
}

func (d DeferredSqlType) customName() string {
	if d.Kind == DeferredKnownID {
		return d.ID.CustomName
	}
	return ""
}

func (d DeferredSqlType) String() string {
	switch d.Kind {
	case DeferredKnown:
		return d.Known.String()
	case DeferredKnownID:
		return d.ID.String()
	default:
		return "Deferred(" + d.Key.String() + ")"
	}
}

// ARef is a foreign-key reference: either resolved to a literal
// table/column pair, or deferred until the type resolver runs.
type ARef struct {
	Resolved bool
	Table    string
	Column   string
	Deferred DeferredSqlType
}

func LiteralRef(table, column string) ARef { return ARef{Resolved: true, Table: table, Column: column} }
func DeferredRef(d DeferredSqlType) ARef   { return ARef{Resolved: false, Deferred: d} }

// AColumn is a single column definition.
type AColumn struct {
	Name      string
	SqlType   DeferredSqlType
	Nullable  bool
	IsPK      bool
	IsAuto    bool
	Unique    bool
	Default   *value.SqlVal
	Reference *ARef
}

// Validate checks the column-level invariants from spec §3 that don't
// require table-wide context (PK uniqueness is checked at the table level).
func (c AColumn) Validate() error {
	if c.Nullable && c.IsPK {
		return fmt.Errorf("column %q: nullable and primary-key are mutually exclusive", c.Name)
	}
	if c.IsAuto && c.SqlType.IsResolved() {
		t := c.SqlType.ResolvedType()
		if t != TypeInt && t != TypeBigInt {
			return InvalidAutoError{Column: c.Name}
		}
		if !c.IsPK {
			return InvalidAutoError{Column: c.Name}
		}
	}
	return nil
}

// ATable is an abstract table: a name and an ordered, insertion-order
// preserving sequence of columns.
type ATable struct {
	Name    string
	Columns []AColumn
}

// PK returns the table's single primary-key column, if any.
func (t *ATable) PK() *AColumn {
	for i := range t.Columns {
		if t.Columns[i].IsPK {
			return &t.Columns[i]
		}
	}
	return nil
}

// Column looks up a column by name.
func (t *ATable) Column(name string) *AColumn {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return &t.Columns[i]
		}
	}
	return nil
}

// HasReferenceColumn reports whether any column in the table carries a
// foreign-key reference; used to decide whether AddTableConstraints must
// be emitted for a newly added table (spec §4.2 step 5).
func (t *ATable) HasReferenceColumn() bool {
	for _, c := range t.Columns {
		if c.Reference != nil {
			return true
		}
	}
	return false
}

// AddColumn appends a column at the end of the sequence (spec §4.2
// AddColumn semantics).
func (t *ATable) AddColumn(c AColumn) { t.Columns = append(t.Columns, c) }

// RemoveColumn removes a column by name.
func (t *ATable) RemoveColumn(name string) {
	for i, c := range t.Columns {
		if c.Name == name {
			t.Columns = append(t.Columns[:i], t.Columns[i+1:]...)
			return
		}
	}
}

// ReplaceColumn replaces the column matching old.Name with replacement,
// preserving position (ChangeColumn semantics).
func (t *ATable) ReplaceColumn(oldName string, replacement AColumn) {
	for i, c := range t.Columns {
		if c.Name == oldName {
			t.Columns[i] = replacement
			return
		}
	}
}

// Clone deep-copies a table.
func (t *ATable) Clone() *ATable {
	cols := make([]AColumn, len(t.Columns))
	copy(cols, t.Columns)
	return &ATable{Name: t.Name, Columns: cols}
}

// ManyTableName returns the conventional link-table name for a many-to-many
// field, per spec §3: "<table>_<field>_Many".
func ManyTableName(table, field string) string {
	return fmt.Sprintf("%s_%s_Many", table, field)
}

// NewManyTable constructs the two-column link table for a many-to-many
// relation between owner and related, keyed by their respective primary
// key types.
func NewManyTable(table, field string, ownerPK, relatedPK DeferredSqlType) *ATable {
	return &ATable{
		Name: ManyTableName(table, field),
		Columns: []AColumn{
			{Name: "owner", SqlType: ownerPK, Nullable: false},
			{Name: "has", SqlType: relatedPK, Nullable: false},
		},
	}
}

// ADB is the backend-neutral schema: tables keyed by name (iterated
// alphabetically) plus the extra-types map used by the resolver.
type ADB struct {
	Tables     map[string]*ATable
	ExtraTypes map[TypeKey]DeferredSqlType
}

func New() *ADB {
	return &ADB{
		Tables:     make(map[string]*ATable),
		ExtraTypes: make(map[TypeKey]DeferredSqlType),
	}
}

// SortedTableNames returns table names in alphabetic order (ADB iteration
// order, spec §3).
func (a *ADB) SortedTableNames() []string {
	names := make([]string, 0, len(a.Tables))
	for n := range a.Tables {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Clone deep-copies an ADB, used as the mutable working copy the SQL
// generator folds operations into (spec §4.3).
func (a *ADB) Clone() *ADB {
	out := New()
	for name, t := range a.Tables {
		out.Tables[name] = t.Clone()
	}
	for k, v := range a.ExtraTypes {
		out.ExtraTypes[k] = v
	}
	return out
}
