// SPDX-License-Identifier: Apache-2.0

// Package value implements Butane's value layer: a typed tagged union of SQL
// values (owned and borrowed forms) and the conversions between it and each
// backend's native value type.
package value

import (
	"encoding/json"
	"fmt"
	"time"
)

// Kind identifies which variant of SqlVal is populated.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindBigInt
	KindReal
	KindText
	KindBlob
	KindJSON
	KindDate
	KindTimestamp
	KindCustom
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindBigInt:
		return "bigint"
	case KindReal:
		return "real"
	case KindText:
		return "text"
	case KindBlob:
		return "blob"
	case KindJSON:
		return "json"
	case KindDate:
		return "date"
	case KindTimestamp:
		return "timestamp"
	case KindCustom:
		return "custom"
	default:
		return "unknown"
	}
}

// SqlVal is an owned, tagged-union SQL value. Only the field matching Kind
// is meaningful.
type SqlVal struct {
	Kind      Kind
	BoolVal   bool
	IntVal    int32
	BigVal    int64
	RealVal   float64
	TextVal   string
	BlobVal   []byte
	DateVal   time.Time
	TimeVal   time.Time
	CustomVal any
}

// Null is the canonical NULL value.
var Null = SqlVal{Kind: KindNull}

func Bool(b bool) SqlVal        { return SqlVal{Kind: KindBool, BoolVal: b} }
func Int(i int32) SqlVal        { return SqlVal{Kind: KindInt, IntVal: i} }
func BigInt(i int64) SqlVal     { return SqlVal{Kind: KindBigInt, BigVal: i} }
func Real(f float64) SqlVal     { return SqlVal{Kind: KindReal, RealVal: f} }
func Text(s string) SqlVal      { return SqlVal{Kind: KindText, TextVal: s} }
func Blob(b []byte) SqlVal      { return SqlVal{Kind: KindBlob, BlobVal: b} }
func Date(t time.Time) SqlVal   { return SqlVal{Kind: KindDate, DateVal: t} }
func Timestamp(t time.Time) SqlVal {
	return SqlVal{Kind: KindTimestamp, TimeVal: t}
}

// JSONVal wraps an already-marshalled JSON document as a SqlVal.
func JSONVal(raw string) SqlVal { return SqlVal{Kind: KindJSON, TextVal: raw} }

func (v SqlVal) IsNull() bool { return v.Kind == KindNull }

// Ref returns a borrowed view of v. Text and Blob keep pointing at v's
// backing storage; all other kinds are copied since they are small.
func (v SqlVal) Ref() SqlValRef {
	switch v.Kind {
	case KindText, KindJSON:
		return SqlValRef{Kind: v.Kind, Text: &v.TextVal}
	case KindBlob:
		return SqlValRef{Kind: v.Kind, Blob: v.BlobVal}
	default:
		return SqlValRef{Kind: v.Kind, owned: v}
	}
}

func (v SqlVal) Equal(o SqlVal) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindNull:
		return true
	case KindBool:
		return v.BoolVal == o.BoolVal
	case KindInt:
		return v.IntVal == o.IntVal
	case KindBigInt:
		return v.BigVal == o.BigVal
	case KindReal:
		return v.RealVal == o.RealVal
	case KindText, KindJSON:
		return v.TextVal == o.TextVal
	case KindBlob:
		return string(v.BlobVal) == string(o.BlobVal)
	case KindDate:
		return v.DateVal.Equal(o.DateVal)
	case KindTimestamp:
		return v.TimeVal.Equal(o.TimeVal)
	case KindCustom:
		return fmt.Sprintf("%v", v.CustomVal) == fmt.Sprintf("%v", o.CustomVal)
	default:
		return false
	}
}

// SqlValRef is the borrowed form of SqlVal: text and blob are references
// into caller-owned memory rather than copies.
type SqlValRef struct {
	Kind  Kind
	Text  *string
	Blob  []byte
	owned SqlVal
}

// ToOwned copies a SqlValRef into an owned SqlVal.
func (r SqlValRef) ToOwned() SqlVal {
	switch r.Kind {
	case KindText, KindJSON:
		var s string
		if r.Text != nil {
			s = *r.Text
		}
		return SqlVal{Kind: r.Kind, TextVal: s}
	case KindBlob:
		b := make([]byte, len(r.Blob))
		copy(b, r.Blob)
		return SqlVal{Kind: KindBlob, BlobVal: b}
	default:
		return r.owned
	}
}

// ToSql produces an owned SqlVal from a Go value implementing FieldType.
type ToSql interface {
	ToSql() (SqlVal, error)
}

// ToSqlRef produces a borrowed SqlValRef, avoiding an allocation where the
// caller already owns the backing storage (e.g. a string or []byte field).
type ToSqlRef interface {
	ToSqlRef() (SqlValRef, error)
}

// FromSql decodes a borrowed SqlValRef into a Go value, failing with
// CannotConvertSqlVal if the value's kind is incompatible.
type FromSql interface {
	FromSql(ref SqlValRef) error
}

// FieldType associates a Go type with the SqlType constant Butane should
// use to store it (see package adb for SqlType).
type FieldType interface {
	SqlTypeName() string
}

// AsPrimaryKey yields a borrowed view of a value suitable for use as a
// foreign key target, without forcing callers to copy the primary key.
type AsPrimaryKey interface {
	AsPrimaryKeyRef() SqlValRef
}

// CannotConvertSqlVal is returned when a SqlValRef cannot be decoded into
// the requested Go type.
type CannotConvertSqlVal struct {
	TargetType string
	Value      SqlVal
}

func (e CannotConvertSqlVal) Error() string {
	return fmt.Sprintf("cannot convert SQL value of kind %s to %s", e.Value.Kind, e.TargetType)
}

// UnknownEnumVariant is returned when an enum-as-text custom type fails to
// match any known variant name on decode.
type UnknownEnumVariant struct {
	TypeName string
	Variant  string
}

func (e UnknownEnumVariant) Error() string {
	return fmt.Sprintf("unknown enum variant %q for type %q", e.Variant, e.TypeName)
}

// JSONRoundTrip decodes a SqlVal of kind Json into dest using encoding/json.
// Custom types that choose the Json representation (SqlType::Json) use this
// helper rather than hand-rolled marshalling.
func JSONRoundTrip(ref SqlValRef, dest any) error {
	if ref.Kind != KindJSON && ref.Kind != KindText {
		return CannotConvertSqlVal{TargetType: "json", Value: ref.ToOwned()}
	}
	var raw string
	if ref.Text != nil {
		raw = *ref.Text
	}
	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		return fmt.Errorf("decoding json sql value: %w", err)
	}
	return nil
}

// JSONEncode marshals src into a SqlVal of kind Json.
func JSONEncode(src any) (SqlVal, error) {
	b, err := json.Marshal(src)
	if err != nil {
		return SqlVal{}, fmt.Errorf("encoding json sql value: %w", err)
	}
	return JSONVal(string(b)), nil
}

// EnumToText maps an enum variant name to a text SqlVal. EnumFromText is
// its inverse, used by #[butane_type] enum-as-text implementations.
func EnumToText(variant string) SqlVal { return Text(variant) }

func EnumFromText(typeName string, ref SqlValRef, variants []string) (string, error) {
	if ref.Kind != KindText {
		return "", CannotConvertSqlVal{TargetType: typeName, Value: ref.ToOwned()}
	}
	got := ""
	if ref.Text != nil {
		got = *ref.Text
	}
	for _, v := range variants {
		if v == got {
			return v, nil
		}
	}
	return "", UnknownEnumVariant{TypeName: typeName, Variant: got}
}
