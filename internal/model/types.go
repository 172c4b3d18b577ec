package model

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Type is the database-neutral column type. The zero value TypeNone is not a
// valid column type; on a Function it marks a procedure.
type Type int

const (
	TypeNone Type = iota
	TypeChar
	TypeVarchar
	TypeNChar
	TypeNVarchar
	TypeDecimal
	TypeBinary
	TypeTimestamp
	TypeClob
	TypeBlob
	TypeOther
)

var typeNames = map[Type]string{
	TypeNone:      "NONE",
	TypeChar:      "CHAR",
	TypeVarchar:   "VARCHAR",
	TypeNChar:     "NCHAR",
	TypeNVarchar:  "NVARCHAR",
	TypeDecimal:   "DECIMAL",
	TypeBinary:    "BINARY",
	TypeTimestamp: "TIMESTAMP",
	TypeClob:      "CLOB",
	TypeBlob:      "BLOB",
	TypeOther:     "OTHER",
}

// typeAliases maps every accepted spelling (neutral, Oracle and PostgreSQL
// native names) onto the neutral type.
var typeAliases = map[string]Type{
	"CHAR":              TypeChar,
	"CHARACTER":         TypeChar,
	"BPCHAR":            TypeChar,
	"VARCHAR":           TypeVarchar,
	"VARCHAR2":          TypeVarchar,
	"CHARACTER VARYING": TypeVarchar,
	"NCHAR":             TypeNChar,
	"NVARCHAR":          TypeNVarchar,
	"NVARCHAR2":         TypeNVarchar,
	"DECIMAL":           TypeDecimal,
	"NUMERIC":           TypeDecimal,
	"NUMBER":            TypeDecimal,
	"BINARY":            TypeBinary,
	"VARBINARY":         TypeBinary,
	"RAW":               TypeBinary,
	"BYTEA":             TypeBinary,
	"TIMESTAMP":         TypeTimestamp,
	"DATE":              TypeTimestamp,
	"CLOB":              TypeClob,
	"TEXT":              TypeClob,
	"BLOB":              TypeBlob,
	"OTHER":             TypeOther,
}

func (t Type) String() string {
	if n, ok := typeNames[t]; ok {
		return n
	}
	return fmt.Sprintf("Type(%d)", int(t))
}

// ParseType resolves a type name case-insensitively. Length or precision
// suffixes such as "(60)" are ignored.
func ParseType(s string) (Type, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	if i := strings.IndexByte(name, '('); i >= 0 {
		name = strings.TrimSpace(name[:i])
	}
	if t, ok := typeAliases[name]; ok {
		return t, nil
	}
	return TypeNone, fmt.Errorf("unknown type %q", s)
}

// IsCharacter reports whether values of t are character data.
func (t Type) IsCharacter() bool {
	switch t {
	case TypeChar, TypeVarchar, TypeNChar, TypeNVarchar, TypeClob:
		return true
	}
	return false
}

// IsNational reports whether t is one of the national-character variants.
func (t Type) IsNational() bool {
	return t == TypeNChar || t == TypeNVarchar
}

// IsLOB reports whether t is a large-object type.
func (t Type) IsLOB() bool {
	return t == TypeClob || t == TypeBlob
}

func (t Type) MarshalYAML() (any, error) {
	return t.String(), nil
}

func (t *Type) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := ParseType(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*t = parsed
	return nil
}

// Direction is the mode of a procedure parameter.
type Direction string

const (
	DirIn  Direction = "IN"
	DirOut Direction = "OUT"
)
