package types

import (
	"encoding/json"
	"fmt"
)

// DataType identifies the kind of a Value or a declared column type.
// Interval types are legal only as filter operands; a stored column is
// always one of the four scalar types.
type DataType int

const (
	TypeInvalid DataType = iota
	TypeInt
	TypeFloat
	TypeChar
	TypeString
	TypeCharInterval
	TypeStringInterval
)

// typeNames holds the wire/display names for each DataType.
var typeNames = map[DataType]string{
	TypeInt:            "int",
	TypeFloat:          "float",
	TypeChar:           "char",
	TypeString:         "string",
	TypeCharInterval:   "char_interval",
	TypeStringInterval: "string_interval",
}

func (t DataType) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return "invalid"
}

// Scalar reports whether t is a legal stored column type.
func (t DataType) Scalar() bool {
	switch t {
	case TypeInt, TypeFloat, TypeChar, TypeString:
		return true
	}
	return false
}

// Interval reports whether t is a range type.
func (t DataType) Interval() bool {
	return t == TypeCharInterval || t == TypeStringInterval
}

// Element returns the scalar kind an interval type ranges over. For scalar
// types it returns the type itself.
func (t DataType) Element() DataType {
	switch t {
	case TypeCharInterval:
		return TypeChar
	case TypeStringInterval:
		return TypeString
	default:
		return t
	}
}

// ParseDataType parses a type name as it appears in schema files and on the
// wire. Unknown names return ErrInvalidSchema.
func ParseDataType(s string) (DataType, error) {
	for t, name := range typeNames {
		if name == s {
			return t, nil
		}
	}
	return TypeInvalid, fmt.Errorf("type %q: %w", s, ErrInvalidSchema)
}

// MarshalJSON encodes the type as its wire name.
func (t DataType) MarshalJSON() ([]byte, error) {
	name, ok := typeNames[t]
	if !ok {
		return nil, fmt.Errorf("type %d: %w", int(t), ErrInvalidSchema)
	}
	return json.Marshal(name)
}

// UnmarshalJSON decodes a wire type name.
func (t *DataType) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return fmt.Errorf("decoding type tag: %w", err)
	}
	parsed, err := ParseDataType(name)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
