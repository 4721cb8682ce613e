package types

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Value is a tagged scalar or interval. Scalars are the unit of stored data;
// intervals express inclusive range filters and never appear in a stored row.
// The zero Value has TypeInvalid and matches nothing.
type Value struct {
	kind DataType
	i    int64
	f    float64
	// lo is the scalar payload for char/string values and the lower bound
	// for intervals; hi is the upper bound for intervals. Char payloads are
	// kept as single-rune strings so both interval kinds share bounds.
	lo string
	hi string
}

// IntValue returns an Int value.
func IntValue(v int64) Value {
	return Value{kind: TypeInt, i: v}
}

// FloatValue returns a Float value. Floats must be finite; NaN and the
// infinities are rejected so that every Float participates in a total order.
func FloatValue(v float64) (Value, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Value{}, fmt.Errorf("float must be finite: %w", ErrTypeMismatch)
	}
	return Value{kind: TypeFloat, f: v}, nil
}

// CharValue returns a Char value holding a single code point.
func CharValue(c rune) Value {
	return Value{kind: TypeChar, lo: string(c)}
}

// StringValue returns a String value.
func StringValue(s string) Value {
	return Value{kind: TypeString, lo: s}
}

// CharInterval returns the inclusive range [lo, hi] over code points.
// Construction fails unless lo <= hi.
func CharInterval(lo, hi rune) (Value, error) {
	if lo > hi {
		return Value{}, fmt.Errorf("char interval [%c, %c]: lower bound above upper: %w", lo, hi, ErrTypeMismatch)
	}
	return Value{kind: TypeCharInterval, lo: string(lo), hi: string(hi)}, nil
}

// StringInterval returns the inclusive lexicographic range [lo, hi].
// Construction fails unless lo <= hi.
func StringInterval(lo, hi string) (Value, error) {
	if lo > hi {
		return Value{}, fmt.Errorf("string interval [%s, %s]: lower bound above upper: %w", lo, hi, ErrTypeMismatch)
	}
	return Value{kind: TypeStringInterval, lo: lo, hi: hi}, nil
}

// Type returns the value's kind.
func (v Value) Type() DataType { return v.kind }

// Int returns the payload of an Int value.
func (v Value) Int() int64 { return v.i }

// Float returns the payload of a Float value.
func (v Value) Float() float64 { return v.f }

// Char returns the payload of a Char value.
func (v Value) Char() rune {
	r, _ := utf8.DecodeRuneInString(v.lo)
	return r
}

// Str returns the payload of a String value, or the lower bound of an
// interval.
func (v Value) Str() string { return v.lo }

// Bounds returns the inclusive bounds of an interval value as their string
// form. Only meaningful when Type().Interval() is true.
func (v Value) Bounds() (lo, hi string) { return v.lo, v.hi }

// Compare orders v against other. Both must be scalars of the same kind;
// anything else is a type mismatch.
func (v Value) Compare(other Value) (int, error) {
	if v.kind != other.kind || !v.kind.Scalar() {
		return 0, fmt.Errorf("cannot compare %s with %s: %w", v.kind, other.kind, ErrTypeMismatch)
	}
	switch v.kind {
	case TypeInt:
		return cmpOrdered(v.i, other.i), nil
	case TypeFloat:
		return cmpOrdered(v.f, other.f), nil
	default: // char and string both order lexicographically by code point
		return strings.Compare(v.lo, other.lo), nil
	}
}

func cmpOrdered[T int64 | float64](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Contains reports whether cell falls inside the interval v, inclusive of
// both bounds. The cell's kind must match the interval's element kind.
func (v Value) Contains(cell Value) (bool, error) {
	if !v.kind.Interval() {
		return false, fmt.Errorf("%s is not an interval: %w", v.kind, ErrTypeMismatch)
	}
	if cell.kind != v.kind.Element() {
		return false, fmt.Errorf("%s interval cannot contain %s: %w", v.kind.Element(), cell.kind, ErrTypeMismatch)
	}
	return v.lo <= cell.lo && cell.lo <= v.hi, nil
}

// Matches evaluates v as a condition operand against a stored cell: equality
// for scalars, inclusive range membership for intervals.
func (v Value) Matches(cell Value) (bool, error) {
	if v.kind.Interval() {
		return v.Contains(cell)
	}
	c, err := v.Compare(cell)
	if err != nil {
		return false, err
	}
	return c == 0, nil
}

// Coerce converts v to the target scalar type, failing with a type mismatch
// when the conversion would lose information. Strings parse into numbers and
// single-rune chars; chars widen to strings or parse as digits; ints widen
// to floats. Intervals never coerce.
func (v Value) Coerce(to DataType) (Value, error) {
	if v.kind == to {
		return v, nil
	}
	mismatch := func() (Value, error) {
		return Value{}, fmt.Errorf("cannot use %s value as %s: %w", v.kind, to, ErrTypeMismatch)
	}

	switch {
	case v.kind == TypeString && to == TypeChar:
		if utf8.RuneCountInString(v.lo) != 1 {
			return mismatch()
		}
		return CharValue(v.Char()), nil
	case v.kind == TypeString && to == TypeInt:
		i, err := strconv.ParseInt(v.lo, 10, 64)
		if err != nil {
			return mismatch()
		}
		return IntValue(i), nil
	case v.kind == TypeString && to == TypeFloat:
		f, err := strconv.ParseFloat(v.lo, 64)
		if err != nil {
			return mismatch()
		}
		return FloatValue(f)
	case v.kind == TypeChar && to == TypeString:
		return StringValue(v.lo), nil
	case v.kind == TypeChar && to == TypeInt:
		i, err := strconv.ParseInt(v.lo, 10, 64)
		if err != nil {
			return mismatch()
		}
		return IntValue(i), nil
	case v.kind == TypeChar && to == TypeFloat:
		f, err := strconv.ParseFloat(v.lo, 64)
		if err != nil {
			return mismatch()
		}
		return FloatValue(f)
	case v.kind == TypeInt && to == TypeFloat:
		return FloatValue(float64(v.i))
	default:
		return mismatch()
	}
}

// String renders the value for display and for the REPL.
func (v Value) String() string {
	switch v.kind {
	case TypeInt:
		return strconv.FormatInt(v.i, 10)
	case TypeFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case TypeChar, TypeString:
		return v.lo
	case TypeCharInterval, TypeStringInterval:
		return fmt.Sprintf("[%s, %s]", v.lo, v.hi)
	default:
		return "<invalid>"
	}
}

// Wire shape: a JSON object with exactly one field set, keyed by the type
// name, e.g. {"int": 42} or {"string_interval": ["a", "m"]}.

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case TypeInt:
		return json.Marshal(map[string]int64{"int": v.i})
	case TypeFloat:
		return json.Marshal(map[string]float64{"float": v.f})
	case TypeChar:
		return json.Marshal(map[string]string{"char": v.lo})
	case TypeString:
		return json.Marshal(map[string]string{"string": v.lo})
	case TypeCharInterval:
		return json.Marshal(map[string][2]string{"char_interval": {v.lo, v.hi}})
	case TypeStringInterval:
		return json.Marshal(map[string][2]string{"string_interval": {v.lo, v.hi}})
	default:
		return nil, fmt.Errorf("cannot marshal invalid value: %w", ErrTypeMismatch)
	}
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Value) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("decoding value: %w", err)
	}
	if len(fields) != 1 {
		return fmt.Errorf("value must set exactly one field, got %d: %w", len(fields), ErrTypeMismatch)
	}
	for tag, raw := range fields {
		kind, err := ParseDataType(tag)
		if err != nil {
			return fmt.Errorf("value tag %q: %w", tag, ErrTypeMismatch)
		}
		decoded, err := decodeTagged(kind, raw)
		if err != nil {
			return err
		}
		*v = decoded
	}
	return nil
}

func decodeTagged(kind DataType, raw json.RawMessage) (Value, error) {
	switch kind {
	case TypeInt:
		var i int64
		if err := json.Unmarshal(raw, &i); err != nil {
			return Value{}, fmt.Errorf("decoding int payload: %w", err)
		}
		return IntValue(i), nil
	case TypeFloat:
		var f float64
		if err := json.Unmarshal(raw, &f); err != nil {
			return Value{}, fmt.Errorf("decoding float payload: %w", err)
		}
		return FloatValue(f)
	case TypeChar:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return Value{}, fmt.Errorf("decoding char payload: %w", err)
		}
		if utf8.RuneCountInString(s) != 1 {
			return Value{}, fmt.Errorf("char payload %q must be a single code point: %w", s, ErrTypeMismatch)
		}
		r, _ := utf8.DecodeRuneInString(s)
		return CharValue(r), nil
	case TypeString:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return Value{}, fmt.Errorf("decoding string payload: %w", err)
		}
		return StringValue(s), nil
	case TypeCharInterval:
		var bounds [2]string
		if err := json.Unmarshal(raw, &bounds); err != nil {
			return Value{}, fmt.Errorf("decoding char_interval payload: %w", err)
		}
		if utf8.RuneCountInString(bounds[0]) != 1 || utf8.RuneCountInString(bounds[1]) != 1 {
			return Value{}, fmt.Errorf("char_interval bounds must be single code points: %w", ErrTypeMismatch)
		}
		lo, _ := utf8.DecodeRuneInString(bounds[0])
		hi, _ := utf8.DecodeRuneInString(bounds[1])
		return CharInterval(lo, hi)
	case TypeStringInterval:
		var bounds [2]string
		if err := json.Unmarshal(raw, &bounds); err != nil {
			return Value{}, fmt.Errorf("decoding string_interval payload: %w", err)
		}
		return StringInterval(bounds[0], bounds[1])
	default:
		return Value{}, fmt.Errorf("value tag %s: %w", kind, ErrTypeMismatch)
	}
}

// ParseLiteral parses a plain-text literal (query parameter, REPL token)
// into a value of the declared scalar type.
func ParseLiteral(decl DataType, text string) (Value, error) {
	switch decl {
	case TypeInt:
		i, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return Value{}, fmt.Errorf("literal %q is not an int: %w", text, ErrTypeMismatch)
		}
		return IntValue(i), nil
	case TypeFloat:
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return Value{}, fmt.Errorf("literal %q is not a float: %w", text, ErrTypeMismatch)
		}
		return FloatValue(f)
	case TypeChar:
		if utf8.RuneCountInString(text) != 1 {
			return Value{}, fmt.Errorf("literal %q is not a single char: %w", text, ErrTypeMismatch)
		}
		r, _ := utf8.DecodeRuneInString(text)
		return CharValue(r), nil
	case TypeString:
		return StringValue(text), nil
	default:
		return Value{}, fmt.Errorf("cannot parse literal as %s: %w", decl, ErrTypeMismatch)
	}
}
