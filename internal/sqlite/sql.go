package sqlite

import (
	"fmt"
	"sort"
	"unicode/utf8"

	"github.com/mesh-intelligence/larder/pkg/types"
)

// quoteIdent double-quotes an identifier already vetted by ValidateName.
// Embedded quotes cannot occur in a valid name, so the escape is vestigial.
func quoteIdent(name string) string {
	return `"` + name + `"`
}

// sqlType maps a declared scalar type onto a SQLite column type. Chars are
// stored as TEXT so that interval conditions compare them the same way
// strings compare, code point by code point.
func sqlType(dt types.DataType) string {
	switch dt {
	case types.TypeInt:
		return "INTEGER"
	case types.TypeFloat:
		return "REAL"
	default:
		return "TEXT"
	}
}

// bindValue converts a scalar value into a driver-bindable argument.
func bindValue(v types.Value) any {
	switch v.Type() {
	case types.TypeInt:
		return v.Int()
	case types.TypeFloat:
		return v.Float()
	default:
		return v.Str()
	}
}

// whereClause renders a condition set as " WHERE ..." with placeholder
// arguments, or an empty string when there are no conditions. Scalars become
// equality tests, intervals inclusive BETWEEN ranges, conjoined with AND.
// Columns are visited in sorted order so the statement text is stable.
func whereClause(conditions types.ConditionSet) (string, []any) {
	if len(conditions) == 0 {
		return "", nil
	}
	columns := make([]string, 0, len(conditions))
	for column := range conditions {
		columns = append(columns, column)
	}
	sort.Strings(columns)

	clause := " WHERE "
	args := make([]any, 0, 2*len(conditions))
	for i, column := range columns {
		if i > 0 {
			clause += " AND "
		}
		operand := conditions[column]
		if operand.Type().Interval() {
			lo, hi := operand.Bounds()
			clause += quoteIdent(column) + " BETWEEN ? AND ?"
			args = append(args, lo, hi)
		} else {
			clause += quoteIdent(column) + " = ?"
			args = append(args, bindValue(operand))
		}
	}
	return clause, args
}

// scannedValue turns a scanned column back into a typed value according to
// the declared type.
func scannedValue(dt types.DataType, src any) (types.Value, error) {
	switch dt {
	case types.TypeInt:
		return types.IntValue(*src.(*int64)), nil
	case types.TypeFloat:
		v, err := types.FloatValue(*src.(*float64))
		if err != nil {
			return types.Value{}, fmt.Errorf("corrupt float cell: %w", types.ErrStorage)
		}
		return v, nil
	case types.TypeChar:
		s := *src.(*string)
		if utf8.RuneCountInString(s) != 1 {
			return types.Value{}, fmt.Errorf("corrupt char cell %q: %w", s, types.ErrStorage)
		}
		r, _ := utf8.DecodeRuneInString(s)
		return types.CharValue(r), nil
	case types.TypeString:
		return types.StringValue(*src.(*string)), nil
	default:
		return types.Value{}, fmt.Errorf("cannot scan %s cell: %w", dt, types.ErrStorage)
	}
}
