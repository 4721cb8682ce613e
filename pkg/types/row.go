package types

// Row maps column names to scalar values. A row conforming to its table's
// schema carries every declared column and nothing else.
type Row map[string]Value

// ConditionSet maps column names to condition operands: a scalar means
// equality, an interval means inclusive range membership. Conditions are
// conjunctive — a row matches only if every entry matches.
type ConditionSet map[string]Value

// Project returns a copy of the row restricted to the named columns. An
// empty column list keeps everything.
func (r Row) Project(columns []string) Row {
	if len(columns) == 0 {
		out := make(Row, len(r))
		for k, v := range r {
			out[k] = v
		}
		return out
	}
	out := make(Row, len(columns))
	for _, c := range columns {
		if v, ok := r[c]; ok {
			out[c] = v
		}
	}
	return out
}

// Matches reports whether the row satisfies every condition. A condition on
// a column the row does not carry is a column-not-found error.
func (c ConditionSet) Matches(row Row) (bool, error) {
	for column, cond := range c {
		cell, ok := row[column]
		if !ok {
			return false, columnNotFound(column)
		}
		ok, err := cond.Matches(cell)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}
