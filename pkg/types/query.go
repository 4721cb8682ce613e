package types

// Query is the closed set of operations the engine executes. Exactly one
// concrete type per operation; the dispatcher switches exhaustively over
// them, so adding a variant means extending that switch.
type Query interface {
	isQuery()
}

// Select returns the rows of From matching Conditions, projected to Columns
// in the given order. An empty Columns list selects every column in schema
// order.
type Select struct {
	From       string
	Columns    []string
	Conditions ConditionSet
}

// Insert appends one row to Into. Values must cover every declared column.
type Insert struct {
	Into   string
	Values Row
}

// Update overwrites the Set columns of every row matching Conditions.
type Update struct {
	Table      string
	Set        Row
	Conditions ConditionSet
}

// Delete removes every row of From matching Conditions.
type Delete struct {
	From       string
	Conditions ConditionSet
}

// Create makes a new table with the given ordered columns.
type Create struct {
	Table   string
	Columns []Column
}

// Drop removes a table and its persisted rows.
type Drop struct {
	Table string
}

// Alter renames columns in place; types and row data are unaffected.
type Alter struct {
	Table  string
	Rename map[string]string
}

func (Select) isQuery() {}
func (Insert) isQuery() {}
func (Update) isQuery() {}
func (Delete) isQuery() {}
func (Create) isQuery() {}
func (Drop) isQuery()   {}
func (Alter) isQuery()  {}
