package types

// Backend is the storage capability set a concrete engine provides, keyed by
// table name. The dispatcher validates queries against the schema before
// delegating, so implementations may assume structurally sound arguments and
// report only storage-level failures beyond the documented sentinel cases.
//
// Two implementations exist: the native file engine and the SQLite engine.
// A Database holds exactly one, chosen at open time; nothing downstream
// branches on the concrete type.
type Backend interface {
	// CreateTable makes a new table with the given ordered columns and
	// persists the updated schema before returning.
	CreateTable(table string, columns []Column) error

	// DropTable removes the table's schema entry and persisted rows.
	DropTable(table string) error

	// Insert appends one schema-conforming row and returns it as stored.
	Insert(table string, row Row) (Row, error)

	// Select returns every row matching conditions, projected to the named
	// columns in the requested order (schema order when empty). Iteration
	// order is backend-defined but stable.
	Select(table string, columns []string, conditions ConditionSet) ([]Row, error)

	// Update overwrites the set columns of every matching row and returns
	// the number of rows written.
	Update(table string, set Row, conditions ConditionSet) (int, error)

	// Delete removes every matching row and returns the count.
	Delete(table string, conditions ConditionSet) (int, error)

	// RenameColumns renames schema columns in place; row data is untouched.
	RenameColumns(table string, rename map[string]string) error

	// Schema returns a snapshot of the database schema.
	Schema() *Schema

	// Close releases the backend's resources, flushing any pending state.
	Close() error
}
