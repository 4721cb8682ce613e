package types

import (
	"encoding/json"
	"fmt"
)

// Column is one declared column: a name and a scalar type.
type Column struct {
	Name string   `json:"name"`
	Type DataType `json:"type"`
}

// TableSchema is the ordered column list of one table. Order is declaration
// order and defines projection order in results. On the wire a table schema
// is just its column array.
type TableSchema struct {
	Columns []Column
}

// MarshalJSON flattens the table schema to its ordered column list.
func (t *TableSchema) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Columns)
}

// UnmarshalJSON decodes an ordered column list.
func (t *TableSchema) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, &t.Columns)
}

// Schema describes a whole database: its name, the backend kind holding it,
// and every table's columns.
type Schema struct {
	Name   string                  `json:"name"`
	Kind   string                  `json:"kind"`
	Tables map[string]*TableSchema `json:"tables"`
}

// NewSchema returns an empty schema for a database of the given kind.
func NewSchema(name, kind string) *Schema {
	return &Schema{Name: name, Kind: kind, Tables: make(map[string]*TableSchema)}
}

// ValidateName accepts non-empty alphanumeric-plus-underscore identifiers
// for tables and columns. Everything else is rejected so that names are safe
// to embed in file paths and quoted SQL identifiers.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("empty name: %w", ErrInvalidName)
	}
	for _, c := range name {
		if !isWordChar(c) {
			return fmt.Errorf("name %q: %w", name, ErrInvalidName)
		}
	}
	return nil
}

func isWordChar(c rune) bool {
	return c == '_' ||
		(c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9')
}

// Column returns the declared type of the named column.
func (t *TableSchema) Column(name string) (DataType, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c.Type, true
		}
	}
	return TypeInvalid, false
}

// Names returns the column names in declaration order.
func (t *TableSchema) Names() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// clone returns a deep copy so callers can hand out schemas without
// exposing internal state to mutation.
func (t *TableSchema) clone() *TableSchema {
	cols := make([]Column, len(t.Columns))
	copy(cols, t.Columns)
	return &TableSchema{Columns: cols}
}

// Clone deep-copies the schema.
func (s *Schema) Clone() *Schema {
	out := NewSchema(s.Name, s.Kind)
	for name, t := range s.Tables {
		out.Tables[name] = t.clone()
	}
	return out
}

// Table returns the named table's schema.
func (s *Schema) Table(name string) (*TableSchema, error) {
	t, ok := s.Tables[name]
	if !ok {
		return nil, fmt.Errorf("table %q: %w", name, ErrTableNotFound)
	}
	return t, nil
}

// CreateTable records a new table. The proposed columns must be non-empty,
// uniquely named, validly named, and declared with scalar types only —
// interval tags are filter-operand types and are rejected outright.
func (s *Schema) CreateTable(name string, columns []Column) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	if _, ok := s.Tables[name]; ok {
		return fmt.Errorf("table %q: %w", name, ErrTableExists)
	}
	if len(columns) == 0 {
		return fmt.Errorf("table %q has no columns: %w", name, ErrInvalidSchema)
	}
	seen := make(map[string]bool, len(columns))
	for _, c := range columns {
		if err := ValidateName(c.Name); err != nil {
			return err
		}
		if !c.Type.Scalar() {
			return fmt.Errorf("column %q declared %s: %w", c.Name, c.Type, ErrInvalidSchema)
		}
		if seen[c.Name] {
			return fmt.Errorf("duplicate column %q: %w", c.Name, ErrInvalidSchema)
		}
		seen[c.Name] = true
	}
	cols := make([]Column, len(columns))
	copy(cols, columns)
	s.Tables[name] = &TableSchema{Columns: cols}
	return nil
}

// DropTable removes a table from the schema.
func (s *Schema) DropTable(name string) error {
	if _, ok := s.Tables[name]; !ok {
		return fmt.Errorf("table %q: %w", name, ErrTableNotFound)
	}
	delete(s.Tables, name)
	return nil
}

// AlterTable renames columns of a table in place. Every old name must exist
// and no new name may collide with a surviving or renamed column.
func (s *Schema) AlterTable(table string, rename map[string]string) error {
	t, ok := s.Tables[table]
	if !ok {
		return fmt.Errorf("table %q: %w", table, ErrTableNotFound)
	}
	for old, new := range rename {
		if _, ok := t.Column(old); !ok {
			return columnNotFound(old)
		}
		if err := ValidateName(new); err != nil {
			return err
		}
	}
	// Apply on a copy so a collision mid-way leaves the schema untouched.
	next := t.clone()
	for i, c := range next.Columns {
		if new, ok := rename[c.Name]; ok {
			next.Columns[i].Name = new
		}
	}
	seen := make(map[string]bool, len(next.Columns))
	for _, c := range next.Columns {
		if seen[c.Name] {
			return fmt.Errorf("column %q: %w", c.Name, ErrColumnExists)
		}
		seen[c.Name] = true
	}
	s.Tables[table] = next
	return nil
}

func columnNotFound(name string) error {
	return fmt.Errorf("column %q: %w", name, ErrColumnNotFound)
}
