// Package sqlite implements the storage backend that delegates rows and
// predicate evaluation to an embedded SQLite database. Every typed query is
// translated into a statement with validated, quoted identifiers and bound
// parameters; no caller input is ever interpolated as SQL text.
package sqlite

import (
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/larder/pkg/types"
)

//go:embed schema.sql
var schemaSQL string

const dbFileName = "larder.db"

// Engine is the SQLite backend for one database directory. Like the native
// engine it relies on the dispatcher for validation and serialization.
type Engine struct {
	db     *sql.DB
	schema *types.Schema
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, types.ErrStorage, err)
}

// Open loads an existing SQLite-backed database directory.
func Open(dir string) (*Engine, error) {
	path := filepath.Join(dir, dbFileName)
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("no sqlite database at %s: %w", dir, types.ErrStorage)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, storageErr("opening sqlite database", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, storageErr("initializing metadata tables", err)
	}
	schema, err := loadSchema(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Engine{db: db, schema: schema}, nil
}

// Create initializes a new SQLite-backed database directory.
func Create(dir, name string) (*Engine, error) {
	if err := types.ValidateName(name); err != nil {
		return nil, err
	}
	path := filepath.Join(dir, dbFileName)
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("database already exists at %s: %w", dir, types.ErrStorage)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, storageErr("creating database directory", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, storageErr("opening sqlite database", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, storageErr("initializing metadata tables", err)
	}
	if _, err := db.Exec(
		"INSERT INTO _larder_meta (key, value) VALUES ('name', ?)", name); err != nil {
		db.Close()
		return nil, storageErr("recording database name", err)
	}
	return &Engine{db: db, schema: types.NewSchema(name, types.BackendSQLite)}, nil
}

// Schema implements types.Backend.
func (e *Engine) Schema() *types.Schema {
	return e.schema.Clone()
}

// Close implements types.Backend.
func (e *Engine) Close() error {
	if err := e.db.Close(); err != nil {
		return storageErr("closing sqlite database", err)
	}
	return nil
}

// CreateTable implements types.Backend: one transaction creates the SQLite
// table and records the declared types and column order in _larder_schema.
// The in-memory schema only advances once the transaction commits, so a
// storage failure never leaves it ahead of the catalog.
func (e *Engine) CreateTable(table string, columns []types.Column) error {
	next := e.schema.Clone()
	if err := next.CreateTable(table, columns); err != nil {
		return err
	}
	ddl := "CREATE TABLE " + quoteIdent(table) + " ("
	for i, c := range columns {
		if i > 0 {
			ddl += ", "
		}
		ddl += quoteIdent(c.Name) + " " + sqlType(c.Type) + " NOT NULL"
	}
	ddl += ")"

	err := e.inTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec(ddl); err != nil {
			return storageErr("creating table", err)
		}
		for i, c := range columns {
			if _, err := tx.Exec(
				"INSERT INTO _larder_schema (table_name, column_name, column_type, ordinal) VALUES (?, ?, ?, ?)",
				table, c.Name, c.Type.String(), i); err != nil {
				return storageErr("recording column", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	e.schema = next
	return nil
}

// DropTable implements types.Backend.
func (e *Engine) DropTable(table string) error {
	next := e.schema.Clone()
	if err := next.DropTable(table); err != nil {
		return err
	}
	err := e.inTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec("DROP TABLE " + quoteIdent(table)); err != nil {
			return storageErr("dropping table", err)
		}
		if _, err := tx.Exec("DELETE FROM _larder_schema WHERE table_name = ?", table); err != nil {
			return storageErr("clearing column records", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	e.schema = next
	return nil
}

// RenameColumns implements types.Backend. Renames go through a temporary
// name first so that swaps (a->b, b->a) never collide mid-way; "#" cannot
// appear in a validated column name, so the temporary never clashes with a
// declared column either.
func (e *Engine) RenameColumns(table string, rename map[string]string) error {
	next := e.schema.Clone()
	if err := next.AlterTable(table, rename); err != nil {
		return err
	}
	err := e.inTx(func(tx *sql.Tx) error {
		renameOne := func(old, new string) error {
			if _, err := tx.Exec(fmt.Sprintf(
				"ALTER TABLE %s RENAME COLUMN %s TO %s",
				quoteIdent(table), quoteIdent(old), quoteIdent(new))); err != nil {
				return storageErr("renaming column", err)
			}
			if _, err := tx.Exec(
				"UPDATE _larder_schema SET column_name = ? WHERE table_name = ? AND column_name = ?",
				new, table, old); err != nil {
				return storageErr("updating column record", err)
			}
			return nil
		}
		for old := range rename {
			if err := renameOne(old, old+"#tmp"); err != nil {
				return err
			}
		}
		for old, new := range rename {
			if err := renameOne(old+"#tmp", new); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	e.schema = next
	return nil
}

// Insert implements types.Backend.
func (e *Engine) Insert(table string, row types.Row) (types.Row, error) {
	ts, err := e.schema.Table(table)
	if err != nil {
		return nil, err
	}
	stmt := "INSERT INTO " + quoteIdent(table) + " ("
	placeholders := ""
	args := make([]any, 0, len(ts.Columns))
	for i, c := range ts.Columns {
		if i > 0 {
			stmt += ", "
			placeholders += ", "
		}
		stmt += quoteIdent(c.Name)
		placeholders += "?"
		value, ok := row[c.Name]
		if !ok {
			return nil, fmt.Errorf("row missing column %q: %w", c.Name, types.ErrIncompleteRow)
		}
		args = append(args, bindValue(value))
	}
	stmt += ") VALUES (" + placeholders + ")"
	if _, err := e.db.Exec(stmt, args...); err != nil {
		return nil, storageErr("inserting row", err)
	}
	return row, nil
}

// Select implements types.Backend. Scalar conditions become equality
// predicates, intervals become BETWEEN, all conjoined with AND.
func (e *Engine) Select(table string, columns []string, conditions types.ConditionSet) ([]types.Row, error) {
	ts, err := e.schema.Table(table)
	if err != nil {
		return nil, err
	}
	if len(columns) == 0 {
		columns = ts.Names()
	}
	selected := make([]types.Column, len(columns))
	stmt := "SELECT "
	for i, name := range columns {
		dt, ok := ts.Column(name)
		if !ok {
			return nil, fmt.Errorf("column %q: %w", name, types.ErrColumnNotFound)
		}
		selected[i] = types.Column{Name: name, Type: dt}
		if i > 0 {
			stmt += ", "
		}
		stmt += quoteIdent(name)
	}
	stmt += " FROM " + quoteIdent(table)
	where, args := whereClause(conditions)
	stmt += where

	rows, err := e.db.Query(stmt, args...)
	if err != nil {
		return nil, storageErr("selecting rows", err)
	}
	defer rows.Close()

	results := []types.Row{}
	for rows.Next() {
		dest := make([]any, len(selected))
		for i, c := range selected {
			switch c.Type {
			case types.TypeInt:
				dest[i] = new(int64)
			case types.TypeFloat:
				dest[i] = new(float64)
			default:
				dest[i] = new(string)
			}
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, storageErr("scanning row", err)
		}
		row := make(types.Row, len(selected))
		for i, c := range selected {
			v, err := scannedValue(c.Type, dest[i])
			if err != nil {
				return nil, err
			}
			row[c.Name] = v
		}
		results = append(results, row)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterating rows", err)
	}
	return results, nil
}

// Update implements types.Backend, returning the matched-row count.
func (e *Engine) Update(table string, set types.Row, conditions types.ConditionSet) (int, error) {
	if _, err := e.schema.Table(table); err != nil {
		return 0, err
	}
	stmt := "UPDATE " + quoteIdent(table) + " SET "
	args := make([]any, 0, len(set)+2*len(conditions))
	first := true
	for column, value := range set {
		if !first {
			stmt += ", "
		}
		first = false
		stmt += quoteIdent(column) + " = ?"
		args = append(args, bindValue(value))
	}
	where, whereArgs := whereClause(conditions)
	stmt += where
	args = append(args, whereArgs...)

	res, err := e.db.Exec(stmt, args...)
	if err != nil {
		return 0, storageErr("updating rows", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, storageErr("counting updated rows", err)
	}
	return int(n), nil
}

// Delete implements types.Backend.
func (e *Engine) Delete(table string, conditions types.ConditionSet) (int, error) {
	if _, err := e.schema.Table(table); err != nil {
		return 0, err
	}
	where, args := whereClause(conditions)
	res, err := e.db.Exec("DELETE FROM "+quoteIdent(table)+where, args...)
	if err != nil {
		return 0, storageErr("deleting rows", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, storageErr("counting deleted rows", err)
	}
	return int(n), nil
}

// inTx runs fn inside a transaction, rolling back on error.
func (e *Engine) inTx(fn func(tx *sql.Tx) error) error {
	tx, err := e.db.Begin()
	if err != nil {
		return storageErr("beginning transaction", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return storageErr("committing transaction", err)
	}
	return nil
}

// loadSchema rebuilds the typed schema from the metadata tables.
func loadSchema(db *sql.DB) (*types.Schema, error) {
	var name string
	err := db.QueryRow("SELECT value FROM _larder_meta WHERE key = 'name'").Scan(&name)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("database name missing from metadata: %w", types.ErrStorage)
	}
	if err != nil {
		return nil, storageErr("reading database name", err)
	}

	schema := types.NewSchema(name, types.BackendSQLite)
	rows, err := db.Query(
		"SELECT table_name, column_name, column_type FROM _larder_schema ORDER BY table_name, ordinal")
	if err != nil {
		return nil, storageErr("reading schema records", err)
	}
	defer rows.Close()

	columns := make(map[string][]types.Column)
	var order []string
	for rows.Next() {
		var table, column, typeName string
		if err := rows.Scan(&table, &column, &typeName); err != nil {
			return nil, storageErr("scanning schema record", err)
		}
		dt, err := types.ParseDataType(typeName)
		if err != nil {
			return nil, err
		}
		if _, ok := columns[table]; !ok {
			order = append(order, table)
		}
		columns[table] = append(columns[table], types.Column{Name: column, Type: dt})
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterating schema records", err)
	}
	for _, table := range order {
		if err := schema.CreateTable(table, columns[table]); err != nil {
			return nil, err
		}
	}
	return schema, nil
}
