// Package database dispatches typed queries to a storage backend. It owns
// the validation layer: every query is checked and coerced against the
// declared schema before the backend sees it, and per-table locks serialize
// writers while letting reads share.
package database

import (
	"fmt"
	"sync"

	"github.com/mesh-intelligence/larder/internal/native"
	"github.com/mesh-intelligence/larder/internal/sqlite"
	"github.com/mesh-intelligence/larder/pkg/types"
)

// Result is the outcome of one executed query. Select and Insert populate
// Rows; Update and Delete report the affected-row Count; schema operations
// leave both empty.
type Result struct {
	Rows  []types.Row `json:"rows,omitempty"`
	Count int         `json:"count"`
}

// Database wraps one backend with validation and locking.
type Database struct {
	backend types.Backend

	// ddl is held shared by row operations and exclusively by schema
	// operations, so a Create/Drop/Alter never interleaves with row access.
	ddl sync.RWMutex

	mu     sync.Mutex
	tables map[string]*sync.RWMutex
}

// Open loads an existing database according to the configured backend.
func Open(cfg types.Config) (*Database, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var (
		backend types.Backend
		err     error
	)
	switch cfg.Backend {
	case types.BackendNative:
		backend, err = native.Open(cfg.DataDir)
	case types.BackendSQLite:
		backend, err = sqlite.Open(cfg.DataDir)
	default:
		return nil, types.ErrBackendUnknown
	}
	if err != nil {
		return nil, err
	}
	return wrap(backend), nil
}

// Create initializes a new database directory and returns it opened.
func Create(cfg types.Config, name string) (*Database, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var (
		backend types.Backend
		err     error
	)
	switch cfg.Backend {
	case types.BackendNative:
		backend, err = native.Create(cfg.DataDir, name)
	case types.BackendSQLite:
		backend, err = sqlite.Create(cfg.DataDir, name)
	default:
		return nil, types.ErrBackendUnknown
	}
	if err != nil {
		return nil, err
	}
	return wrap(backend), nil
}

// New wraps an already-open backend. Tests use it to run the dispatcher over
// hand-built engines.
func New(backend types.Backend) *Database {
	return wrap(backend)
}

func wrap(backend types.Backend) *Database {
	return &Database{backend: backend, tables: make(map[string]*sync.RWMutex)}
}

// Close releases the backend.
func (d *Database) Close() error {
	d.ddl.Lock()
	defer d.ddl.Unlock()
	return d.backend.Close()
}

// Schema returns a snapshot of the database schema.
func (d *Database) Schema() *types.Schema {
	d.ddl.RLock()
	defer d.ddl.RUnlock()
	return d.backend.Schema()
}

// Execute validates one query and dispatches it to the backend.
func (d *Database) Execute(query types.Query) (Result, error) {
	switch q := query.(type) {
	case types.Select:
		return d.selectRows(q)
	case types.Insert:
		return d.insert(q)
	case types.Update:
		return d.update(q)
	case types.Delete:
		return d.delete(q)
	case types.Create:
		return d.create(q)
	case types.Drop:
		return d.drop(q)
	case types.Alter:
		return d.alter(q)
	default:
		return Result{}, fmt.Errorf("unsupported query %T: %w", query, types.ErrTypeMismatch)
	}
}

func (d *Database) selectRows(q types.Select) (Result, error) {
	d.ddl.RLock()
	defer d.ddl.RUnlock()

	ts, err := d.backend.Schema().Table(q.From)
	if err != nil {
		return Result{}, err
	}
	for _, column := range q.Columns {
		if _, ok := ts.Column(column); !ok {
			return Result{}, columnNotFound(column)
		}
	}
	conditions, err := checkConditions(ts, q.Conditions)
	if err != nil {
		return Result{}, err
	}

	lock := d.tableLock(q.From)
	lock.RLock()
	defer lock.RUnlock()

	rows, err := d.backend.Select(q.From, q.Columns, conditions)
	if err != nil {
		return Result{}, err
	}
	return Result{Rows: rows, Count: len(rows)}, nil
}

func (d *Database) insert(q types.Insert) (Result, error) {
	d.ddl.RLock()
	defer d.ddl.RUnlock()

	ts, err := d.backend.Schema().Table(q.Into)
	if err != nil {
		return Result{}, err
	}
	row, err := conformRow(ts, q.Values)
	if err != nil {
		return Result{}, err
	}

	lock := d.tableLock(q.Into)
	lock.Lock()
	defer lock.Unlock()

	stored, err := d.backend.Insert(q.Into, row)
	if err != nil {
		return Result{}, err
	}
	return Result{Rows: []types.Row{stored}, Count: 1}, nil
}

func (d *Database) update(q types.Update) (Result, error) {
	d.ddl.RLock()
	defer d.ddl.RUnlock()

	ts, err := d.backend.Schema().Table(q.Table)
	if err != nil {
		return Result{}, err
	}
	if len(q.Set) == 0 {
		return Result{}, fmt.Errorf("update sets no columns: %w", types.ErrIncompleteRow)
	}
	set, err := coerceAssignments(ts, q.Set)
	if err != nil {
		return Result{}, err
	}
	conditions, err := checkConditions(ts, q.Conditions)
	if err != nil {
		return Result{}, err
	}

	lock := d.tableLock(q.Table)
	lock.Lock()
	defer lock.Unlock()

	count, err := d.backend.Update(q.Table, set, conditions)
	if err != nil {
		return Result{}, err
	}
	return Result{Count: count}, nil
}

func (d *Database) delete(q types.Delete) (Result, error) {
	d.ddl.RLock()
	defer d.ddl.RUnlock()

	ts, err := d.backend.Schema().Table(q.From)
	if err != nil {
		return Result{}, err
	}
	conditions, err := checkConditions(ts, q.Conditions)
	if err != nil {
		return Result{}, err
	}

	lock := d.tableLock(q.From)
	lock.Lock()
	defer lock.Unlock()

	count, err := d.backend.Delete(q.From, conditions)
	if err != nil {
		return Result{}, err
	}
	return Result{Count: count}, nil
}

func (d *Database) create(q types.Create) (Result, error) {
	d.ddl.Lock()
	defer d.ddl.Unlock()
	if err := d.backend.CreateTable(q.Table, q.Columns); err != nil {
		return Result{}, err
	}
	return Result{}, nil
}

func (d *Database) drop(q types.Drop) (Result, error) {
	d.ddl.Lock()
	defer d.ddl.Unlock()
	if err := d.backend.DropTable(q.Table); err != nil {
		return Result{}, err
	}
	d.mu.Lock()
	delete(d.tables, q.Table)
	d.mu.Unlock()
	return Result{}, nil
}

func (d *Database) alter(q types.Alter) (Result, error) {
	d.ddl.Lock()
	defer d.ddl.Unlock()
	if err := d.backend.RenameColumns(q.Table, q.Rename); err != nil {
		return Result{}, err
	}
	return Result{}, nil
}

// tableLock returns the lock for a table, creating it on first use.
func (d *Database) tableLock(name string) *sync.RWMutex {
	d.mu.Lock()
	defer d.mu.Unlock()
	lock, ok := d.tables[name]
	if !ok {
		lock = &sync.RWMutex{}
		d.tables[name] = lock
	}
	return lock
}

// conformRow coerces an incoming row onto the declared schema: every column
// present exactly once, every value coerced to its declared type, nothing
// extra.
func conformRow(ts *types.TableSchema, values types.Row) (types.Row, error) {
	row := make(types.Row, len(ts.Columns))
	for _, c := range ts.Columns {
		v, ok := values[c.Name]
		if !ok {
			return nil, fmt.Errorf("row missing column %q: %w", c.Name, types.ErrIncompleteRow)
		}
		coerced, err := v.Coerce(c.Type)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", c.Name, err)
		}
		row[c.Name] = coerced
	}
	for name := range values {
		if _, ok := ts.Column(name); !ok {
			return nil, columnNotFound(name)
		}
	}
	return row, nil
}

// coerceAssignments coerces update assignments to their declared types.
func coerceAssignments(ts *types.TableSchema, set types.Row) (types.Row, error) {
	out := make(types.Row, len(set))
	for column, v := range set {
		decl, ok := ts.Column(column)
		if !ok {
			return nil, columnNotFound(column)
		}
		coerced, err := v.Coerce(decl)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", column, err)
		}
		out[column] = coerced
	}
	return out, nil
}

// checkConditions validates condition operands against declared types:
// scalars coerce to the column's type, intervals must already range over it.
func checkConditions(ts *types.TableSchema, conditions types.ConditionSet) (types.ConditionSet, error) {
	out := make(types.ConditionSet, len(conditions))
	for column, operand := range conditions {
		decl, ok := ts.Column(column)
		if !ok {
			return nil, columnNotFound(column)
		}
		if operand.Type().Interval() {
			if operand.Type().Element() != decl {
				return nil, fmt.Errorf("column %q: %s condition on %s column: %w",
					column, operand.Type(), decl, types.ErrTypeMismatch)
			}
			out[column] = operand
			continue
		}
		coerced, err := operand.Coerce(decl)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", column, err)
		}
		out[column] = coerced
	}
	return out, nil
}

func columnNotFound(name string) error {
	return fmt.Errorf("column %q: %w", name, types.ErrColumnNotFound)
}
