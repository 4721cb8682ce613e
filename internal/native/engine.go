// Package native implements the file-backed storage engine. Each database is
// a directory holding a `.schema` text file and one binary row file per
// table; reads are full scans and every mutation is synced to disk before
// the operation returns.
package native

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/mesh-intelligence/larder/pkg/types"
)

const schemaFileName = ".schema"

// Engine is the native backend for one database directory. The dispatcher
// serializes access per table, but operations on different tables may arrive
// concurrently, so the lazily-opened handle map carries its own lock.
type Engine struct {
	dir    string
	schema *types.Schema

	mu     sync.Mutex
	tables map[string]*tableFile
}

// storageErr tags an underlying I/O failure so front-ends can classify it
// while the cause stays inspectable.
func storageErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, types.ErrStorage, err)
}

// Open loads an existing database directory.
func Open(dir string) (*Engine, error) {
	schema, err := loadSchema(dir)
	if err != nil {
		return nil, err
	}
	if schema.Kind != types.BackendNative {
		return nil, fmt.Errorf("database at %s is %q, not native: %w", dir, schema.Kind, types.ErrStorage)
	}
	return &Engine{dir: dir, schema: schema, tables: make(map[string]*tableFile)}, nil
}

// Create initializes a new database directory with an empty schema. The
// directory must not already hold a database.
func Create(dir, name string) (*Engine, error) {
	if err := types.ValidateName(name); err != nil {
		return nil, err
	}
	if _, err := os.Stat(filepath.Join(dir, schemaFileName)); err == nil {
		return nil, fmt.Errorf("database already exists at %s: %w", dir, types.ErrStorage)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, storageErr("creating database directory", err)
	}
	e := &Engine{
		dir:    dir,
		schema: types.NewSchema(name, types.BackendNative),
		tables: make(map[string]*tableFile),
	}
	if err := e.dumpSchema(); err != nil {
		return nil, err
	}
	return e, nil
}

// Schema implements types.Backend.
func (e *Engine) Schema() *types.Schema {
	return e.schema.Clone()
}

// Close releases every open table file.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	var firstErr error
	for name, t := range e.tables {
		if err := t.close(); err != nil && firstErr == nil {
			firstErr = storageErr("closing table "+name, err)
		}
	}
	e.tables = make(map[string]*tableFile)
	return firstErr
}

// CreateTable implements types.Backend. The schema file reflects the new
// table before the call returns; the in-memory schema only advances once the
// dump has landed.
func (e *Engine) CreateTable(table string, columns []types.Column) error {
	next := e.schema.Clone()
	if err := next.CreateTable(table, columns); err != nil {
		return err
	}
	prev := e.schema
	e.schema = next
	if err := e.dumpSchema(); err != nil {
		e.schema = prev
		return err
	}
	// a row file left behind by an interrupted drop must not leak into the
	// new table
	if err := os.Remove(e.tablePath(table)); err != nil && !os.IsNotExist(err) {
		return storageErr("clearing stale table file", err)
	}
	return nil
}

// DropTable implements types.Backend. The shrunken schema is persisted before
// row data is touched, so a failed dump leaves the table and its rows intact.
func (e *Engine) DropTable(table string) error {
	next := e.schema.Clone()
	if err := next.DropTable(table); err != nil {
		return err
	}
	prev := e.schema
	e.schema = next
	if err := e.dumpSchema(); err != nil {
		e.schema = prev
		return err
	}
	e.mu.Lock()
	if t, ok := e.tables[table]; ok {
		_ = t.close()
		delete(e.tables, table)
	}
	e.mu.Unlock()
	if err := os.Remove(e.tablePath(table)); err != nil && !os.IsNotExist(err) {
		return storageErr("removing table file", err)
	}
	return nil
}

// RenameColumns implements types.Backend. The row encoding is positional, so
// only the schema file changes.
func (e *Engine) RenameColumns(table string, rename map[string]string) error {
	next := e.schema.Clone()
	if err := next.AlterTable(table, rename); err != nil {
		return err
	}
	prev := e.schema
	e.schema = next
	if err := e.dumpSchema(); err != nil {
		e.schema = prev
		return err
	}
	e.mu.Lock()
	if t, ok := e.tables[table]; ok {
		t.columns = e.schema.Tables[table].Columns
	}
	e.mu.Unlock()
	return nil
}

// Insert implements types.Backend.
func (e *Engine) Insert(table string, row types.Row) (types.Row, error) {
	t, err := e.table(table)
	if err != nil {
		return nil, err
	}
	if err := t.append(row); err != nil {
		return nil, err
	}
	return row, nil
}

// Select implements types.Backend via a full scan in file order.
func (e *Engine) Select(table string, columns []string, conditions types.ConditionSet) ([]types.Row, error) {
	ts, err := e.schema.Table(table)
	if err != nil {
		return nil, err
	}
	for _, name := range columns {
		if _, ok := ts.Column(name); !ok {
			return nil, fmt.Errorf("column %q: %w", name, types.ErrColumnNotFound)
		}
	}
	t, err := e.table(table)
	if err != nil {
		return nil, err
	}
	records, err := t.readAll()
	if err != nil {
		return nil, err
	}
	rows := []types.Row{}
	for _, rec := range records {
		if !rec.live {
			continue
		}
		ok, err := conditions.Matches(rec.row)
		if err != nil {
			return nil, err
		}
		if ok {
			rows = append(rows, rec.row.Project(columns))
		}
	}
	return rows, nil
}

// Update implements types.Backend. Matching rows are rewritten by appending
// the updated record and tombstoning the old one, then the file is synced.
func (e *Engine) Update(table string, set types.Row, conditions types.ConditionSet) (int, error) {
	t, err := e.table(table)
	if err != nil {
		return 0, err
	}
	records, err := t.readAll()
	if err != nil {
		return 0, err
	}
	count := 0
	for _, rec := range records {
		if !rec.live {
			continue
		}
		ok, err := conditions.Matches(rec.row)
		if err != nil {
			return 0, err
		}
		if !ok {
			continue
		}
		for column, value := range set {
			rec.row[column] = value
		}
		if err := t.appendNoSync(rec.row); err != nil {
			return 0, err
		}
		if err := t.tombstone(rec.offset); err != nil {
			return 0, err
		}
		count++
	}
	if count > 0 {
		if err := t.sync(); err != nil {
			return 0, err
		}
	}
	return count, nil
}

// Delete implements types.Backend by tombstoning matching records.
func (e *Engine) Delete(table string, conditions types.ConditionSet) (int, error) {
	t, err := e.table(table)
	if err != nil {
		return 0, err
	}
	records, err := t.readAll()
	if err != nil {
		return 0, err
	}
	count := 0
	for _, rec := range records {
		if !rec.live {
			continue
		}
		ok, err := conditions.Matches(rec.row)
		if err != nil {
			return 0, err
		}
		if !ok {
			continue
		}
		if err := t.tombstone(rec.offset); err != nil {
			return 0, err
		}
		count++
	}
	if count > 0 {
		if err := t.sync(); err != nil {
			return 0, err
		}
	}
	return count, nil
}

// table returns the open handle for a table, opening its row file lazily.
// First touches of different tables may race here, hence the lock.
func (e *Engine) table(name string) (*tableFile, error) {
	ts, err := e.schema.Table(name)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if t, ok := e.tables[name]; ok {
		return t, nil
	}
	t, err := openTableFile(e.tablePath(name), ts.Columns)
	if err != nil {
		return nil, err
	}
	e.tables[name] = t
	return t, nil
}

func (e *Engine) tablePath(name string) string {
	return filepath.Join(e.dir, name+".tbl")
}

// Schema file format: first line `name#kind`, then one `table#col:type,...`
// line per table, sorted by table name for stable dumps.

func loadSchema(dir string) (*types.Schema, error) {
	data, err := os.ReadFile(filepath.Join(dir, schemaFileName))
	if err != nil {
		return nil, storageErr("reading schema file", err)
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	name, kind, ok := strings.Cut(lines[0], "#")
	if !ok {
		return nil, fmt.Errorf("schema file header %q corrupted: %w", lines[0], types.ErrStorage)
	}
	schema := types.NewSchema(name, kind)
	for _, line := range lines[1:] {
		if line == "" {
			continue
		}
		table, columnList, ok := strings.Cut(line, "#")
		if !ok {
			return nil, fmt.Errorf("schema file line %q corrupted: %w", line, types.ErrStorage)
		}
		var columns []types.Column
		for _, spec := range strings.Split(columnList, ",") {
			colName, typeName, ok := strings.Cut(spec, ":")
			if !ok {
				return nil, fmt.Errorf("schema file column %q corrupted: %w", spec, types.ErrStorage)
			}
			dt, err := types.ParseDataType(typeName)
			if err != nil {
				return nil, err
			}
			columns = append(columns, types.Column{Name: colName, Type: dt})
		}
		if err := schema.CreateTable(table, columns); err != nil {
			return nil, err
		}
	}
	return schema, nil
}

// dumpSchema rewrites the schema file atomically: temp file, fsync, rename.
func (e *Engine) dumpSchema() error {
	var b strings.Builder
	fmt.Fprintf(&b, "%s#%s\n", e.schema.Name, e.schema.Kind)
	names := make([]string, 0, len(e.schema.Tables))
	for name := range e.schema.Tables {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		specs := make([]string, 0, len(e.schema.Tables[name].Columns))
		for _, c := range e.schema.Tables[name].Columns {
			specs = append(specs, c.Name+":"+c.Type.String())
		}
		fmt.Fprintf(&b, "%s#%s\n", name, strings.Join(specs, ","))
	}

	tmp, err := os.CreateTemp(e.dir, ".schema-*.tmp")
	if err != nil {
		return storageErr("creating schema temp file", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.WriteString(b.String()); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return storageErr("writing schema", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return storageErr("syncing schema", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return storageErr("closing schema temp file", err)
	}
	if err := os.Rename(tmpName, filepath.Join(e.dir, schemaFileName)); err != nil {
		os.Remove(tmpName)
		return storageErr("renaming schema temp file", err)
	}
	return nil
}
