package database

import (
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/larder/internal/native"
	"github.com/mesh-intelligence/larder/internal/sqlite"
	"github.com/mesh-intelligence/larder/pkg/types"
)

// eachBackend runs the test against both storage engines so every dispatcher
// behavior is checked for backend equivalence.
func eachBackend(t *testing.T, run func(t *testing.T, db *Database)) {
	t.Helper()
	t.Run("native", func(t *testing.T) {
		e, err := native.Create(t.TempDir(), "test")
		require.NoError(t, err)
		db := New(e)
		t.Cleanup(func() { db.Close() })
		run(t, db)
	})
	t.Run("sqlite", func(t *testing.T) {
		e, err := sqlite.Create(t.TempDir(), "test")
		require.NoError(t, err)
		db := New(e)
		t.Cleanup(func() { db.Close() })
		run(t, db)
	})
}

func carColumns() []types.Column {
	return []types.Column{
		{Name: "id", Type: types.TypeInt},
		{Name: "name", Type: types.TypeString},
		{Name: "price", Type: types.TypeFloat},
	}
}

func seedCars(t *testing.T, db *Database) {
	t.Helper()
	_, err := db.Execute(types.Create{Table: "cars", Columns: carColumns()})
	require.NoError(t, err)
	for _, car := range []struct {
		id    int64
		name  string
		price float64
	}{
		{1, "ferrari", 123.456},
		{2, "lambo", 181.818},
	} {
		price, err := types.FloatValue(car.price)
		require.NoError(t, err)
		_, err = db.Execute(types.Insert{Into: "cars", Values: types.Row{
			"id":    types.IntValue(car.id),
			"name":  types.StringValue(car.name),
			"price": price,
		}})
		require.NoError(t, err)
	}
}

func TestSchemaRoundTrip(t *testing.T) {
	eachBackend(t, func(t *testing.T, db *Database) {
		_, err := db.Execute(types.Create{Table: "cars", Columns: carColumns()})
		require.NoError(t, err)

		ts, err := db.Schema().Table("cars")
		require.NoError(t, err)
		assert.Equal(t, []string{"id", "name", "price"}, ts.Names())

		_, err = db.Execute(types.Drop{Table: "cars"})
		require.NoError(t, err)
		_, err = db.Schema().Table("cars")
		assert.ErrorIs(t, err, types.ErrTableNotFound)
	})
}

func TestSelectEquality(t *testing.T) {
	eachBackend(t, func(t *testing.T, db *Database) {
		seedCars(t, db)

		result, err := db.Execute(types.Select{
			From:       "cars",
			Columns:    []string{"name", "price"},
			Conditions: types.ConditionSet{"id": types.IntValue(1)},
		})
		require.NoError(t, err)
		require.Len(t, result.Rows, 1)

		price, err := types.FloatValue(123.456)
		require.NoError(t, err)
		assert.Equal(t, types.Row{
			"name":  types.StringValue("ferrari"),
			"price": price,
		}, result.Rows[0])
	})
}

func TestSelectInterval(t *testing.T) {
	eachBackend(t, func(t *testing.T, db *Database) {
		seedCars(t, db)
		zeta, err := types.FloatValue(1.0)
		require.NoError(t, err)
		_, err = db.Execute(types.Insert{Into: "cars", Values: types.Row{
			"id":    types.IntValue(3),
			"name":  types.StringValue("zeta"),
			"price": zeta,
		}})
		require.NoError(t, err)

		iv, err := types.StringInterval("a", "m")
		require.NoError(t, err)
		result, err := db.Execute(types.Select{
			From:       "cars",
			Conditions: types.ConditionSet{"name": iv},
		})
		require.NoError(t, err)

		var names []string
		for _, row := range result.Rows {
			names = append(names, row["name"].Str())
		}
		sort.Strings(names)
		assert.Equal(t, []string{"ferrari", "lambo"}, names)
	})
}

func TestUpdateDeleteCounts(t *testing.T) {
	eachBackend(t, func(t *testing.T, db *Database) {
		seedCars(t, db)

		price, err := types.FloatValue(999.0)
		require.NoError(t, err)
		result, err := db.Execute(types.Update{
			Table:      "cars",
			Set:        types.Row{"price": price},
			Conditions: types.ConditionSet{"id": types.IntValue(1)},
		})
		require.NoError(t, err)
		assert.Equal(t, 1, result.Count)

		got, err := db.Execute(types.Select{From: "cars", Conditions: types.ConditionSet{"id": types.IntValue(1)}})
		require.NoError(t, err)
		require.Len(t, got.Rows, 1)
		assert.Equal(t, price, got.Rows[0]["price"])

		result, err = db.Execute(types.Delete{From: "cars", Conditions: types.ConditionSet{"id": types.IntValue(2)}})
		require.NoError(t, err)
		assert.Equal(t, 1, result.Count)

		got, err = db.Execute(types.Select{From: "cars"})
		require.NoError(t, err)
		require.Len(t, got.Rows, 1)
		assert.Equal(t, types.IntValue(1), got.Rows[0]["id"])
	})
}

func TestTypeEnforcement(t *testing.T) {
	eachBackend(t, func(t *testing.T, db *Database) {
		seedCars(t, db)

		_, err := db.Execute(types.Insert{Into: "cars", Values: types.Row{
			"id":    types.StringValue("not a number"),
			"name":  types.StringValue("bad"),
			"price": types.IntValue(1),
		}})
		assert.ErrorIs(t, err, types.ErrTypeMismatch)

		_, err = db.Execute(types.Update{
			Table:      "cars",
			Set:        types.Row{"price": types.StringValue("free")},
			Conditions: types.ConditionSet{"id": types.IntValue(1)},
		})
		assert.ErrorIs(t, err, types.ErrTypeMismatch)

		// stored rows unchanged
		got, err := db.Execute(types.Select{From: "cars"})
		require.NoError(t, err)
		assert.Len(t, got.Rows, 2)
	})
}

func TestCoercionOnInsert(t *testing.T) {
	eachBackend(t, func(t *testing.T, db *Database) {
		_, err := db.Execute(types.Create{Table: "cars", Columns: carColumns()})
		require.NoError(t, err)

		// string literals coerce into the declared numeric types
		_, err = db.Execute(types.Insert{Into: "cars", Values: types.Row{
			"id":    types.StringValue("7"),
			"name":  types.StringValue("ferrari"),
			"price": types.IntValue(100),
		}})
		require.NoError(t, err)

		got, err := db.Execute(types.Select{From: "cars", Conditions: types.ConditionSet{"id": types.IntValue(7)}})
		require.NoError(t, err)
		require.Len(t, got.Rows, 1)
		want, err := types.FloatValue(100)
		require.NoError(t, err)
		assert.Equal(t, want, got.Rows[0]["price"])
	})
}

func TestValidationErrors(t *testing.T) {
	eachBackend(t, func(t *testing.T, db *Database) {
		seedCars(t, db)

		t.Run("unknown table", func(t *testing.T) {
			_, err := db.Execute(types.Select{From: "boats"})
			assert.ErrorIs(t, err, types.ErrTableNotFound)
		})

		t.Run("unknown projection column", func(t *testing.T) {
			_, err := db.Execute(types.Select{From: "cars", Columns: []string{"wheels"}})
			assert.ErrorIs(t, err, types.ErrColumnNotFound)
		})

		t.Run("unknown condition column", func(t *testing.T) {
			_, err := db.Execute(types.Select{From: "cars", Conditions: types.ConditionSet{"wheels": types.IntValue(4)}})
			assert.ErrorIs(t, err, types.ErrColumnNotFound)
		})

		t.Run("incomplete insert", func(t *testing.T) {
			_, err := db.Execute(types.Insert{Into: "cars", Values: types.Row{"id": types.IntValue(9)}})
			assert.ErrorIs(t, err, types.ErrIncompleteRow)
		})

		t.Run("extra insert column", func(t *testing.T) {
			price, err := types.FloatValue(1)
			require.NoError(t, err)
			_, err = db.Execute(types.Insert{Into: "cars", Values: types.Row{
				"id":     types.IntValue(9),
				"name":   types.StringValue("x"),
				"price":  price,
				"wheels": types.IntValue(4),
			}})
			assert.ErrorIs(t, err, types.ErrColumnNotFound)
		})

		t.Run("interval on mismatched column", func(t *testing.T) {
			iv, err := types.StringInterval("a", "m")
			require.NoError(t, err)
			_, err = db.Execute(types.Select{From: "cars", Conditions: types.ConditionSet{"id": iv}})
			assert.ErrorIs(t, err, types.ErrTypeMismatch)
		})

		t.Run("empty update set", func(t *testing.T) {
			_, err := db.Execute(types.Update{Table: "cars", Conditions: types.ConditionSet{"id": types.IntValue(1)}})
			assert.ErrorIs(t, err, types.ErrIncompleteRow)
		})

		t.Run("create existing table", func(t *testing.T) {
			_, err := db.Execute(types.Create{Table: "cars", Columns: carColumns()})
			assert.ErrorIs(t, err, types.ErrTableExists)
		})
	})
}

func TestRenamePreservesData(t *testing.T) {
	eachBackend(t, func(t *testing.T, db *Database) {
		seedCars(t, db)

		_, err := db.Execute(types.Alter{Table: "cars", Rename: map[string]string{"price": "cost"}})
		require.NoError(t, err)

		got, err := db.Execute(types.Select{From: "cars", Columns: []string{"cost"}, Conditions: types.ConditionSet{"id": types.IntValue(1)}})
		require.NoError(t, err)
		require.Len(t, got.Rows, 1)
		want, err := types.FloatValue(123.456)
		require.NoError(t, err)
		assert.Equal(t, want, got.Rows[0]["cost"])

		_, err = db.Execute(types.Select{From: "cars", Columns: []string{"price"}})
		assert.ErrorIs(t, err, types.ErrColumnNotFound)
	})
}

func TestDropCreateCycle(t *testing.T) {
	eachBackend(t, func(t *testing.T, db *Database) {
		seedCars(t, db)
		_, err := db.Execute(types.Drop{Table: "cars"})
		require.NoError(t, err)

		_, err = db.Execute(types.Create{Table: "cars", Columns: []types.Column{{Name: "model", Type: types.TypeString}}})
		require.NoError(t, err)

		ts, err := db.Schema().Table("cars")
		require.NoError(t, err)
		assert.Equal(t, []string{"model"}, ts.Names())

		got, err := db.Execute(types.Select{From: "cars"})
		require.NoError(t, err)
		assert.Empty(t, got.Rows)
	})
}

func TestConcurrentReadersAndWriters(t *testing.T) {
	eachBackend(t, func(t *testing.T, db *Database) {
		seedCars(t, db)

		var wg sync.WaitGroup
		errs := make(chan error, 40)
		for i := 0; i < 10; i++ {
			wg.Add(2)
			go func(i int) {
				defer wg.Done()
				_, err := db.Execute(types.Select{From: "cars"})
				errs <- err
			}(i)
			go func(i int) {
				defer wg.Done()
				price, err := types.FloatValue(float64(i))
				if err != nil {
					errs <- err
					return
				}
				_, err = db.Execute(types.Update{
					Table:      "cars",
					Set:        types.Row{"price": price},
					Conditions: types.ConditionSet{"id": types.IntValue(1)},
				})
				errs <- err
			}(i)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			assert.NoError(t, err)
		}

		got, err := db.Execute(types.Select{From: "cars"})
		require.NoError(t, err)
		assert.Len(t, got.Rows, 2)
	})
}

// TestConcurrentInsertsAcrossTables hits several freshly created tables at
// once: different tables share no per-table lock, so the engines must
// tolerate concurrent first touches.
func TestConcurrentInsertsAcrossTables(t *testing.T) {
	eachBackend(t, func(t *testing.T, db *Database) {
		const tables = 8
		for i := 0; i < tables; i++ {
			_, err := db.Execute(types.Create{
				Table:   fmt.Sprintf("cars_%d", i),
				Columns: carColumns(),
			})
			require.NoError(t, err)
		}

		var wg sync.WaitGroup
		errs := make(chan error, tables)
		for i := 0; i < tables; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				price, err := types.FloatValue(float64(i))
				if err != nil {
					errs <- err
					return
				}
				_, err = db.Execute(types.Insert{
					Into: fmt.Sprintf("cars_%d", i),
					Values: types.Row{
						"id":    types.IntValue(int64(i)),
						"name":  types.StringValue("ferrari"),
						"price": price,
					},
				})
				errs <- err
			}(i)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			assert.NoError(t, err)
		}

		for i := 0; i < tables; i++ {
			got, err := db.Execute(types.Select{From: fmt.Sprintf("cars_%d", i)})
			require.NoError(t, err)
			assert.Len(t, got.Rows, 1)
		}
	})
}

func TestOpenCreateConfig(t *testing.T) {
	for _, backend := range []string{types.BackendNative, types.BackendSQLite} {
		t.Run(backend, func(t *testing.T) {
			dir := t.TempDir()
			cfg := types.Config{Backend: backend, DataDir: dir}

			db, err := Create(cfg, "garage")
			require.NoError(t, err)
			_, err = db.Execute(types.Create{Table: "cars", Columns: carColumns()})
			require.NoError(t, err)
			require.NoError(t, db.Close())

			reopened, err := Open(cfg)
			require.NoError(t, err)
			defer reopened.Close()

			schema := reopened.Schema()
			assert.Equal(t, "garage", schema.Name)
			assert.Equal(t, backend, schema.Kind)
		})
	}

	_, err := Open(types.Config{Backend: "postgres", DataDir: t.TempDir()})
	assert.ErrorIs(t, err, types.ErrBackendUnknown)

	_, err = Open(types.Config{Backend: types.BackendNative})
	assert.ErrorIs(t, err, types.ErrDataDirEmpty)
}

// TestBackendEquivalence drives an identical operation script through both
// engines and requires identical results modulo row order.
func TestBackendEquivalence(t *testing.T) {
	nativeEngine, err := native.Create(t.TempDir(), "equiv")
	require.NoError(t, err)
	sqliteEngine, err := sqlite.Create(t.TempDir(), "equiv")
	require.NoError(t, err)

	dbs := map[string]*Database{
		"native": New(nativeEngine),
		"sqlite": New(sqliteEngine),
	}
	t.Cleanup(func() {
		for _, db := range dbs {
			db.Close()
		}
	})

	price := func(f float64) types.Value {
		v, err := types.FloatValue(f)
		require.NoError(t, err)
		return v
	}
	nameInterval, err := types.StringInterval("a", "m")
	require.NoError(t, err)

	script := []types.Query{
		types.Create{Table: "cars", Columns: carColumns()},
		types.Insert{Into: "cars", Values: types.Row{"id": types.IntValue(1), "name": types.StringValue("ferrari"), "price": price(123.456)}},
		types.Insert{Into: "cars", Values: types.Row{"id": types.IntValue(2), "name": types.StringValue("lambo"), "price": price(181.818)}},
		types.Insert{Into: "cars", Values: types.Row{"id": types.IntValue(3), "name": types.StringValue("zeta"), "price": price(1)}},
		types.Select{From: "cars", Conditions: types.ConditionSet{"id": types.IntValue(1)}},
		types.Select{From: "cars", Columns: []string{"name"}, Conditions: types.ConditionSet{"name": nameInterval}},
		types.Update{Table: "cars", Set: types.Row{"price": price(999)}, Conditions: types.ConditionSet{"id": types.IntValue(1)}},
		types.Delete{From: "cars", Conditions: types.ConditionSet{"id": types.IntValue(3)}},
		types.Alter{Table: "cars", Rename: map[string]string{"price": "cost"}},
		types.Select{From: "cars"},
	}

	for i, q := range script {
		nativeResult, nativeErr := dbs["native"].Execute(q)
		sqliteResult, sqliteErr := dbs["sqlite"].Execute(q)
		require.Equal(t, nativeErr == nil, sqliteErr == nil, "step %d: %v vs %v", i, nativeErr, sqliteErr)
		assert.Equal(t, nativeResult.Count, sqliteResult.Count, "step %d count", i)
		assert.ElementsMatch(t, canonical(nativeResult.Rows), canonical(sqliteResult.Rows), "step %d rows", i)
	}
}

// canonical renders rows as order-independent strings for comparison.
func canonical(rows []types.Row) []string {
	out := make([]string, len(rows))
	for i, row := range rows {
		columns := make([]string, 0, len(row))
		for c := range row {
			columns = append(columns, c)
		}
		sort.Strings(columns)
		s := ""
		for _, c := range columns {
			s += fmt.Sprintf("%s=%s;", c, row[c])
		}
		out[i] = s
	}
	return out
}
