package testsupport

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/goliatone/go-entity-cache/storage"
)

// Dataset maps table names to the rows seeded into them.
type Dataset map[string][]storage.Row

// Tables returns the table names in sorted order.
func (d Dataset) Tables() []string {
	tables := make([]string, 0, len(d))
	for table := range d {
		tables = append(tables, table)
	}
	sort.Strings(tables)
	return tables
}

// LoadFixture loads test data from a fixture file.
// The path is relative to the test package directory.
func LoadFixture(t testing.TB, path string) []byte {
	t.Helper()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to load fixture from %s: %v", path, err)
	}

	return data
}

// LoadFixtureJSON loads JSON test data from a fixture file and unmarshals it.
// The path is relative to the test package directory.
func LoadFixtureJSON(t testing.TB, path string, dest any) {
	t.Helper()

	data := LoadFixture(t, path)
	if err := json.Unmarshal(data, dest); err != nil {
		t.Fatalf("failed to unmarshal JSON fixture from %s: %v", path, err)
	}
}

// LoadDataset reads a JSON object of table name to row list.
// JSON numbers arrive as float64; storage adapters normalize integral
// values to int64.
func LoadDataset(t testing.TB, path string) Dataset {
	t.Helper()

	var data Dataset
	LoadFixtureJSON(t, path, &data)
	return data
}

// Seed upserts every row of data, table by table in sorted order. Rows
// with an "id" column are keyed by it; rows without one are appended as
// join table rows.
func Seed(ctx context.Context, adapter storage.Adapter, data Dataset) error {
	for _, table := range data.Tables() {
		for _, row := range data[table] {
			pk := ""
			if _, ok := row["id"]; ok {
				pk = "id"
			}
			if _, err := adapter.Upsert(ctx, table, pk, row); err != nil {
				return err
			}
		}
	}
	return nil
}

// MustSeed is Seed that fails the test on error.
func MustSeed(t testing.TB, adapter storage.Adapter, data Dataset) {
	t.Helper()

	if err := Seed(context.Background(), adapter, data); err != nil {
		t.Fatalf("failed to seed fixtures: %v", err)
	}
}

// FixturePath constructs a path to a fixture file relative to the testdata directory.
func FixturePath(filename string) string {
	return filepath.Join("testdata", filename)
}
