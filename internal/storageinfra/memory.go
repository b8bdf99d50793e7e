package storageinfra

import (
	"context"
	"sort"
	"sync"

	"github.com/puzpuzpuz/xsync/v3"
)

// memoryTable keeps rows in insertion order behind a single lock.
type memoryTable struct {
	mu   sync.RWMutex
	rows []Row
	seq  int64
}

// MemoryAdapter is an in-process storage backend.
// Tables are created on first write. It is safe for concurrent use.
type MemoryAdapter struct {
	tables *xsync.MapOf[string, *memoryTable]
}

// NewMemoryAdapter returns an empty in-memory store.
func NewMemoryAdapter() *MemoryAdapter {
	return &MemoryAdapter{tables: xsync.NewMapOf[string, *memoryTable]()}
}

func (m *MemoryAdapter) table(name string, create bool) *memoryTable {
	if !create {
		t, _ := m.tables.Load(name)
		return t
	}
	t, _ := m.tables.LoadOrCompute(name, func() *memoryTable { return &memoryTable{} })
	return t
}

func (m *MemoryAdapter) Load(ctx context.Context, table, pk string, id any) (Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t := m.table(table, false)
	if t == nil {
		return nil, ErrNotFound
	}

	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, row := range t.rows {
		if Equal(row[pk], id) {
			return row.Clone(), nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryAdapter) FindOne(ctx context.Context, table string, filter Filter) (Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t := m.table(table, false)
	if t == nil {
		return nil, ErrNotFound
	}

	t.mu.RLock()
	defer t.mu.RUnlock()
	var found Row
	for _, row := range t.rows {
		if !filter.Matches(row) {
			continue
		}
		if found != nil {
			return nil, ErrAmbiguous
		}
		found = row
	}
	if found == nil {
		return nil, ErrNotFound
	}
	return found.Clone(), nil
}

func (m *MemoryAdapter) FindAllIDs(ctx context.Context, table, pk string, filter Filter) ([]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t := m.table(table, false)
	if t == nil {
		return nil, nil
	}

	t.mu.RLock()
	ids := make([]any, 0)
	for _, row := range t.rows {
		if filter.Matches(row) {
			ids = append(ids, row[pk])
		}
	}
	t.mu.RUnlock()

	sort.SliceStable(ids, func(i, j int) bool { return CompareIDs(ids[i], ids[j]) < 0 })
	return ids, nil
}

// Upsert updates the columns present in row on the row whose pk matches,
// leaving the others as stored like an SQL UPDATE, or appends a new row. Integer
// ids are drawn from a per-table sequence when the row has none. With an
// empty pk the row is appended as-is, which is how join table rows are written.
func (m *MemoryAdapter) Upsert(ctx context.Context, table, pk string, row Row) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t := m.table(table, true)
	row = row.Clone()

	t.mu.Lock()
	defer t.mu.Unlock()

	if pk == "" {
		t.rows = append(t.rows, row)
		return nil, nil
	}

	id := Normalize(row[pk])
	if id == nil {
		t.seq++
		id = t.seq
		row[pk] = id
		t.rows = append(t.rows, row)
		return id, nil
	}
	row[pk] = id
	if n, ok := id.(int64); ok && n > t.seq {
		t.seq = n
	}

	for _, existing := range t.rows {
		if Equal(existing[pk], id) {
			for col, v := range row {
				existing[col] = v
			}
			return id, nil
		}
	}
	t.rows = append(t.rows, row)
	return id, nil
}

func (m *MemoryAdapter) Delete(ctx context.Context, table string, filter Filter) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if len(filter) == 0 {
		return 0, ErrEmptyFilter
	}
	t := m.table(table, false)
	if t == nil {
		return 0, nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	kept := t.rows[:0]
	var removed int64
	for _, row := range t.rows {
		if filter.Matches(row) {
			removed++
			continue
		}
		kept = append(kept, row)
	}
	for i := len(kept); i < len(t.rows); i++ {
		t.rows[i] = nil
	}
	t.rows = kept
	return removed, nil
}

// RawQuery returns the rows of table matching filter, projected onto
// column. An empty column or "*" returns whole rows.
func (m *MemoryAdapter) RawQuery(ctx context.Context, column, table string, filter Filter) ([]Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t := m.table(table, false)
	if t == nil {
		return nil, nil
	}

	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []Row
	for _, row := range t.rows {
		if !filter.Matches(row) {
			continue
		}
		if column == "" || column == "*" {
			out = append(out, row.Clone())
			continue
		}
		out = append(out, Row{column: row[column]})
	}
	return out, nil
}

// Len reports how many rows table holds.
func (m *MemoryAdapter) Len(table string) int {
	t := m.table(table, false)
	if t == nil {
		return 0
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.rows)
}

func (m *MemoryAdapter) Close() error {
	return nil
}
