package storageinfra

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
	"github.com/uptrace/bun/dialect/mysqldialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/schema"
)

// BunAdapter stores rows in a SQL database through bun's query builder.
// Rows are read and written as column maps, so no Go models are registered.
type BunAdapter struct {
	db  *bun.DB
	cfg Config
}

// OpenBun opens a SQL connection for cfg.Driver and wraps it with the
// matching bun dialect.
func OpenBun(cfg Config) (*BunAdapter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	driverName, dia, err := sqlDriver(cfg.Driver)
	if err != nil {
		return nil, err
	}

	sqldb, err := sql.Open(driverName, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", cfg.Driver, err)
	}
	if cfg.MaxOpenConns > 0 {
		sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqldb.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqldb.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	return NewBunAdapter(bun.NewDB(sqldb, dia), cfg), nil
}

// NewBunAdapter wraps an existing bun database.
func NewBunAdapter(db *bun.DB, cfg Config) *BunAdapter {
	return &BunAdapter{db: db, cfg: cfg}
}

func sqlDriver(driver string) (string, schema.Dialect, error) {
	switch driver {
	case DriverSQLite:
		return "sqlite3", sqlitedialect.New(), nil
	case DriverPostgres:
		return "postgres", pgdialect.New(), nil
	case DriverMySQL:
		return "mysql", mysqldialect.New(), nil
	}
	return "", nil, &ConfigError{Field: "Driver", Message: "unsupported SQL driver " + driver}
}

// DB exposes the underlying bun database.
func (a *BunAdapter) DB() *bun.DB {
	return a.db
}

func (a *BunAdapter) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.cfg.QueryTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, a.cfg.QueryTimeout)
}

type whereQuery[Q any] interface {
	Where(query string, args ...any) Q
}

// applyFilter adds one predicate per filter column, in sorted column order.
func applyFilter[Q whereQuery[Q]](q Q, filter Filter) Q {
	for _, k := range filter.Keys() {
		v := filter[k]
		if v == nil {
			q = q.Where("? IS NULL", bun.Ident(k))
			continue
		}
		q = q.Where("? = ?", bun.Ident(k), v)
	}
	return q
}

func (a *BunAdapter) Load(ctx context.Context, table, pk string, id any) (Row, error) {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	var row map[string]any
	err := a.db.NewSelect().
		TableExpr("?", bun.Ident(table)).
		Where("? = ?", bun.Ident(pk), id).
		Limit(1).
		Scan(ctx, &row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load %s %v: %w", table, id, err)
	}
	return normalizeRow(row), nil
}

// FindOne fetches at most two rows so an ambiguous filter is detected
// without reading the whole result.
func (a *BunAdapter) FindOne(ctx context.Context, table string, filter Filter) (Row, error) {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	var rows []map[string]any
	q := a.db.NewSelect().TableExpr("?", bun.Ident(table))
	err := applyFilter(q, filter).Limit(2).Scan(ctx, &rows)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("find %s where %s: %w", table, filter, err)
	}

	switch len(rows) {
	case 0:
		return nil, ErrNotFound
	case 1:
		return normalizeRow(rows[0]), nil
	}
	return nil, ErrAmbiguous
}

func (a *BunAdapter) FindAllIDs(ctx context.Context, table, pk string, filter Filter) ([]any, error) {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	var rows []map[string]any
	q := a.db.NewSelect().
		TableExpr("?", bun.Ident(table)).
		ColumnExpr("?", bun.Ident(pk))
	err := applyFilter(q, filter).
		OrderExpr("? ASC", bun.Ident(pk)).
		Scan(ctx, &rows)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("find %s ids where %s: %w", table, filter, err)
	}

	ids := make([]any, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, Normalize(row[pk]))
	}
	return ids, nil
}

// Upsert updates the row when one with the same pk exists and inserts it
// otherwise. Postgres returns generated ids via RETURNING; the other
// dialects report them through LastInsertId. With an empty pk the row is
// inserted as-is.
func (a *BunAdapter) Upsert(ctx context.Context, table, pk string, row Row) (any, error) {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	values := map[string]any(row.Clone())
	if pk == "" {
		if _, err := a.db.NewInsert().Model(&values).TableExpr("?", bun.Ident(table)).Exec(ctx); err != nil {
			return nil, fmt.Errorf("insert into %s: %w", table, err)
		}
		return nil, nil
	}

	id := values[pk]
	if id != nil {
		count, err := a.db.NewSelect().
			TableExpr("?", bun.Ident(table)).
			Where("? = ?", bun.Ident(pk), id).
			Count(ctx)
		if err != nil {
			return nil, fmt.Errorf("check %s %v: %w", table, id, err)
		}
		if count > 0 {
			delete(values, pk)
			if len(values) == 0 {
				return Normalize(id), nil
			}
			_, err := a.db.NewUpdate().
				Model(&values).
				TableExpr("?", bun.Ident(table)).
				Where("? = ?", bun.Ident(pk), id).
				Exec(ctx)
			if err != nil {
				return nil, fmt.Errorf("update %s %v: %w", table, id, err)
			}
			return Normalize(id), nil
		}
	} else {
		delete(values, pk)
	}

	insert := a.db.NewInsert().Model(&values).TableExpr("?", bun.Ident(table))
	if id != nil {
		if _, err := insert.Exec(ctx); err != nil {
			return nil, fmt.Errorf("insert into %s: %w", table, err)
		}
		return Normalize(id), nil
	}

	if a.db.Dialect().Name() == dialect.PG {
		var generated int64
		if err := insert.Returning("?", bun.Ident(pk)).Scan(ctx, &generated); err != nil {
			return nil, fmt.Errorf("insert into %s: %w", table, err)
		}
		return generated, nil
	}

	res, err := insert.Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("insert into %s: %w", table, err)
	}
	generated, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("insert into %s: read generated id: %w", table, err)
	}
	return generated, nil
}

func (a *BunAdapter) Delete(ctx context.Context, table string, filter Filter) (int64, error) {
	if len(filter) == 0 {
		return 0, ErrEmptyFilter
	}
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	q := a.db.NewDelete().TableExpr("?", bun.Ident(table))
	res, err := applyFilter(q, filter).Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("delete from %s where %s: %w", table, filter, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete from %s: rows affected: %w", table, err)
	}
	return n, nil
}

// RawQuery selects column from table for rows matching filter. An empty
// column or "*" selects every column.
func (a *BunAdapter) RawQuery(ctx context.Context, column, table string, filter Filter) ([]Row, error) {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	q := a.db.NewSelect().TableExpr("?", bun.Ident(table))
	if column != "" && column != "*" {
		q = q.ColumnExpr("?", bun.Ident(column))
	}

	var rows []map[string]any
	if err := applyFilter(q, filter).Scan(ctx, &rows); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("query %s.%s where %s: %w", table, column, filter, err)
	}

	out := make([]Row, 0, len(rows))
	for _, row := range rows {
		out = append(out, normalizeRow(row))
	}
	return out, nil
}

func (a *BunAdapter) Close() error {
	return a.db.Close()
}

func normalizeRow(m map[string]any) Row {
	row := make(Row, len(m))
	for k, v := range m {
		row[k] = Normalize(v)
	}
	return row
}
