package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/trace"

	"github.com/atelier-ops/atelier-sync/internal/otel"
)

const (
	pgUndefinedTable        = "42P01"
	pgInsufficientPrivilege = "42501"
)

type postgresStore struct {
	pool   *pgxpool.Pool
	tracer trace.Tracer
}

// PostgresOption configures the Postgres store
type PostgresOption func(*postgresStore)

// WithTracer enables a span per store call
func WithTracer(tracer trace.Tracer) PostgresOption {
	return func(s *postgresStore) {
		s.tracer = tracer
	}
}

// NewPostgresStore creates a Store backed by a pgx pool
func NewPostgresStore(pool *pgxpool.Pool, opts ...PostgresOption) Store {
	s := &postgresStore{pool: pool}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *postgresStore) FindByLinkage(
	ctx context.Context,
	table, linkageColumn, linkageID string,
) (*Record, error) {
	ctx, span := otel.StartSpan(ctx, s.tracer, "store.FindByLinkage",
		trace.WithAttributes(otel.AttrTable.String(table)))
	defer span.End()

	query := fmt.Sprintf(
		"SELECT %s::text, %s, %s FROM %s WHERE %s = $1 LIMIT 1",
		quote(ColumnID), quote(ColumnHash), quote(ColumnSyncedAt), quote(table), quote(linkageColumn),
	)

	var (
		rec  = Record{LinkageID: linkageID}
		hash *string
	)
	err := s.pool.QueryRow(ctx, query, linkageID).Scan(&rec.ID, &hash, &rec.SyncedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		otel.RecordError(span, err)
		return nil, mapError("find by linkage", err)
	}
	if hash != nil {
		rec.Hash = *hash
	}
	return &rec, nil
}

func (s *postgresStore) Insert(ctx context.Context, table string, fields Fields) (string, error) {
	ctx, span := otel.StartSpan(ctx, s.tracer, "store.Insert",
		trace.WithAttributes(otel.AttrTable.String(table)))
	defer span.End()

	cols, args := splitFields(fields)
	placeholders := make([]string, len(cols))
	for i := range cols {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING %s::text",
		quote(table), strings.Join(cols, ", "), strings.Join(placeholders, ", "), quote(ColumnID))

	var id string
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&id); err != nil {
		otel.RecordError(span, err)
		return "", mapError("insert", err)
	}
	return id, nil
}

func (s *postgresStore) Update(ctx context.Context, table, id string, fields Fields) error {
	ctx, span := otel.StartSpan(ctx, s.tracer, "store.Update",
		trace.WithAttributes(otel.AttrTable.String(table)))
	defer span.End()

	cols, args := splitFields(fields)
	sets := make([]string, len(cols))
	for i, col := range cols {
		sets[i] = fmt.Sprintf("%s = $%d", col, i+1)
	}
	args = append(args, id)

	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s::text = $%d",
		quote(table), strings.Join(sets, ", "), quote(ColumnID), len(args))

	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		otel.RecordError(span, err)
		return mapError("update", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *postgresStore) InsertRunLog(ctx context.Context, log *RunLog) error {
	ctx, span := otel.StartSpan(ctx, s.tracer, "store.InsertRunLog",
		trace.WithAttributes(otel.AttrTable.String(RunLogTable)))
	defer span.End()

	_, err := s.pool.Exec(ctx, `
		INSERT INTO tiny_sync_logs (
			id, entity_type, operation, status,
			items_processed, items_created, items_updated, items_skipped,
			api_calls_used, summary, created_by, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		log.ID, log.EntityType, log.Operation, log.Status,
		log.ItemsProcessed, log.ItemsCreated, log.ItemsUpdated, log.ItemsSkipped,
		log.APICallsUsed, []byte(log.Summary), log.CreatedBy, log.CreatedAt,
	)
	if err != nil {
		otel.RecordError(span, err)
		return mapError("insert run log", err)
	}
	return nil
}

func (s *postgresStore) ListRunLogs(ctx context.Context, filter RunLogFilter) ([]RunLog, error) {
	query := `
		SELECT id, entity_type, operation, status,
			items_processed, items_created, items_updated, items_skipped,
			api_calls_used, summary, created_by, created_at
		FROM tiny_sync_logs
		WHERE ($1::text = '' OR entity_type = $1::text)
		ORDER BY created_at DESC`
	args := []any{filter.EntityType}
	if filter.Limit > 0 {
		query += " LIMIT $2"
		args = append(args, filter.Limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError("list run logs", err)
	}
	logs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (RunLog, error) {
		var (
			l       RunLog
			summary []byte
		)
		err := row.Scan(&l.ID, &l.EntityType, &l.Operation, &l.Status,
			&l.ItemsProcessed, &l.ItemsCreated, &l.ItemsUpdated, &l.ItemsSkipped,
			&l.APICallsUsed, &summary, &l.CreatedBy, &l.CreatedAt)
		l.Summary = summary
		return l, err
	})
	if err != nil {
		return nil, mapError("list run logs", err)
	}
	return logs, nil
}

func (s *postgresStore) ListRoles(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT role FROM user_roles WHERE user_id::text = $1 ORDER BY role`, userID)
	if err != nil {
		return nil, mapError("list roles", err)
	}
	roles, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, mapError("list roles", err)
	}
	return roles, nil
}

func (s *postgresStore) Select(ctx context.Context, table string, q Query) (*Page, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	ctx, span := otel.StartSpan(ctx, s.tracer, "store.Select",
		trace.WithAttributes(otel.AttrTable.String(table)))
	defer span.End()

	where, args := q.whereClause()

	var total int64
	countQuery := fmt.Sprintf("SELECT count(*) FROM %s%s", quote(table), where)
	if err := s.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		otel.RecordError(span, err)
		return nil, mapError("count", err)
	}

	query := fmt.Sprintf("SELECT %s FROM %s%s%s", q.columnList(), quote(table), where, q.orderClause())
	if q.Limit > 0 {
		args = append(args, q.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if q.Offset > 0 {
		args = append(args, q.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		otel.RecordError(span, err)
		return nil, mapError("select", err)
	}
	maps, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		otel.RecordError(span, err)
		return nil, mapError("select", err)
	}

	page := &Page{Rows: make([]Fields, len(maps)), Total: total}
	for i, m := range maps {
		page.Rows[i] = m
	}
	return page, nil
}

func (s *postgresStore) Delete(ctx context.Context, table string, eq map[string]any) (int64, error) {
	if len(eq) == 0 {
		return 0, errors.New("delete requires at least one filter")
	}
	where, args := Query{Eq: eq}.whereClause()
	tag, err := s.pool.Exec(ctx, fmt.Sprintf("DELETE FROM %s%s", quote(table), where), args...)
	if err != nil {
		return 0, mapError("delete", err)
	}
	return tag.RowsAffected(), nil
}

// splitFields returns quoted column names in a stable order with their arguments
func splitFields(fields Fields) ([]string, []any) {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	cols := make([]string, len(keys))
	args := make([]any, len(keys))
	for i, k := range keys {
		cols[i] = quote(k)
		args[i] = toArg(fields[k])
	}
	return cols, args
}

func toArg(v any) any {
	switch d := v.(type) {
	case decimal.Decimal:
		return pgtype.Numeric{Int: d.Coefficient(), Exp: d.Exponent(), Valid: true}
	case *decimal.Decimal:
		if d == nil {
			return nil
		}
		return toArg(*d)
	default:
		return v
	}
}

func mapError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUndefinedTable:
			return fmt.Errorf("%s: %w: %s", op, ErrRelationMissing, pgErr.Message)
		case pgInsufficientPrivilege:
			return fmt.Errorf("%s: %w: %s", op, ErrPermissionDenied, pgErr.Message)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
