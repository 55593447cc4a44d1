// Package postgres is the storage layer: a pgx-backed store against
// Postgres with the pgvector extension, row-level tenant isolation on
// every query, and the instrumented exec/query wrapper pattern adapted
// from the teacher's Dolt store (internal/storage/dolt/store.go) —
// otel spans plus cenkalti/backoff retry around every call.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	pgTracer = otel.Tracer("github.com/rcrt-io/rcrt/storage/postgres")
	pgMetrics struct {
		retryCount metric.Int64Counter
	}
)

func init() {
	meter := otel.Meter("github.com/rcrt-io/rcrt/storage/postgres")
	var err error
	pgMetrics.retryCount, err = meter.Int64Counter("rcrt.storage.retry_count")
	if err != nil {
		pgMetrics.retryCount = nil
	}
}

// Store wraps a pgx connection pool with the tenant-scoped query
// methods used by every other service package.
type Store struct {
	pool *pgxpool.Pool
}

// Open builds a pool against dsn and verifies connectivity.
func Open(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() { s.pool.Close() }

// Ping is used by the /readyz handler.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

var retryableSubstrings = []string{
	"connection reset",
	"connection refused",
	"broken pipe",
	"i/o timeout",
	"too many connections",
	"conn busy",
	"server closed the connection",
}

func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, s := range retryableSubstrings {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

func newRetryBackoff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 30 * time.Second
	return b
}

func (s *Store) withRetry(ctx context.Context, op func() error) error {
	attempts := 0
	wrapped := func() error {
		attempts++
		err := op()
		if err != nil && !isRetryableError(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	err := backoff.Retry(wrapped, backoff.WithContext(newRetryBackoff(), ctx))
	if attempts > 1 && pgMetrics.retryCount != nil {
		pgMetrics.retryCount.Add(ctx, int64(attempts-1))
	}
	return err
}

func spanSQL(q string) string {
	q = strings.Join(strings.Fields(q), " ")
	if len(q) > 300 {
		return q[:300] + "..."
	}
	return q
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// exec runs a statement with no result rows, instrumented and retried.
func (s *Store) exec(ctx context.Context, sql string, args ...interface{}) (int64, error) {
	ctx, span := pgTracer.Start(ctx, "postgres.exec", trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("db.statement", spanSQL(sql))))
	var n int64
	err := s.withRetry(ctx, func() error {
		tag, err := s.pool.Exec(ctx, sql, args...)
		if err != nil {
			return err
		}
		n = tag.RowsAffected()
		return nil
	})
	endSpan(span, err)
	return n, err
}

// queryRow runs a single-row query, instrumented and retried. The scan
// function is called only on success so the caller can pass pgx.Row.Scan
// directly.
func (s *Store) queryRow(ctx context.Context, sql string, args []interface{}, scan func(pgx.Row) error) error {
	ctx, span := pgTracer.Start(ctx, "postgres.query_row", trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("db.statement", spanSQL(sql))))
	err := s.withRetry(ctx, func() error {
		row := s.pool.QueryRow(ctx, sql, args...)
		return scan(row)
	})
	endSpan(span, err)
	return err
}

// query runs a multi-row query, instrumented and retried. rows must be
// fully consumed and closed by fn before it returns.
func (s *Store) query(ctx context.Context, sql string, args []interface{}, fn func(pgx.Rows) error) error {
	ctx, span := pgTracer.Start(ctx, "postgres.query", trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("db.statement", spanSQL(sql))))
	err := s.withRetry(ctx, func() error {
		rows, err := s.pool.Query(ctx, sql, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		return fn(rows)
	})
	endSpan(span, err)
	return err
}

// withTx runs fn inside a transaction, committing on success and
// rolling back on any error, including a panic.
func (s *Store) withTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
