package connpager

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

var tracer = otel.Tracer("github.com/Alp4ka/connpager")

// RowScanner is the result of a single row query.
type RowScanner interface {
	Scan(dest ...any) error
}

// RowQuerier executes rendered SQL text returning a single row.
type RowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) RowScanner
}

// SQLXQuerier runs queries through database/sql via sqlx. The driver must
// accept the placeholders of the compiler dialect, e.g. "pgx" for postgres,
// "mysql" or "sqlite".
type SQLXQuerier struct {
	DB *sqlx.DB
}

func (q SQLXQuerier) QueryRow(ctx context.Context, sql string, args ...any) RowScanner {
	return q.DB.QueryRowxContext(ctx, sql, args...)
}

// PgxRowQuerier is implemented by *pgx.Conn, pgx.Tx and *pgxpool.Pool.
type PgxRowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PgxQuerier runs queries through the native pgx interface.
type PgxQuerier struct {
	Conn PgxRowQuerier
}

func (q PgxQuerier) QueryRow(ctx context.Context, sql string, args ...any) RowScanner {
	return q.Conn.QueryRow(ctx, sql, args...)
}

// Fetch compiles the query and executes it through gorm.
func (c *Compiler) Fetch(ctx context.Context, db *gorm.DB, q *Query, req PaginationRequest) (*Connection, error) {
	ctx, span := c.startSpan(ctx, "Fetch connection", req)
	defer span.End()

	expr, err := c.Compile(q, req)
	if err != nil {
		return nil, recordError(span, err)
	}

	tx := db.WithContext(ctx).Raw("?", expr)
	if tx.Error != nil {
		return nil, recordError(span, errors.Wrap(tx.Error, "cannot fetch connection"))
	}

	// gorm leaves the row nil when the statement is not executed.
	row := tx.Row()
	if row == nil {
		return nil, recordError(span, errors.Wrap(gorm.ErrDryRunModeUnsupported, "cannot fetch connection"))
	}

	ret, err := scanConnection(row, req)
	if err != nil {
		return nil, recordError(span, err)
	}

	return ret, nil
}

// FetchWith compiles and renders the query and executes it with querier.
func (c *Compiler) FetchWith(ctx context.Context, querier RowQuerier, q *Query, req PaginationRequest) (*Connection, error) {
	ctx, span := c.startSpan(ctx, "Fetch connection with querier", req)
	defer span.End()

	sql, vars, err := c.ToSQL(q, req)
	if err != nil {
		return nil, recordError(span, err)
	}

	ret, err := scanConnection(querier.QueryRow(ctx, sql, vars...), req)
	if err != nil {
		return nil, recordError(span, err)
	}

	return ret, nil
}

func (c *Compiler) startSpan(ctx context.Context, name string, req PaginationRequest) (context.Context, trace.Span) {
	ctx, span := tracer.Start(ctx, name)
	span.SetAttributes(
		attribute.String("db.system", c.dialect.Name()),
		attribute.String("connpager.format", string(req.Format)),
		attribute.Bool("connpager.backward", req.Backward()),
		attribute.Bool("connpager.has_after", !req.After.IsEmpty()),
		attribute.Bool("connpager.has_before", !req.Before.IsEmpty()),
	)

	return ctx, span
}

func recordError(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	return err
}

// scanConnection reads the single row produced by a compiled query. The
// columns are data followed by the requested page info in fixed order.
func scanConnection(row RowScanner, req PaginationRequest) (*Connection, error) {
	if req.Format == FormatObject {
		var data []byte
		if err := row.Scan(&data); err != nil {
			return nil, errors.Wrap(err, "cannot scan connection object")
		}

		return DecodeConnection(data)
	}

	var (
		data  []byte
		ret   = new(Connection)
		dests = []any{&data}
	)

	if req.WantNextPage {
		ret.HasNextPage = new(bool)
		dests = append(dests, ret.HasNextPage)
	}
	if req.WantPreviousPage {
		ret.HasPreviousPage = new(bool)
		dests = append(dests, ret.HasPreviousPage)
	}
	if req.WantTotalCount {
		ret.TotalCount = new(int64)
		dests = append(dests, ret.TotalCount)
	}

	if err := row.Scan(dests...); err != nil {
		return nil, errors.Wrap(err, "cannot scan connection row")
	}
	ret.Data = data

	return ret, nil
}
