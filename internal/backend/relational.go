package backend

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/querygate/querygate/internal/admission"
	"github.com/querygate/querygate/internal/config"
	"github.com/querygate/querygate/internal/errors"
	"github.com/querygate/querygate/internal/governor"
	"github.com/querygate/querygate/internal/pool"
	"github.com/querygate/querygate/internal/result"
)

const connectTimeout = 10 * time.Second

// dialect captures what differs between the supported SQL engines: DSN
// shape, read-only session enforcement, and catalog queries.
type dialect interface {
	DriverName() string
	Family() admission.Family
	DSN(cfg *config.Config) (string, error)

	// EnforceReadOnly pins the session to read-only mode. This runs per
	// pooled connection, not per database handle, because the settings are
	// session-scoped.
	EnforceReadOnly(ctx context.Context, conn *sql.Conn) error

	ListObjectsQuery(database string) (string, []any)
	SchemaQuery(database, table string) (string, []any)
	ScanColumn(rows *sql.Rows) (result.Column, error)

	// ForeignKeysQuery returns ("", nil) when the dialect has no usable
	// relationship catalog.
	ForeignKeysQuery(database, table string) (string, []any)

	QuoteIdentifier(name string) string
}

// Relational is the shared adapter over database/sql; the dialect supplies
// everything engine-specific.
type Relational struct {
	cfg     *config.Config
	dialect dialect
	vocab   *admission.Vocabulary
	db      *sql.DB
}

func newRelational(cfg *config.Config, d dialect) (*Relational, error) {
	vocab, ok := admission.ForFamily(d.Family())
	if !ok {
		return nil, fmt.Errorf("no vocabulary registered for family %s", d.Family())
	}
	return &Relational{cfg: cfg, dialect: d, vocab: vocab}, nil
}

func (r *Relational) Family() admission.Family          { return r.dialect.Family() }
func (r *Relational) Vocabulary() *admission.Vocabulary { return r.vocab }

// Connect opens the database handle and verifies reachability. The driver's
// own open-connection cap is pinned to the pool size so the gateway's pool
// is the single concurrency bound.
func (r *Relational) Connect(ctx context.Context) error {
	dsn, err := r.dialect.DSN(r.cfg)
	if err != nil {
		return err
	}

	db, err := sql.Open(r.dialect.DriverName(), dsn)
	if err != nil {
		return errors.Unavailable(err)
	}
	db.SetMaxOpenConns(r.cfg.PoolSize)
	db.SetMaxIdleConns(r.cfg.PoolSize)
	db.SetConnMaxLifetime(time.Hour)

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return errors.Unavailable(err)
	}

	r.db = db
	return nil
}

func (r *Relational) Close() error {
	if r.db == nil {
		return nil
	}
	return r.db.Close()
}

// sqlSession wraps a dedicated *sql.Conn so the pool never sees the raw
// driver type.
type sqlSession struct {
	conn *sql.Conn
}

func (s *sqlSession) Ping(ctx context.Context) error { return s.conn.PingContext(ctx) }
func (s *sqlSession) Close() error                   { return s.conn.Close() }

// NewConn pins one connection out of the database handle and puts its
// session into read-only mode.
func (r *Relational) NewConn(ctx context.Context) (pool.Conn, error) {
	conn, err := r.db.Conn(ctx)
	if err != nil {
		return nil, err
	}
	if err := r.dialect.EnforceReadOnly(ctx, conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enforcing read-only session: %w", err)
	}
	return &sqlSession{conn: conn}, nil
}

func (r *Relational) session(conn pool.Conn) (*sqlSession, error) {
	sess, ok := conn.(*sqlSession)
	if !ok {
		return nil, fmt.Errorf("connection is not a relational session")
	}
	return sess, nil
}

func (r *Relational) ListObjects(ctx context.Context, conn pool.Conn) ([]string, error) {
	sess, err := r.session(conn)
	if err != nil {
		return nil, err
	}

	query, args := r.dialect.ListObjectsQuery(r.cfg.Database)
	rows, err := sess.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Unavailable(err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, errors.Unavailable(err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Unavailable(err)
	}

	sort.Strings(names)
	return names, nil
}

func (r *Relational) Describe(ctx context.Context, conn pool.Conn, target string) (*result.Schema, error) {
	sess, err := r.session(conn)
	if err != nil {
		return nil, err
	}
	name, err := admission.SanitizeIdentifier(target)
	if err != nil {
		return nil, errors.Denied(err.Error())
	}

	query, args := r.dialect.SchemaQuery(r.cfg.Database, name)
	rows, err := sess.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classifyTableError(err, name)
	}
	defer rows.Close()

	schema := &result.Schema{Object: name}
	for rows.Next() {
		col, err := r.dialect.ScanColumn(rows)
		if err != nil {
			return nil, errors.Unavailable(err)
		}
		schema.Columns = append(schema.Columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Unavailable(err)
	}

	// information_schema yields no rows for unknown tables rather than an
	// error.
	if len(schema.Columns) == 0 {
		return nil, errors.NotFound(name)
	}

	if fkQuery, fkArgs := r.dialect.ForeignKeysQuery(r.cfg.Database, name); fkQuery != "" {
		fks, err := r.foreignKeys(ctx, sess, fkQuery, fkArgs)
		if err != nil {
			return nil, err
		}
		schema.ForeignKeys = fks
	}

	return schema, nil
}

func (r *Relational) foreignKeys(ctx context.Context, sess *sqlSession, query string, args []any) ([]result.ForeignKey, error) {
	rows, err := sess.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Unavailable(err)
	}
	defer rows.Close()

	var fks []result.ForeignKey
	for rows.Next() {
		var fk result.ForeignKey
		if err := rows.Scan(&fk.Column, &fk.ReferencedTable, &fk.ReferencedColumn); err != nil {
			return nil, errors.Unavailable(err)
		}
		fks = append(fks, fk)
	}
	return fks, rows.Err()
}

// Query runs an admitted statement, streaming rows into the sink until the
// cap refuses more.
func (r *Relational) Query(ctx context.Context, conn pool.Conn, _ string, payload string, sink *governor.RowSink) error {
	sess, err := r.session(conn)
	if err != nil {
		return err
	}

	rows, err := sess.conn.QueryContext(ctx, payload)
	if err != nil {
		return err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return err
	}

	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return err
		}
		if !sink.Push(result.NewRecord(columns, values)) {
			break
		}
	}
	return rows.Err()
}

// Aggregate is a document-store operation; relational vocabularies have no
// pipeline stages, so admission denies it before this is ever reached. The
// adapter still refuses on its own.
func (r *Relational) Aggregate(context.Context, pool.Conn, string, []admission.Stage, *governor.RowSink) error {
	return errors.Denied(fmt.Sprintf("aggregation pipelines are not supported by %s backends", r.Family()))
}

func (r *Relational) Count(ctx context.Context, conn pool.Conn, target string, filter map[string]any) (int64, error) {
	sess, err := r.session(conn)
	if err != nil {
		return 0, err
	}
	if len(filter) > 0 {
		return 0, errors.Denied(fmt.Sprintf("structured filters are not supported by %s backends", r.Family()))
	}
	name, err := admission.SanitizeIdentifier(target)
	if err != nil {
		return 0, errors.Denied(err.Error())
	}

	// Identifiers cannot ride in placeholders; the sanitized name is quoted
	// and embedded.
	query := "SELECT COUNT(*) FROM " + r.dialect.QuoteIdentifier(name)
	var count int64
	if err := sess.conn.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, classifyTableError(err, name)
	}
	return count, nil
}

// quoteQualified quotes each dot-separated part of a sanitized identifier,
// so schema-qualified names stay qualified.
func quoteQualified(name, quoteL, quoteR string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = quoteL + p + quoteR
	}
	return strings.Join(parts, ".")
}

// classifyTableError maps the engines' unknown-table messages onto
// ErrNotFound; everything else is a backend fault.
func classifyTableError(err error, target string) error {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "no such table"), // sqlite
		strings.Contains(msg, "doesn't exist"),  // mysql
		strings.Contains(msg, "does not exist"): // postgres
		return errors.NotFound(target)
	default:
		return errors.Unavailable(err)
	}
}
