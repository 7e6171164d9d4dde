package backend

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"

	_ "github.com/lib/pq"

	"github.com/querygate/querygate/internal/admission"
	"github.com/querygate/querygate/internal/config"
	"github.com/querygate/querygate/internal/result"
)

// NewPostgres builds the adapter for a PostgreSQL backend.
func NewPostgres(cfg *config.Config) (*Relational, error) {
	return newRelational(cfg, postgresDialect{})
}

type postgresDialect struct{}

func (postgresDialect) DriverName() string       { return "postgres" }
func (postgresDialect) Family() admission.Family { return admission.FamilyPostgres }

func (postgresDialect) DSN(cfg *config.Config) (string, error) {
	if err := cfg.RequireServer(); err != nil {
		return "", err
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		url.PathEscape(cfg.User), url.PathEscape(cfg.Password),
		cfg.Host, cfg.Port, cfg.Database, cfg.SSLMode), nil
}

func (postgresDialect) EnforceReadOnly(ctx context.Context, conn *sql.Conn) error {
	_, err := conn.ExecContext(ctx, "SET SESSION CHARACTERISTICS AS TRANSACTION READ ONLY")
	return err
}

func (postgresDialect) ListObjectsQuery(database string) (string, []any) {
	return `SELECT table_name FROM information_schema.tables
		WHERE table_schema = 'public' AND table_catalog = $1
		ORDER BY table_name`, []any{database}
}

func (postgresDialect) SchemaQuery(database, table string) (string, []any) {
	return `SELECT column_name, data_type, is_nullable, column_default
		FROM information_schema.columns
		WHERE table_catalog = $1 AND table_schema = 'public' AND table_name = $2
		ORDER BY ordinal_position`, []any{database, table}
}

func (postgresDialect) ScanColumn(rows *sql.Rows) (result.Column, error) {
	var col result.Column
	var colDefault sql.NullString
	if err := rows.Scan(&col.Name, &col.DataType, &col.Nullable, &colDefault); err != nil {
		return result.Column{}, err
	}
	col.Default = colDefault.String
	return col, nil
}

func (postgresDialect) ForeignKeysQuery(database, table string) (string, []any) {
	return `SELECT kcu.column_name, ccu.table_name, ccu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON tc.constraint_name = kcu.constraint_name
			AND tc.table_schema = kcu.table_schema
		JOIN information_schema.constraint_column_usage ccu
			ON tc.constraint_name = ccu.constraint_name
			AND tc.table_schema = ccu.table_schema
		WHERE tc.constraint_type = 'FOREIGN KEY'
			AND tc.table_schema = 'public'
			AND tc.table_name = $1
		ORDER BY kcu.ordinal_position`, []any{table}
}

func (postgresDialect) QuoteIdentifier(name string) string {
	return quoteQualified(name, `"`, `"`)
}
