package backend

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"

	"github.com/querygate/querygate/internal/admission"
	"github.com/querygate/querygate/internal/config"
	"github.com/querygate/querygate/internal/result"
)

// NewMySQL builds the adapter for a MySQL backend.
func NewMySQL(cfg *config.Config) (*Relational, error) {
	return newRelational(cfg, mysqlDialect{})
}

type mysqlDialect struct{}

func (mysqlDialect) DriverName() string       { return "mysql" }
func (mysqlDialect) Family() admission.Family { return admission.FamilyMySQL }

func (mysqlDialect) DSN(cfg *config.Config) (string, error) {
	if err := cfg.RequireServer(); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Database), nil
}

func (mysqlDialect) EnforceReadOnly(ctx context.Context, conn *sql.Conn) error {
	_, err := conn.ExecContext(ctx, "SET SESSION TRANSACTION READ ONLY")
	return err
}

func (mysqlDialect) ListObjectsQuery(database string) (string, []any) {
	return `SELECT table_name FROM information_schema.tables
		WHERE table_schema = ? ORDER BY table_name`, []any{database}
}

func (mysqlDialect) SchemaQuery(database, table string) (string, []any) {
	return `SELECT column_name, data_type, is_nullable, column_key, column_default, extra
		FROM information_schema.columns
		WHERE table_schema = ? AND table_name = ?
		ORDER BY ordinal_position`, []any{database, table}
}

func (mysqlDialect) ScanColumn(rows *sql.Rows) (result.Column, error) {
	var col result.Column
	var colDefault, extra sql.NullString
	if err := rows.Scan(&col.Name, &col.DataType, &col.Nullable, &col.Key, &colDefault, &extra); err != nil {
		return result.Column{}, err
	}
	col.Default = colDefault.String
	col.Extra = extra.String
	return col, nil
}

func (mysqlDialect) ForeignKeysQuery(database, table string) (string, []any) {
	return `SELECT column_name, referenced_table_name, referenced_column_name
		FROM information_schema.key_column_usage
		WHERE table_schema = ? AND table_name = ? AND referenced_table_name IS NOT NULL
		ORDER BY ordinal_position`, []any{database, table}
}

func (mysqlDialect) QuoteIdentifier(name string) string {
	return quoteQualified(name, "`", "`")
}
