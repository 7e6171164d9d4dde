package backend

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/querygate/querygate/internal/admission"
	"github.com/querygate/querygate/internal/config"
	"github.com/querygate/querygate/internal/result"
)

// NewSQLite builds the adapter for a SQLite database file.
func NewSQLite(cfg *config.Config) (*Relational, error) {
	return newRelational(cfg, sqliteDialect{})
}

type sqliteDialect struct{}

func (sqliteDialect) DriverName() string       { return "sqlite" }
func (sqliteDialect) Family() admission.Family { return admission.FamilySQLite }

// DSN forces mode=ro so the engine itself refuses writes, independent of
// admission.
func (sqliteDialect) DSN(cfg *config.Config) (string, error) {
	path := cfg.SQLitePath
	if path == "" {
		return "", fmt.Errorf("missing required environment variable: SQLITE_PATH")
	}
	switch {
	case !strings.Contains(path, "?"):
		return path + "?mode=ro", nil
	case !strings.Contains(path, "mode="):
		return path + "&mode=ro", nil
	default:
		return path, nil
	}
}

func (sqliteDialect) EnforceReadOnly(ctx context.Context, conn *sql.Conn) error {
	// mode=ro in the DSN is the primary guard; query_only backs it up.
	_, err := conn.ExecContext(ctx, "PRAGMA query_only = ON")
	return err
}

func (sqliteDialect) ListObjectsQuery(string) (string, []any) {
	return `SELECT name FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`, nil
}

// SchemaQuery embeds the table name because PRAGMA takes no placeholders.
// The name was sanitized upstream; doubling quotes covers the rest.
func (sqliteDialect) SchemaQuery(_, table string) (string, []any) {
	return fmt.Sprintf("PRAGMA table_info('%s')", strings.ReplaceAll(table, "'", "''")), nil
}

func (sqliteDialect) ScanColumn(rows *sql.Rows) (result.Column, error) {
	// PRAGMA table_info: cid, name, type, notnull, dflt_value, pk
	var cid, notNull, pk int
	var col result.Column
	var dflt sql.NullString
	if err := rows.Scan(&cid, &col.Name, &col.DataType, &notNull, &dflt, &pk); err != nil {
		return result.Column{}, err
	}
	col.Nullable = "YES"
	if notNull == 1 {
		col.Nullable = "NO"
	}
	if pk > 0 {
		col.Key = "PRI"
	}
	col.Default = dflt.String
	return col, nil
}

func (sqliteDialect) ForeignKeysQuery(string, string) (string, []any) {
	// PRAGMA foreign_key_list has a different column shape than the shared
	// scanner expects; relationships are omitted for this family.
	return "", nil
}

func (sqliteDialect) QuoteIdentifier(name string) string {
	return quoteQualified(name, `"`, `"`)
}
