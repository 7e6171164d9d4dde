package admission

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStripMySQL(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"single quotes", `SELECT 'DROP TABLE x' FROM t`, `SELECT '' FROM t`},
		{"double quotes are strings", `SELECT "DELETE" FROM t`, `SELECT "" FROM t`},
		{"backslash escape", `SELECT 'it\'s; DROP' FROM t`, `SELECT '' FROM t`},
		{"doubled quote escape", `SELECT 'it''s' FROM t`, `SELECT '' FROM t`},
		{"line comment", "SELECT 1 -- DROP TABLE x", "SELECT 1  "},
		{"hash comment", "SELECT 1 # DROP TABLE x", "SELECT 1  "},
		{"block comment", "SELECT /* DROP */ 1", "SELECT   1"},
		{"executable comment kept", "SELECT /*!50000 DROP*/ 1", "SELECT  DROP  1"},
		{"executable comment without version", "SELECT /*! DROP*/ 1", "SELECT  DROP  1"},
		{"backtick identifier kept", "SELECT `weird name` FROM t", "SELECT `weird name` FROM t"},
		{"unterminated string", "SELECT 'oops", "SELECT ''"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, stripMySQL(tc.in))
		})
	}
}

func TestStripPostgres(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"dollar quotes", "SELECT $$DROP TABLE x$$", "SELECT ''"},
		{"tagged dollar quotes", "SELECT $fn$DELETE FROM t$fn$", "SELECT ''"},
		{"placeholder untouched", "SELECT $1 FROM t", "SELECT $1 FROM t"},
		{"double quotes are identifiers", `SELECT "select" FROM t`, `SELECT "select" FROM t`},
		{"no backslash escapes", `SELECT 'a\' FROM t`, `SELECT '' FROM t`},
		{"doubled quote escape", `SELECT 'it''s' FROM t`, `SELECT '' FROM t`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, stripPostgres(tc.in))
		})
	}
}

func TestStripSQLite(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"bracket identifier kept", "SELECT [drop zone] FROM t", "SELECT [drop zone] FROM t"},
		{"hash is not a comment", "SELECT '#' FROM t", "SELECT '' FROM t"},
		{"string literal", "SELECT 'ATTACH' FROM t", "SELECT '' FROM t"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, stripSQLite(tc.in))
		})
	}
}
