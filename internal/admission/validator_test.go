package admission

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func vocab(t *testing.T, f Family) *Vocabulary {
	t.Helper()
	v, ok := ForFamily(f)
	require.True(t, ok, "vocabulary for %s", f)
	return v
}

func TestValidateQuery_AllowedMySQL(t *testing.T) {
	v := vocab(t, FamilyMySQL)
	allowed := []string{
		"SELECT * FROM users",
		"SELECT id, name FROM users WHERE id = 1",
		"select * from users",
		"  SELECT 1  ",
		"SELECT\n*\nFROM users",
		"SHOW TABLES",
		"DESCRIBE users",
		"DESC users",
		"EXPLAIN SELECT * FROM users",
		"WITH recent AS (SELECT * FROM orders) SELECT * FROM recent",
		"SELECT * FROM settings",
		"SELECT * FROM user_settings WHERE setting_name = 'theme'",
		"SELECT created_at FROM orders",
		"SELECT updated_at FROM products",
		"SELECT deleted FROM items",
		"SELECT * FROM users WHERE name = 'DROP TABLE users'",
		"SELECT 1; ",
	}

	for _, query := range allowed {
		t.Run(query, func(t *testing.T) {
			verdict := v.ValidateQuery(query)
			assert.True(t, verdict.Allowed, "reason: %s", verdict.Reason)
			assert.Equal(t, strings.TrimSpace(query), verdict.SanitizedQuery)
		})
	}
}

func TestValidateQuery_BlockedMySQL(t *testing.T) {
	v := vocab(t, FamilyMySQL)
	blocked := []struct {
		query   string
		mention string
	}{
		{"INSERT INTO users VALUES (1, 'test')", "INSERT"},
		{"UPDATE users SET name = 'test'", "UPDATE"},
		{"DELETE FROM users", "DELETE"},
		{"DROP TABLE users", "DROP"},
		{"drop table users", "DROP"},
		{"  DROP TABLE users  ", "DROP"},
		{"CREATE TABLE test (id INT)", "CREATE"},
		{"ALTER TABLE users ADD COLUMN age INT", "ALTER"},
		{"TRUNCATE TABLE users", "TRUNCATE"},
		{"MERGE INTO users USING dual ON (1=1)", "MERGE"},
		{"GRANT ALL ON *.* TO 'user'", "GRANT"},
		{"REVOKE ALL ON *.* FROM 'user'", "REVOKE"},
		{"CALL some_procedure()", "CALL"},
		{"EXECUTE some_statement", "EXECUTE"},
		{"SET @var = 1", "SET"},
		{"SELECT * INTO OUTFILE '/tmp/data.txt' FROM users", "INTO OUTFILE"},
		{"SELECT * INTO DUMPFILE '/tmp/data.bin' FROM users", "INTO DUMPFILE"},
		{"SELECT LOAD_FILE('/etc/passwd')", "LOAD_FILE"},
		{"SELECT SLEEP(10)", "SLEEP"},
		{"SELECT BENCHMARK(1000000, SHA1('test'))", "BENCHMARK"},
		{"SELECT GET_LOCK('lock', 10)", "GET_LOCK"},
		{"SELECT 1; DROP TABLE users", "multiple statements"},
		{"LOAD DATA INFILE '/tmp/data.txt' INTO TABLE users", "LOAD"},
		{"REPLACE INTO users VALUES (1, 'test')", "REPLACE"},
		{"HANDLER users OPEN", "HANDLER"},
		{"RENAME TABLE users TO users_old", "RENAME"},
	}

	for _, tc := range blocked {
		t.Run(tc.query, func(t *testing.T) {
			verdict := v.ValidateQuery(tc.query)
			require.False(t, verdict.Allowed, "expected %q to be denied", tc.query)
			assert.Contains(t, verdict.Reason, tc.mention)
		})
	}
}

func TestValidateQuery_BlockedPostgres(t *testing.T) {
	v := vocab(t, FamilyPostgres)
	blocked := []struct {
		query   string
		mention string
	}{
		{"COPY users TO '/tmp/out.csv'", "COPY"},
		{"VACUUM users", "VACUUM"},
		{"LISTEN channel", "LISTEN"},
		{"NOTIFY channel", "NOTIFY"},
		{"PREPARE stmt AS SELECT 1", "PREPARE"},
		{"DEALLOCATE stmt", "DEALLOCATE"},
		{"REINDEX TABLE users", "REINDEX"},
		{"CLUSTER users", "CLUSTER"},
		{"SELECT pg_sleep(10)", "pg_sleep"},
		{"SELECT pg_read_file('/etc/passwd')", "pg_read_file"},
		{"SELECT lo_import('/etc/passwd')", "lo_import"},
		{"SELECT pg_advisory_lock(1)", "pg_advisory_lock"},
	}

	for _, tc := range blocked {
		t.Run(tc.query, func(t *testing.T) {
			verdict := v.ValidateQuery(tc.query)
			require.False(t, verdict.Allowed, "expected %q to be denied", tc.query)
			assert.Contains(t, verdict.Reason, tc.mention)
		})
	}

	// Dollar-quoted strings must not hide keywords, and keywords inside
	// them must not execute.
	verdict := v.ValidateQuery("SELECT $$DROP TABLE users$$")
	assert.True(t, verdict.Allowed, "reason: %s", verdict.Reason)
}

func TestValidateQuery_BlockedSQLite(t *testing.T) {
	v := vocab(t, FamilySQLite)
	blocked := []struct {
		query   string
		mention string
	}{
		{"ATTACH DATABASE '/tmp/other.db' AS other", "ATTACH"},
		{"DETACH DATABASE other", "DETACH"},
		{"VACUUM", "VACUUM"},
		{"REINDEX users", "REINDEX"},
		{"SELECT load_extension('hack.so')", "load_extension"},
		{"SELECT writefile('/tmp/data', content)", "writefile"},
		{"PRAGMA journal_mode = WAL", "PRAGMA assignment"},
	}

	for _, tc := range blocked {
		t.Run(tc.query, func(t *testing.T) {
			verdict := v.ValidateQuery(tc.query)
			require.False(t, verdict.Allowed, "expected %q to be denied", tc.query)
			assert.Contains(t, verdict.Reason, tc.mention)
		})
	}

	verdict := v.ValidateQuery("PRAGMA table_info('users')")
	assert.True(t, verdict.Allowed, "read pragma should pass, reason: %s", verdict.Reason)
}

func TestValidateQuery_FailClosed(t *testing.T) {
	v := vocab(t, FamilyMySQL)

	for _, query := range []string{
		"FOOBAR something",
		"USE otherdb",
		"BEGIN",
		"COMMIT",
	} {
		t.Run(query, func(t *testing.T) {
			verdict := v.ValidateQuery(query)
			assert.False(t, verdict.Allowed, "unknown leading keyword must be denied")
		})
	}
}

func TestValidateQuery_EmptyAndCommentOnly(t *testing.T) {
	v := vocab(t, FamilyMySQL)

	for _, query := range []string{
		"",
		"   ",
		"-- just a comment",
		"/* nothing here */",
		"# mysql comment",
		";",
	} {
		t.Run("q="+query, func(t *testing.T) {
			verdict := v.ValidateQuery(query)
			require.False(t, verdict.Allowed)
			assert.Contains(t, verdict.Reason, "empty operation")
		})
	}
}

func TestValidateQuery_MultiStatement(t *testing.T) {
	v := vocab(t, FamilyMySQL)

	verdict := v.ValidateQuery("SELECT 1; DROP TABLE x")
	require.False(t, verdict.Allowed)
	assert.Contains(t, verdict.Reason, "multiple statements")

	// A separator inside a string literal is not a statement boundary.
	verdict = v.ValidateQuery("SELECT * FROM users WHERE note = 'a;b'")
	assert.True(t, verdict.Allowed, "reason: %s", verdict.Reason)

	// A separator inside a comment is not a statement boundary either.
	verdict = v.ValidateQuery("SELECT 1 -- ; DROP TABLE users")
	assert.True(t, verdict.Allowed, "reason: %s", verdict.Reason)
}

func TestValidateQuery_WithMustResolveToSelect(t *testing.T) {
	v := vocab(t, FamilyPostgres)

	verdict := v.ValidateQuery("WITH x AS (SELECT 1) SELECT * FROM x")
	assert.True(t, verdict.Allowed, "reason: %s", verdict.Reason)

	verdict = v.ValidateQuery("WITH x AS (VALUES (1)) TABLE x")
	require.False(t, verdict.Allowed)
	assert.Contains(t, verdict.Reason, "SELECT")

	// Writes inside a CTE body are caught by the deny scan.
	verdict = v.ValidateQuery("WITH del AS (DELETE FROM users RETURNING *) SELECT * FROM del")
	require.False(t, verdict.Allowed)
	assert.Contains(t, verdict.Reason, "DELETE")
}

func TestValidateQuery_ExecutableCommentsAreNotComments(t *testing.T) {
	v := vocab(t, FamilyMySQL)

	// The server executes /*! ... */ bodies, so admission must scan them.
	verdict := v.ValidateQuery("SELECT /*!50000 DROP TABLE users*/ 1")
	require.False(t, verdict.Allowed)
	assert.Contains(t, verdict.Reason, "DROP")

	// Ordinary block comments stay inert.
	verdict = v.ValidateQuery("SELECT /* DROP TABLE users */ 1")
	assert.True(t, verdict.Allowed, "reason: %s", verdict.Reason)
}

func TestValidateQuery_QuotedKeywordIdentifiersFailClosed(t *testing.T) {
	// Quoted identifiers keep their content, so a keyword-named identifier
	// is refused rather than waved through.
	verdict := vocab(t, FamilyPostgres).ValidateQuery(`SELECT "drop" FROM t`)
	require.False(t, verdict.Allowed)
	assert.Contains(t, verdict.Reason, "DROP")

	verdict = vocab(t, FamilySQLite).ValidateQuery("SELECT [delete zone] FROM t")
	require.False(t, verdict.Allowed)
	assert.Contains(t, verdict.Reason, "DELETE")
}

func TestValidateQuery_Deterministic(t *testing.T) {
	v := vocab(t, FamilyMySQL)
	for _, query := range []string{"SELECT 1", "DROP TABLE x", "", "SELECT 1; SELECT 2"} {
		first := v.ValidateQuery(query)
		for i := 0; i < 3; i++ {
			assert.Equal(t, first, v.ValidateQuery(query))
		}
	}
}

func TestValidateQuery_DocumentFamilyHasNoSQL(t *testing.T) {
	v := vocab(t, FamilyDocument)
	verdict := v.ValidateQuery("SELECT 1")
	assert.False(t, verdict.Allowed)
}

func TestValidatePipeline(t *testing.T) {
	v := vocab(t, FamilyDocument)

	readOnly := []Stage{
		{"$match": map[string]any{"cuisine": "Italian"}},
		{"$group": map[string]any{"_id": "$borough", "count": map[string]any{"$sum": 1}}},
	}
	verdict := v.ValidatePipeline(readOnly)
	require.True(t, verdict.Allowed, "reason: %s", verdict.Reason)
	assert.Equal(t, readOnly, verdict.Pipeline, "admitted pipeline must pass through unchanged")

	for _, stage := range []string{"$out", "$merge"} {
		t.Run(stage, func(t *testing.T) {
			verdict := v.ValidatePipeline([]Stage{
				{"$match": map[string]any{}},
				{stage: "copy"},
			})
			require.False(t, verdict.Allowed)
			assert.Contains(t, verdict.Reason, stage)
		})
	}

	verdict = v.ValidatePipeline(nil)
	require.False(t, verdict.Allowed)
	assert.Contains(t, verdict.Reason, "empty operation")

	verdict = v.ValidatePipeline([]Stage{{}})
	assert.False(t, verdict.Allowed)
}

func TestValidatePipeline_RelationalDenied(t *testing.T) {
	v := vocab(t, FamilyPostgres)
	verdict := v.ValidatePipeline([]Stage{{"$match": map[string]any{}}})
	require.False(t, verdict.Allowed)
	assert.Contains(t, verdict.Reason, "not supported")
}

func TestValidateFilter(t *testing.T) {
	v := vocab(t, FamilyDocument)

	assert.True(t, v.ValidateFilter(map[string]any{"cuisine": "Italian"}).Allowed)

	nested := map[string]any{
		"$or": []any{
			map[string]any{"a": 1},
			map[string]any{"$where": "this.a > 1"},
		},
	}
	verdict := v.ValidateFilter(nested)
	require.False(t, verdict.Allowed)
	assert.Contains(t, verdict.Reason, "$where")
}

func TestSanitizeIdentifier(t *testing.T) {
	for _, ok := range []string{"users", "user_settings", "public.users", "Orders2"} {
		name, err := SanitizeIdentifier(ok)
		require.NoError(t, err)
		assert.Equal(t, ok, name)
	}

	for _, bad := range []string{"", "users; DROP TABLE x", "users`", "a b", "x'y"} {
		_, err := SanitizeIdentifier(bad)
		assert.Error(t, err, "identifier %q", bad)
	}
}
