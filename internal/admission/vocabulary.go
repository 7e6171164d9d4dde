// Package admission decides whether a candidate operation is allowed to
// touch a backend. It is the only gate between untrusted payloads and a
// pooled connection: everything here is pure, deterministic, and fails
// closed.
package admission

import "regexp"

// Family identifies a class of backend sharing one query vocabulary.
type Family string

const (
	FamilyMySQL    Family = "mysql"
	FamilyPostgres Family = "postgres"
	FamilySQLite   Family = "sqlite"
	FamilyDocument Family = "document"
)

// keywordRule matches a bare keyword outside identifiers. The pattern is
// anchored on non-word boundaries so column names like "created_at" or
// "deleted" never trip the DELETE/CREATE rules.
type keywordRule struct {
	re   *regexp.Regexp
	desc string
}

func keyword(word string) keywordRule {
	return keywordRule{
		re:   regexp.MustCompile(`(?i)(?:^|[^a-zA-Z_])` + word + `(?:[^a-zA-Z_]|$)`),
		desc: word,
	}
}

func pattern(expr, desc string) keywordRule {
	return keywordRule{re: regexp.MustCompile(expr), desc: desc}
}

// Vocabulary is the capability table entry for one backend family: the
// allow-set of leading keywords, the deny-sets scanned over the statement,
// and the dialect-aware literal stripper used before keyword detection.
// Tables are built once at package init and are read-only afterwards.
type Vocabulary struct {
	family Family

	// allowedKeywords are the statement-leading keywords that may execute.
	allowedKeywords map[string]bool

	// deniedKeywords are scanned over the stripped statement text.
	deniedKeywords []keywordRule

	// deniedPatterns are scanned over the raw statement text, catching
	// function calls and multi-word constructs that stripping would not
	// obscure anyway.
	deniedPatterns []keywordRule

	// writeStages are the pipeline stage operators that mutate state.
	writeStages map[string]bool

	// strip removes string literals and comments in the family's dialect.
	strip func(string) string
}

// Family returns the backend family this vocabulary belongs to.
func (v *Vocabulary) Family() Family { return v.family }

// commonDeniedKeywords are DML/DDL keywords blocked for every relational
// dialect.
var commonDeniedKeywords = []keywordRule{
	keyword("INSERT"),
	keyword("UPDATE"),
	keyword("DELETE"),
	keyword("DROP"),
	keyword("CREATE"),
	keyword("ALTER"),
	keyword("TRUNCATE"),
	keyword("MERGE"),
	keyword("GRANT"),
	keyword("REVOKE"),
}

// setStatement matches SET at statement start, without flagging tables or
// columns whose names contain "set".
var setStatement = pattern(`(?i)(?:^|;)\s*SET\b`, "SET")

func relationalDenied(extra ...keywordRule) []keywordRule {
	rules := make([]keywordRule, 0, len(commonDeniedKeywords)+1+len(extra))
	rules = append(rules, commonDeniedKeywords...)
	rules = append(rules, setStatement)
	rules = append(rules, extra...)
	return rules
}

func allowSet(words ...string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}

var mysqlVocabulary = Vocabulary{
	family:          FamilyMySQL,
	allowedKeywords: allowSet("SELECT", "SHOW", "DESCRIBE", "DESC", "EXPLAIN", "WITH"),
	deniedKeywords: relationalDenied(
		keyword("CALL"),
		keyword("EXEC"),
		keyword("EXECUTE"),
		keyword("REPLACE"),
		keyword("LOAD"),
		keyword("HANDLER"),
		keyword("RENAME"),
	),
	deniedPatterns: []keywordRule{
		pattern(`(?i)\bINTO\s+OUTFILE\b`, "INTO OUTFILE"),
		pattern(`(?i)\bINTO\s+DUMPFILE\b`, "INTO DUMPFILE"),
		pattern(`(?i)\bINTO\s+@`, "INTO @variable"),
		pattern(`(?i)\bLOAD_FILE\s*\(`, "LOAD_FILE()"),
		pattern(`(?i)\bSLEEP\s*\(`, "SLEEP()"),
		pattern(`(?i)\bBENCHMARK\s*\(`, "BENCHMARK()"),
		pattern(`(?i)\bGET_LOCK\s*\(`, "GET_LOCK()"),
		pattern(`(?i)\bRELEASE_LOCK\s*\(`, "RELEASE_LOCK()"),
		pattern(`(?i)\bIS_FREE_LOCK\s*\(`, "IS_FREE_LOCK()"),
		pattern(`(?i)\bIS_USED_LOCK\s*\(`, "IS_USED_LOCK()"),
		pattern(`(?i)\bMASTER_POS_WAIT\s*\(`, "MASTER_POS_WAIT()"),
		pattern(`(?i)\bSOURCE_POS_WAIT\s*\(`, "SOURCE_POS_WAIT()"),
	},
	strip: stripMySQL,
}

var postgresVocabulary = Vocabulary{
	family:          FamilyPostgres,
	allowedKeywords: allowSet("SELECT", "SHOW", "EXPLAIN", "WITH", "TABLE"),
	deniedKeywords: relationalDenied(
		keyword("CALL"),
		keyword("EXECUTE"),
		keyword("COPY"),
		keyword("LISTEN"),
		keyword("NOTIFY"),
		keyword("PREPARE"),
		keyword("DEALLOCATE"),
		keyword("VACUUM"),
		keyword("REINDEX"),
		keyword("CLUSTER"),
	),
	deniedPatterns: []keywordRule{
		pattern(`(?i)\bpg_read_file\s*\(`, "pg_read_file()"),
		pattern(`(?i)\bpg_read_binary_file\s*\(`, "pg_read_binary_file()"),
		pattern(`(?i)\bpg_ls_dir\s*\(`, "pg_ls_dir()"),
		pattern(`(?i)\blo_import\s*\(`, "lo_import()"),
		pattern(`(?i)\blo_export\s*\(`, "lo_export()"),
		pattern(`(?i)\bpg_sleep\s*\(`, "pg_sleep()"),
		pattern(`(?i)\bpg_sleep_for\s*\(`, "pg_sleep_for()"),
		pattern(`(?i)\bpg_sleep_until\s*\(`, "pg_sleep_until()"),
		pattern(`(?i)\bpg_advisory_lock\s*\(`, "pg_advisory_lock()"),
		pattern(`(?i)\bpg_advisory_xact_lock\s*\(`, "pg_advisory_xact_lock()"),
		pattern(`(?i)\bpg_try_advisory_lock\s*\(`, "pg_try_advisory_lock()"),
	},
	strip: stripPostgres,
}

var sqliteVocabulary = Vocabulary{
	family:          FamilySQLite,
	allowedKeywords: allowSet("SELECT", "EXPLAIN", "WITH", "PRAGMA"),
	deniedKeywords: relationalDenied(
		keyword("REPLACE"),
		keyword("ATTACH"),
		keyword("DETACH"),
		keyword("REINDEX"),
		keyword("VACUUM"),
	),
	deniedPatterns: []keywordRule{
		pattern(`(?i)\bload_extension\s*\(`, "load_extension()"),
		pattern(`(?i)\bwritefile\s*\(`, "writefile()"),
		pattern(`(?i)\bedit\s*\(`, "edit()"),
		pattern(`(?i)\bfts3_tokenizer\s*\(`, "fts3_tokenizer()"),
		// Read PRAGMAs are allowed; PRAGMA assignments mutate engine state.
		pattern(`(?i)\bPRAGMA\s+\w+\s*=`, "PRAGMA assignment"),
	},
	strip: stripSQLite,
}

var documentVocabulary = Vocabulary{
	family:      FamilyDocument,
	writeStages: map[string]bool{"$out": true, "$merge": true},
}

var vocabularies = map[Family]*Vocabulary{
	FamilyMySQL:    &mysqlVocabulary,
	FamilyPostgres: &postgresVocabulary,
	FamilySQLite:   &sqliteVocabulary,
	FamilyDocument: &documentVocabulary,
}

// ForFamily returns the capability table entry for a backend family.
func ForFamily(f Family) (*Vocabulary, bool) {
	v, ok := vocabularies[f]
	return v, ok
}
