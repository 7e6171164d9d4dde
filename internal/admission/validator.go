package admission

import (
	"fmt"
	"regexp"
	"strings"
)

// Stage is one decoded step of a structured aggregation pipeline.
type Stage map[string]any

// Verdict is the outcome of admission for one operation. Verdicts are built
// fresh per payload and never cached: the same payload and vocabulary always
// produce the same verdict.
type Verdict struct {
	Allowed bool
	Reason  string

	// SanitizedQuery is the statement to execute when Allowed, trimmed of
	// surrounding whitespace.
	SanitizedQuery string

	// Pipeline is the admitted pipeline, unchanged, when Allowed.
	Pipeline []Stage
}

func deny(format string, args ...any) Verdict {
	return Verdict{Reason: fmt.Sprintf(format, args...)}
}

var selectToken = regexp.MustCompile(`(?i)(?:^|[^a-zA-Z_])SELECT(?:[^a-zA-Z_]|$)`)

// ValidateQuery decides whether a free-form statement is admissible under
// this vocabulary. Checks run in order of most specific reason: empty,
// multiple statements, denied keyword, then the leading-keyword allow-set.
// Anything not explicitly allowed is denied.
func (v *Vocabulary) ValidateQuery(query string) Verdict {
	if v.strip == nil {
		return deny("free-form query text is not supported by %s backends", v.family)
	}

	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return deny("empty operation")
	}

	stripped := v.strip(trimmed)

	// A payload that is nothing but comments strips down to whitespace.
	if strings.TrimSpace(strings.ReplaceAll(stripped, ";", "")) == "" {
		return deny("empty operation")
	}

	if rest, multi := splitStatements(stripped); multi {
		return deny("multiple statements are not allowed (saw %q after separator)", snippet(rest))
	}

	for _, rule := range v.deniedKeywords {
		if rule.re.MatchString(stripped) {
			return deny("statement contains forbidden keyword: %s", rule.desc)
		}
	}

	for _, rule := range v.deniedPatterns {
		if rule.re.MatchString(trimmed) {
			return deny("statement contains forbidden construct: %s", rule.desc)
		}
	}

	leading := leadingKeyword(stripped)
	if leading == "" {
		return deny("statement has no recognizable leading keyword")
	}
	if !v.allowedKeywords[leading] {
		return deny("statements starting with %s are not allowed (allowed: %s)",
			leading, strings.Join(sortedKeys(v.allowedKeywords), ", "))
	}

	// WITH introduces CTEs; the body must still be a read. Writes inside the
	// body are already caught by the deny scan, so it suffices to require a
	// SELECT somewhere in the statement.
	if leading == "WITH" && !selectToken.MatchString(stripped) {
		return deny("WITH statement must resolve to a SELECT")
	}

	return Verdict{Allowed: true, SanitizedQuery: trimmed}
}

// ValidatePipeline walks each stage of a structured pipeline and denies the
// whole pipeline if any stage operator belongs to the family's write-stage
// set. Admitted pipelines pass through unchanged.
func (v *Vocabulary) ValidatePipeline(stages []Stage) Verdict {
	if v.writeStages == nil {
		return deny("aggregation pipelines are not supported by %s backends", v.family)
	}
	if len(stages) == 0 {
		return deny("empty operation")
	}

	for i, stage := range stages {
		if len(stage) == 0 {
			return deny("pipeline stage %d is empty", i)
		}
		for op := range stage {
			if v.writeStages[op] {
				return deny("pipeline contains forbidden stage: %s", op)
			}
		}
	}

	return Verdict{Allowed: true, Pipeline: stages}
}

// ValidateFilter rejects find filters that smuggle server-side code
// execution. $where runs arbitrary JavaScript on the backend and has no
// place in a read-only gateway.
func (v *Vocabulary) ValidateFilter(filter map[string]any) Verdict {
	if op := findOperator(filter, "$where"); op != "" {
		return deny("filter contains forbidden operator: %s", op)
	}
	return Verdict{Allowed: true}
}

func findOperator(value any, banned string) string {
	switch val := value.(type) {
	case map[string]any:
		for k, nested := range val {
			if strings.EqualFold(k, banned) {
				return banned
			}
			if op := findOperator(nested, banned); op != "" {
				return op
			}
		}
	case []any:
		for _, nested := range val {
			if op := findOperator(nested, banned); op != "" {
				return op
			}
		}
	}
	return ""
}

var identifierPattern = regexp.MustCompile(`^[a-zA-Z0-9_.]+$`)

// SanitizeIdentifier vets a table or collection name before it is
// interpolated into a statement. Placeholders cannot carry identifiers, so
// this is the only injection surface the validator cannot delegate to the
// driver.
func SanitizeIdentifier(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("empty identifier")
	}
	if !identifierPattern.MatchString(name) {
		return "", fmt.Errorf("invalid identifier: %q", name)
	}
	return name, nil
}

// splitStatements reports whether stripped contains a second non-empty
// statement after a separator, returning that remainder for the verdict
// reason.
func splitStatements(stripped string) (string, bool) {
	idx := strings.Index(stripped, ";")
	if idx < 0 {
		return "", false
	}
	rest := strings.TrimSpace(stripped[idx+1:])
	rest = strings.Trim(rest, "; \t\r\n")
	return rest, rest != ""
}

func leadingKeyword(stripped string) string {
	fields := strings.Fields(stripped)
	if len(fields) == 0 {
		return ""
	}
	word := strings.ToUpper(fields[0])
	// Tolerate "SELECT(1)" style with no space after the keyword.
	if idx := strings.IndexFunc(word, func(r rune) bool {
		return (r < 'A' || r > 'Z') && r != '_'
	}); idx > 0 {
		word = word[:idx]
	}
	return word
}

func snippet(s string) string {
	const max = 40
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	// Deterministic reasons matter for the validator's purity contract.
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j] < keys[j-1]; j-- {
			keys[j], keys[j-1] = keys[j-1], keys[j]
		}
	}
	return keys
}
