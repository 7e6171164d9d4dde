package admission

import "strings"

// stripOptions captures the lexical differences between SQL dialects that
// matter when blanking out literals before keyword scanning.
type stripOptions struct {
	hashComments     bool // MySQL: # starts a line comment
	backslashEscapes bool // MySQL: \' escapes inside strings
	backticks        bool // MySQL, SQLite: `ident` quoting
	brackets         bool // SQLite: [ident] quoting
	dollarQuotes     bool // PostgreSQL: $tag$ ... $tag$ strings
	doubleQuoteIsStr bool // MySQL treats "..." as a string, not an identifier
	execComments     bool // MySQL: /*!50000 ... */ bodies execute on the server
}

func stripMySQL(sql string) string {
	return stripLiterals(sql, stripOptions{
		hashComments:     true,
		backslashEscapes: true,
		backticks:        true,
		doubleQuoteIsStr: true,
		execComments:     true,
	})
}

func stripPostgres(sql string) string {
	return stripLiterals(sql, stripOptions{dollarQuotes: true})
}

func stripSQLite(sql string) string {
	return stripLiterals(sql, stripOptions{backticks: true, brackets: true})
}

// stripLiterals replaces string literals and comments with placeholders so
// keyword detection cannot be fooled by quoted or commented text. Quoted
// identifiers keep their content, which the deny scan still matches: an
// identifier named exactly after a denied keyword is refused. Fail closed; a
// table really named "drop" cannot be queried through the gateway, while
// names like "drop_log" pass because the scan requires whole words.
func stripLiterals(sql string, opts stripOptions) string {
	var out strings.Builder
	i := 0
	n := len(sql)

	for i < n {
		// -- line comment
		if i+1 < n && sql[i] == '-' && sql[i+1] == '-' {
			for i < n && sql[i] != '\n' {
				i++
			}
			out.WriteByte(' ')
			continue
		}

		// # line comment
		if opts.hashComments && sql[i] == '#' {
			for i < n && sql[i] != '\n' {
				i++
			}
			out.WriteByte(' ')
			continue
		}

		// /*!50000 ... */ executable comment: the server runs the body, so
		// it is content, not comment.
		if opts.execComments && i+2 < n && sql[i] == '/' && sql[i+1] == '*' && sql[i+2] == '!' {
			i += 3
			for i < n && sql[i] >= '0' && sql[i] <= '9' {
				i++
			}
			for i+1 < n && !(sql[i] == '*' && sql[i+1] == '/') {
				out.WriteByte(sql[i])
				i++
			}
			i += 2
			out.WriteByte(' ')
			continue
		}

		// /* block comment */
		if i+1 < n && sql[i] == '/' && sql[i+1] == '*' {
			i += 2
			for i+1 < n && !(sql[i] == '*' && sql[i+1] == '/') {
				i++
			}
			i += 2
			out.WriteByte(' ')
			continue
		}

		// $tag$ ... $tag$ string
		if opts.dollarQuotes && sql[i] == '$' {
			if tagEnd := strings.Index(sql[i+1:], "$"); tagEnd >= 0 {
				tag := sql[i : i+tagEnd+2]
				if closeIdx := strings.Index(sql[i+len(tag):], tag); closeIdx >= 0 {
					i += len(tag) + closeIdx + len(tag)
					out.WriteString("''")
					continue
				}
			}
		}

		// '...' string
		if sql[i] == '\'' {
			i++
			for i < n {
				if sql[i] == '\'' {
					if i+1 < n && sql[i+1] == '\'' {
						i += 2
						continue
					}
					i++
					break
				}
				if opts.backslashEscapes && sql[i] == '\\' && i+1 < n {
					i += 2
					continue
				}
				i++
			}
			out.WriteString("''")
			continue
		}

		// "..." string or identifier
		if sql[i] == '"' {
			if opts.doubleQuoteIsStr {
				i++
				for i < n {
					if sql[i] == '"' {
						if i+1 < n && sql[i+1] == '"' {
							i += 2
							continue
						}
						i++
						break
					}
					if opts.backslashEscapes && sql[i] == '\\' && i+1 < n {
						i += 2
						continue
					}
					i++
				}
				out.WriteString(`""`)
				continue
			}
			out.WriteByte('"')
			i++
			for i < n {
				if sql[i] == '"' {
					if i+1 < n && sql[i+1] == '"' {
						out.WriteString(`""`)
						i += 2
						continue
					}
					out.WriteByte('"')
					i++
					break
				}
				out.WriteByte(sql[i])
				i++
			}
			continue
		}

		// `ident`
		if opts.backticks && sql[i] == '`' {
			out.WriteByte('`')
			i++
			for i < n && sql[i] != '`' {
				out.WriteByte(sql[i])
				i++
			}
			if i < n {
				out.WriteByte('`')
				i++
			}
			continue
		}

		// [ident]
		if opts.brackets && sql[i] == '[' {
			out.WriteByte('[')
			i++
			for i < n && sql[i] != ']' {
				out.WriteByte(sql[i])
				i++
			}
			if i < n {
				out.WriteByte(']')
				i++
			}
			continue
		}

		out.WriteByte(sql[i])
		i++
	}

	return out.String()
}
