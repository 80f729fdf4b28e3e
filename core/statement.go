package core

import (
	"strings"
	"unicode"

	"github.com/shrek82/estetica-db/dialect"
)

// syntax describes the lexical rules that decide where a ? is a placeholder.
type syntax struct {
	backslashEscapes bool
	hashComments     bool
	// postgres: $tag$...$tag$ bodies and E'...' strings with backslash escapes
	dollarQuotes  bool
	escapeStrings bool
}

func syntaxOf(d dialect.Dialect) syntax {
	if d == nil {
		return syntax{}
	}
	switch d.Name() {
	case "mysql":
		return syntax{backslashEscapes: true, hashComments: true}
	case "postgres":
		return syntax{dollarQuotes: true, escapeStrings: true}
	}
	return syntax{}
}

// mask returns a copy of sql with string literals, quoted identifiers and
// comments blanked out. Offsets are preserved.
func mask(sql string, syn syntax) []byte {
	out := []byte(sql)
	blank := func(from, to int) {
		for k := from; k < to && k < len(out); k++ {
			if out[k] != '\n' {
				out[k] = ' '
			}
		}
	}

	for i := 0; i < len(sql); i++ {
		c := sql[i]
		switch {
		case c == '\'' || c == '"' || c == '`':
			escapes := syn.backslashEscapes && c != '`'
			if c == '\'' && syn.escapeStrings && isEscapePrefix(sql, i) {
				escapes = true
			}
			end := closeQuote(sql, i, escapes)
			blank(i, end+1)
			i = end
		case c == '$' && syn.dollarQuotes:
			tag := dollarTag(sql, i)
			if tag == "" {
				continue
			}
			end := strings.Index(sql[i+len(tag):], tag)
			if end < 0 {
				blank(i, len(sql))
				return out
			}
			stop := i + len(tag) + end + len(tag)
			blank(i, stop)
			i = stop - 1
		case c == '-' && i+1 < len(sql) && sql[i+1] == '-',
			c == '#' && syn.hashComments:
			end := strings.IndexByte(sql[i:], '\n')
			if end < 0 {
				end = len(sql) - i
			}
			blank(i, i+end)
			i += end
		case c == '/' && i+1 < len(sql) && sql[i+1] == '*':
			end := strings.Index(sql[i+2:], "*/")
			if end < 0 {
				blank(i, len(sql))
				return out
			}
			blank(i, i+end+4)
			i += end + 3
		}
	}
	return out
}

// closeQuote returns the index of the quote closing the literal opened at i,
// or len(sql)-1 when it is unterminated.
func closeQuote(sql string, i int, escapes bool) int {
	q := sql[i]
	for j := i + 1; j < len(sql); j++ {
		switch {
		case sql[j] == '\\' && escapes:
			j++
		case sql[j] == q:
			if j+1 < len(sql) && sql[j+1] == q {
				j++
				continue
			}
			return j
		}
	}
	return len(sql) - 1
}

// isEscapePrefix reports whether the quote at i opens a postgres E'...' string.
func isEscapePrefix(sql string, i int) bool {
	if i == 0 || (sql[i-1] != 'E' && sql[i-1] != 'e') {
		return false
	}
	return i == 1 || !isIdentByte(sql[i-2])
}

// dollarTag returns the $tag$ opening a dollar-quoted body at i, or "".
// Positional parameters such as $1 are not tags.
func dollarTag(sql string, i int) string {
	if i > 0 && isIdentByte(sql[i-1]) {
		return ""
	}
	for j := i + 1; j < len(sql); j++ {
		c := sql[j]
		switch {
		case c == '$':
			return sql[i : j+1]
		case j == i+1 && c >= '0' && c <= '9':
			return ""
		case !isIdentByte(c):
			return ""
		}
	}
	return ""
}

func isIdentByte(c byte) bool {
	return c == '_' || c >= 0x80 ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// placeholderOffsets lists the byte offsets of bind placeholders.
func placeholderOffsets(masked []byte) []int {
	var offsets []int
	for i, c := range masked {
		if c == '?' {
			offsets = append(offsets, i)
		}
	}
	return offsets
}

// CountPlaceholders returns how many ? bind placeholders sql holds for the
// given dialect, ignoring any inside literals and comments.
func CountPlaceholders(sql string, d dialect.Dialect) int {
	return len(placeholderOffsets(mask(sql, syntaxOf(d))))
}

// rebind rewrites ? placeholders into the dialect's marker style.
func rebind(sql string, offsets []int, d dialect.Dialect) string {
	if d == nil || len(offsets) == 0 || d.Placeholder(1) == "?" {
		return sql
	}
	var b strings.Builder
	b.Grow(len(sql) + 2*len(offsets))
	last := 0
	for n, off := range offsets {
		b.WriteString(sql[last:off])
		b.WriteString(d.Placeholder(n + 1))
		last = off + 1
	}
	b.WriteString(sql[last:])
	return b.String()
}

var rowKeywords = map[string]bool{
	"SELECT":   true,
	"WITH":     true,
	"SHOW":     true,
	"DESCRIBE": true,
	"DESC":     true,
	"EXPLAIN":  true,
	"PRAGMA":   true,
	"VALUES":   true,
	"TABLE":    true,
}

// returnsRows reports whether the statement produces a result set: it starts
// with a read keyword or carries a RETURNING clause.
func returnsRows(masked []byte) bool {
	words := strings.FieldsFunc(string(masked), func(r rune) bool {
		return !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_')
	})
	if len(words) == 0 {
		return false
	}
	if rowKeywords[strings.ToUpper(words[0])] {
		return true
	}
	for _, w := range words[1:] {
		if strings.EqualFold(w, "RETURNING") {
			return true
		}
	}
	return false
}
