// Package sqltext inspects raw SQL text before it reaches a store binding.
//
// The scanner follows SQLite's lexical rules: quoted strings and identifiers
// escape their delimiter only by doubling it, backslash is an ordinary
// character, and the only comments are "--" to end of line and "/* */".
package sqltext

// Count returns the number of non-empty statements in sqlText. Semicolons and
// comments on their own do not form a statement. Any byte the scanner does not
// recognise is statement content, so malformed text is never undercounted.
func Count(sqlText string) int {
	s := scanner{src: sqlText}
	count := 0
	inStatement := false
	for s.pos < len(s.src) {
		switch ch := s.src[s.pos]; {
		case ch == ';':
			if inStatement {
				count++
				inStatement = false
			}
			s.pos++
		case isSpace(ch):
			s.pos++
		case s.startsWith("--"):
			s.skipLineComment()
		case s.startsWith("/*"):
			s.skipBlockComment()
		case ch == '\'' || ch == '"' || ch == '`':
			s.skipQuoted(ch, ch)
			inStatement = true
		case ch == '[':
			s.skipQuoted('[', ']')
			inStatement = true
		default:
			s.pos++
			inStatement = true
		}
	}
	if inStatement {
		count++
	}
	return count
}

type scanner struct {
	src string
	pos int
}

func (s *scanner) startsWith(prefix string) bool {
	return len(s.src)-s.pos >= len(prefix) && s.src[s.pos:s.pos+len(prefix)] == prefix
}

func (s *scanner) skipLineComment() {
	for s.pos < len(s.src) && s.src[s.pos] != '\n' {
		s.pos++
	}
}

// skipBlockComment runs to end of input when the comment is unterminated.
func (s *scanner) skipBlockComment() {
	s.pos += 2
	for s.pos < len(s.src) && !s.startsWith("*/") {
		s.pos++
	}
	s.pos = min(s.pos+2, len(s.src))
}

// skipQuoted consumes a quoted token. A doubled closing delimiter is an escaped
// delimiter; brackets do not escape. An unterminated token swallows the rest of
// the input, which the engine rejects as a whole.
func (s *scanner) skipQuoted(open, closing byte) {
	s.pos++
	for s.pos < len(s.src) {
		if s.src[s.pos] != closing {
			s.pos++
			continue
		}
		s.pos++
		if open == closing && s.pos < len(s.src) && s.src[s.pos] == closing {
			s.pos++
			continue
		}
		return
	}
}

func isSpace(ch byte) bool {
	return ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r' || ch == '\f'
}
