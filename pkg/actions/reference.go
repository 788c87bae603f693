// Package actions parses action references and dispatches them to registered handlers.
package actions

import "strings"

// Reference is a parsed action reference: a type such as "notify.role" and an opaque argument string.
type Reference struct {
	Type string
	Args string
}

func (r Reference) String() string {
	if r.Args == "" {
		return r.Type
	}

	return r.Type + "(" + r.Args + ")"
}

// Parse tokenizes an action reference of the form
//
//	ident "." ident [ "(" payload ")" ]
//
// where ident is [A-Za-z_][A-Za-z0-9_-]* and payload is opaque text with balanced parentheses.
// Surrounding whitespace is ignored. Any other input is returned whole as the type with empty args.
func Parse(reference string) Reference {
	s := &scanner{input: strings.TrimSpace(reference)}

	if !s.ident() || !s.consume('.') || !s.ident() {
		return Reference{Type: reference}
	}

	typ := s.input[:s.pos]

	if s.done() {
		return Reference{Type: typ}
	}

	args, ok := s.payload()
	if !ok {
		return Reference{Type: reference}
	}

	return Reference{Type: typ, Args: args}
}

type scanner struct {
	input string
	pos   int
}

func (s *scanner) done() bool {
	return s.pos >= len(s.input)
}

func (s *scanner) consume(c byte) bool {
	if s.done() || s.input[s.pos] != c {
		return false
	}

	s.pos++

	return true
}

func (s *scanner) ident() bool {
	if s.done() || !identStart(s.input[s.pos]) {
		return false
	}

	s.pos++
	for !s.done() && identPart(s.input[s.pos]) {
		s.pos++
	}

	return true
}

// payload consumes "(" ... ")" to the end of input, requiring the parentheses to balance
// and the closing one to be the final character.
func (s *scanner) payload() (string, bool) {
	if !s.consume('(') {
		return "", false
	}

	start := s.pos
	depth := 1

	for ; !s.done(); s.pos++ {
		switch s.input[s.pos] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				if s.pos != len(s.input)-1 {
					return "", false
				}

				return s.input[start:s.pos], true
			}
		}
	}

	return "", false
}

func identStart(c byte) bool {
	return c == '_' || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}

func identPart(c byte) bool {
	return identStart(c) || ('0' <= c && c <= '9') || c == '-'
}
