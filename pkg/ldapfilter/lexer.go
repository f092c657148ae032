/*
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2024 The LibreGraph Authors.
 */

package ldapfilter

import (
	"unicode/utf8"
)

// Tokenize scans text into tokens. It never fails: characters which do not
// form a valid token are returned as TokenInvalid. The last token is always
// TokenEOF.
func Tokenize(text string) []Token {
	l := newLexer(text)
	tokens := make([]Token, 0, len(text)/2+1)
	for {
		tok := l.next()
		tokens = append(tokens, tok)
		if tok.Kind == TokenEOF {
			return tokens
		}
	}
}

// lexer is modal: after an assertion operator it scans value text until the
// next parenthesis, everywhere else it scans structural tokens.
type lexer struct {
	input   string
	pos     int
	inValue bool
}

func newLexer(input string) *lexer {
	return &lexer{input: input}
}

func (l *lexer) emit(kind TokenKind, start int) Token {
	return Token{
		Kind:  kind,
		Text:  l.input[start:l.pos],
		Start: start,
		End:   l.pos,
	}
}

func (l *lexer) peek(offset int) byte {
	if l.pos+offset >= len(l.input) {
		return 0
	}
	return l.input[l.pos+offset]
}

func (l *lexer) next() Token {
	if l.pos >= len(l.input) {
		return l.emit(TokenEOF, l.pos)
	}
	if l.inValue {
		if c := l.input[l.pos]; c != '(' && c != ')' {
			return l.nextValue()
		}
		l.inValue = false
	}

	start := l.pos
	c := l.input[l.pos]
	switch {
	case c == '(':
		l.pos++
		return l.emit(TokenLParen, start)
	case c == ')':
		l.pos++
		return l.emit(TokenRParen, start)
	case c == '&':
		l.pos++
		return l.emit(TokenAnd, start)
	case c == '|':
		l.pos++
		return l.emit(TokenOr, start)
	case c == '!':
		l.pos++
		return l.emit(TokenNot, start)
	case c == '=':
		l.pos++
		l.inValue = true
		return l.emit(TokenEquals, start)
	case c == '~' || c == '>' || c == '<' || c == ':':
		if l.peek(1) == '=' {
			l.pos += 2
			l.inValue = true
			switch c {
			case '~':
				return l.emit(TokenApprox, start)
			case '>':
				return l.emit(TokenGreaterEq, start)
			case '<':
				return l.emit(TokenLessEq, start)
			default:
				return l.emit(TokenExtEquals, start)
			}
		}
		l.pos++
		if c == ':' {
			return l.emit(TokenColon, start)
		}
		return l.emit(TokenInvalid, start)
	case isSpace(c):
		for l.pos < len(l.input) && isSpace(l.input[l.pos]) {
			l.pos++
		}
		return l.emit(TokenWhitespace, start)
	case isAttrChar(c):
		for l.pos < len(l.input) && isAttrChar(l.input[l.pos]) {
			l.pos++
		}
		return l.emit(TokenAttr, start)
	}

	_, size := utf8.DecodeRuneInString(l.input[l.pos:])
	l.pos += size
	return l.emit(TokenInvalid, start)
}

// nextValue scans either a single asterisk or a run of value text. Escape
// sequences are kept in the run so that escaped parentheses and asterisks
// do not terminate it.
func (l *lexer) nextValue() Token {
	start := l.pos
	if l.input[l.pos] == '*' {
		l.pos++
		return l.emit(TokenAsterisk, start)
	}
	for l.pos < len(l.input) {
		c := l.input[l.pos]
		if c == '(' || c == ')' || c == '*' {
			break
		}
		if c == '\\' {
			l.pos += escapeLen(l.input[l.pos:])
			continue
		}
		l.pos++
	}
	return l.emit(TokenValue, start)
}

// escapeLen returns the length of the escape sequence at the start of s,
// which must begin with a backslash. A backslash which does not start a
// recognized sequence has length 1.
func escapeLen(s string) int {
	if len(s) >= 3 && isHex(s[1]) && isHex(s[2]) {
		return 3
	}
	if len(s) >= 2 {
		switch s[1] {
		case '*', '(', ')', '\\':
			return 2
		}
	}
	return 1
}

func isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '\f', '\v':
		return true
	}
	return false
}

func isAttrChar(c byte) bool {
	return isAlpha(c) || isDigit(c) || c == '-' || c == '.' || c == ';' || c == '_'
}

func isAlpha(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isHex(c byte) bool {
	return isDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}
