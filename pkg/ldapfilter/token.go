/*
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2024 The LibreGraph Authors.
 */

package ldapfilter

// TokenKind identifies the lexical class of a Token.
type TokenKind int

const (
	TokenInvalid TokenKind = iota
	TokenEOF
	TokenLParen
	TokenRParen
	TokenAnd
	TokenOr
	TokenNot
	TokenEquals
	TokenApprox
	TokenGreaterEq
	TokenLessEq
	TokenColon
	TokenExtEquals
	TokenAttr
	TokenValue
	TokenAsterisk
	TokenWhitespace
)

var tokenKindNames = map[TokenKind]string{
	TokenInvalid:    "INVALID",
	TokenEOF:        "EOF",
	TokenLParen:     "LPAREN",
	TokenRParen:     "RPAREN",
	TokenAnd:        "AND",
	TokenOr:         "OR",
	TokenNot:        "NOT",
	TokenEquals:     "EQUALS",
	TokenApprox:     "APPROX",
	TokenGreaterEq:  "GREATER_EQ",
	TokenLessEq:     "LESS_EQ",
	TokenColon:      "COLON",
	TokenExtEquals:  "EXT_EQUALS",
	TokenAttr:       "ATTR",
	TokenValue:      "VALUE",
	TokenAsterisk:   "ASTERISK",
	TokenWhitespace: "WHITESPACE",
}

func (k TokenKind) String() string {
	if name, ok := tokenKindNames[k]; ok {
		return name
	}
	return "UNKNOWN"
}

// isOperator reports whether the token kind introduces an assertion value.
func (k TokenKind) isOperator() bool {
	switch k {
	case TokenEquals, TokenApprox, TokenGreaterEq, TokenLessEq, TokenExtEquals:
		return true
	}
	return false
}

// Token is a lexical unit of a filter string. Start and End are byte offsets
// into the scanned text, End exclusive.
type Token struct {
	Kind  TokenKind
	Text  string
	Start int
	End   int
}

func (t Token) span() Span {
	return Span{Start: t.Start, End: t.End}
}
