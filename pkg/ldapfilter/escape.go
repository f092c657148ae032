/*
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2024 The LibreGraph Authors.
 */

package ldapfilter

import (
	"strings"
	"unicode/utf8"
)

const hexchars = "0123456789abcdef"

// EscapeValue escapes an assertion value for use in a filter string. Only
// parentheses, asterisk, backslash, NUL and bytes which are not part of a
// valid UTF-8 sequence are escaped, as \xx with lower case hex digits.
func EscapeValue(value string) string {
	if !needsEscape(value) {
		return value
	}

	var sb strings.Builder
	sb.Grow(len(value) + 8)
	for i := 0; i < len(value); {
		c := value[i]
		if c < utf8.RuneSelf {
			if mustEscape(c) {
				writeEscaped(&sb, c)
			} else {
				sb.WriteByte(c)
			}
			i++
			continue
		}
		r, size := utf8.DecodeRuneInString(value[i:])
		if r == utf8.RuneError && size == 1 {
			writeEscaped(&sb, c)
		} else {
			sb.WriteString(value[i : i+size])
		}
		i += size
	}
	return sb.String()
}

func needsEscape(value string) bool {
	for i := 0; i < len(value); i++ {
		if mustEscape(value[i]) {
			return true
		}
	}
	return !utf8.ValidString(value)
}

func mustEscape(c byte) bool {
	return c == '(' || c == ')' || c == '*' || c == '\\' || c == 0
}

func writeEscaped(sb *strings.Builder, c byte) {
	sb.WriteByte('\\')
	sb.WriteByte(hexchars[c>>4])
	sb.WriteByte(hexchars[c&0xf])
}

// unescapeValue decodes the escape sequences of raw, which starts at offset
// in the parsed input. A backslash which does not start a valid sequence is
// reported and kept literally.
func unescapeValue(raw string, offset int, diags *diagnostics) string {
	if strings.IndexByte(raw, '\\') < 0 {
		return raw
	}

	var sb strings.Builder
	sb.Grow(len(raw))
	for i := 0; i < len(raw); {
		if raw[i] != '\\' {
			sb.WriteByte(raw[i])
			i++
			continue
		}
		switch n := escapeLen(raw[i:]); n {
		case 3:
			sb.WriteByte(unhex(raw[i+1])<<4 | unhex(raw[i+2]))
			i += 3
		case 2:
			sb.WriteByte(raw[i+1])
			i += 2
		default:
			length := min(2, len(raw)-i)
			diags.add(InvalidEscapeSequence, Span{Start: offset + i, End: offset + i + length},
				"invalid escape sequence %q", raw[i:i+length])
			sb.WriteByte('\\')
			i++
		}
	}
	return sb.String()
}

func unhex(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10
	}
	return 0
}
