/*
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2024 The LibreGraph Authors.
 */

// Package ldapdn normalizes distinguished names for use as lookup keys.
package ldapdn

import (
	"fmt"
	"strings"

	"github.com/go-ldap/ldap/v3"
	"golang.org/x/text/cases"
)

// ParseNormalize parses dn and returns its normalized string form.
func ParseNormalize(dn string) (string, error) {
	parsed, err := ldap.ParseDN(dn)
	if err != nil {
		return "", fmt.Errorf("invalid dn %q: %w", dn, err)
	}
	return Normalize(parsed), nil
}

// Normalize returns the case-folded string form of dn. Attribute values are
// re-escaped as described in RFC 4514, so normalized DNs of equal entries are
// byte identical.
//
// The order of the attributes of multi-valued RDNs is kept.
func Normalize(dn *ldap.DN) string {
	if dn == nil {
		return ""
	}

	var sb strings.Builder
	caseFold := cases.Fold()
	for r, rdn := range dn.RDNs {
		if r > 0 {
			sb.WriteByte(',')
		}
		for a, ava := range rdn.Attributes {
			if a > 0 {
				sb.WriteByte('+')
			}
			sb.WriteString(caseFold.String(ava.Type))
			sb.WriteByte('=')
			sb.WriteString(escapeValue(caseFold.String(ava.Value)))
		}
	}
	return sb.String()
}

// Parent returns the normalized DN of the parent of dn, or the empty string
// if dn has no parent.
func Parent(dn *ldap.DN) string {
	if dn == nil || len(dn.RDNs) < 2 {
		return ""
	}
	return Normalize(&ldap.DN{RDNs: dn.RDNs[1:]})
}

// IsDescendant reports whether the normalized DN child lies below or equals
// the normalized DN base.
func IsDescendant(child, base string) bool {
	if base == "" || child == base {
		return true
	}
	return strings.HasSuffix(child, ","+base)
}

const hexchars = "0123456789abcdef"

func escapeValue(value string) string {
	var sb strings.Builder
	sb.Grow(len(value))
	for i := 0; i < len(value); i++ {
		c := value[i]
		switch {
		case c == '"' || c == '+' || c == ',' || c == ';' || c == '<' || c == '>' || c == '\\':
			sb.WriteByte('\\')
			sb.WriteByte(c)
		case (c == ' ' || c == '#') && i == 0:
			sb.WriteByte('\\')
			sb.WriteByte(c)
		case c == ' ' && i == len(value)-1:
			sb.WriteByte('\\')
			sb.WriteByte(c)
		case c < 0x20 || c == 0x7f:
			sb.WriteByte('\\')
			sb.WriteByte(hexchars[c>>4])
			sb.WriteByte(hexchars[c&0xf])
		default:
			sb.WriteByte(c)
		}
	}
	return sb.String()
}
