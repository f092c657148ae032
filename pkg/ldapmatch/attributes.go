/*
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2024 The LibreGraph Authors.
 */

package ldapmatch

import (
	"strings"

	"github.com/go-ldap/ldap/v3"
)

// SelectAttributes returns a copy of entry which only holds the requested
// attributes in entry order. No attributes or "*" select all, a lone "1.1"
// selects none. The returned entry shares no memory with entry.
func SelectAttributes(entry *ldap.Entry, attributes []string) *ldap.Entry {
	e := &ldap.Entry{
		DN: entry.DN,
	}

	all := len(attributes) == 0
	for _, name := range attributes {
		switch name {
		case "*":
			all = true
		case "1.1":
			if len(attributes) == 1 {
				return e
			}
		}
	}

	for _, attribute := range entry.Attributes {
		if !all && !containsFold(attributes, attribute.Name) {
			continue
		}
		e.Attributes = append(e.Attributes, &ldap.EntryAttribute{
			Name:   attribute.Name,
			Values: append([]string(nil), attribute.Values...),
		})
	}
	return e
}

func containsFold(values []string, s string) bool {
	for _, value := range values {
		if strings.EqualFold(value, s) {
			return true
		}
	}
	return false
}
