/*
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2024 The LibreGraph Authors.
 */

package ldifdir

import (
	"github.com/go-ldap/ldap/v3"

	"github.com/libregraph/filterkit/pkg/ldapdn"
	"github.com/libregraph/filterkit/pkg/ldapmatch"
)

type ldifEntry struct {
	*ldap.Entry

	// Normalized DN of the entry and its parent.
	dn     string
	parent string
}

func newLDIFEntry(entry *ldap.Entry) (*ldifEntry, error) {
	dn, err := ldap.ParseDN(entry.DN)
	if err != nil {
		return nil, err
	}
	return &ldifEntry{
		Entry:  entry,
		dn:     ldapdn.Normalize(dn),
		parent: ldapdn.Parent(dn),
	}, nil
}

// inScope reports whether the entry is within scope of the normalized base.
func (entry *ldifEntry) inScope(base string, scope int) bool {
	switch scope {
	case ldap.ScopeBaseObject:
		return entry.dn == base
	case ldap.ScopeSingleLevel:
		return entry.parent == base && entry.dn != base
	case ldap.ScopeWholeSubtree:
		return ldapdn.IsDescendant(entry.dn, base)
	}
	return false
}

func (entry *ldifEntry) selectAttributes(attributes []string) *ldap.Entry {
	return ldapmatch.SelectAttributes(entry.Entry, attributes)
}
