/*
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2024 The LibreGraph Authors.
 */

package ldifdir

import (
	"strings"

	"github.com/armon/go-radix"
	"golang.org/x/text/cases"
)

// DefaultIndexAttributes lists the attributes indexed when Options do not
// specify any.
var DefaultIndexAttributes = map[string]string{
	"entryUUID":    "eq",
	"objectClass":  "eq",
	"cn":           "pres,eq,sub",
	"gidNumber":    "eq",
	"mail":         "pres,eq,sub",
	"member":       "eq",
	"memberUid":    "eq",
	"ou":           "eq",
	"uid":          "eq,sub",
	"uidNumber":    "eq",
	"uniqueMember": "eq",

	"sn":        "pres,eq,sub",
	"givenName": "pres,eq,sub",
}

const (
	indexEquality = "eq"
	indexPresence = "pres"
	indexSubInit  = "sub"
)

// index holds entries by attribute value. Equality and presence use maps,
// substring initial lookups a radix tree over the folded values. The index
// is built once while loading and is read-only afterwards.
type index struct {
	eq   map[string]map[string][]*ldifEntry
	pres map[string][]*ldifEntry
	sub  map[string]*radix.Tree
}

func newIndex(attributes map[string]string) *index {
	idx := &index{
		eq:   make(map[string]map[string][]*ldifEntry),
		pres: make(map[string][]*ldifEntry),
		sub:  make(map[string]*radix.Tree),
	}
	for name, ops := range attributes {
		name = strings.ToLower(name)
		for _, op := range strings.Split(ops, ",") {
			switch strings.TrimSpace(op) {
			case indexEquality:
				idx.eq[name] = make(map[string][]*ldifEntry)
			case indexPresence:
				idx.pres[name] = nil
			case indexSubInit:
				idx.sub[name] = radix.New()
			}
		}
	}
	return idx
}

func (idx *index) add(name string, values []string, entry *ldifEntry, fold cases.Caser) {
	name = strings.ToLower(name)
	if _, ok := idx.pres[name]; ok && len(values) > 0 {
		idx.pres[name] = append(idx.pres[name], entry)
	}
	eq, eqOK := idx.eq[name]
	sub, subOK := idx.sub[name]
	if !eqOK && !subOK {
		return
	}
	for _, value := range values {
		value = fold.String(value)
		if eqOK {
			eq[value] = append(eq[value], entry)
		}
		if subOK {
			existing, _ := sub.Get(value)
			entries, _ := existing.([]*ldifEntry)
			sub.Insert(value, append(entries, entry))
		}
	}
}

// equality returns the entries with the folded value. The second result is
// false if the attribute has no equality index.
func (idx *index) equality(name, value string) ([]*ldifEntry, bool) {
	eq, ok := idx.eq[strings.ToLower(name)]
	if !ok {
		return nil, false
	}
	return eq[value], true
}

func (idx *index) presence(name string) ([]*ldifEntry, bool) {
	entries, ok := idx.pres[strings.ToLower(name)]
	return entries, ok
}

// initial returns the entries with a value starting with the folded prefix.
func (idx *index) initial(name, prefix string) ([]*ldifEntry, bool) {
	sub, ok := idx.sub[strings.ToLower(name)]
	if !ok {
		return nil, false
	}
	var result []*ldifEntry
	sub.WalkPrefix(prefix, func(_ string, v interface{}) bool {
		result = append(result, v.([]*ldifEntry)...)
		return false
	})
	return dedupe(result), true
}

func dedupe(entries []*ldifEntry) []*ldifEntry {
	if len(entries) < 2 {
		return entries
	}
	seen := make(map[*ldifEntry]struct{}, len(entries))
	result := entries[:0:0]
	for _, entry := range entries {
		if _, ok := seen[entry]; ok {
			continue
		}
		seen[entry] = struct{}{}
		result = append(result, entry)
	}
	return result
}
