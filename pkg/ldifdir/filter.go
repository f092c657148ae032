/*
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2024 The LibreGraph Authors.
 */

package ldifdir

import (
	"golang.org/x/text/cases"

	"github.com/libregraph/filterkit/pkg/ldapfilter"
)

// candidates returns a superset of the entries matching the filter rooted at
// n using the index. The second result is false if the filter cannot be
// answered from the index, callers then need to walk all entries.
func (idx *index) candidates(n ldapfilter.Node, fold cases.Caser) ([]*ldifEntry, bool) {
	switch f := n.(type) {
	case *ldapfilter.AndFilter:
		// Any indexed operand limits the result, use the smallest.
		var best []*ldifEntry
		found := false
		for _, op := range f.Operands {
			entries, ok := idx.candidates(op, fold)
			if ok && (!found || len(entries) < len(best)) {
				best = entries
				found = true
			}
		}
		return best, found

	case *ldapfilter.OrFilter:
		if len(f.Operands) == 0 {
			return nil, true
		}
		var result []*ldifEntry
		for _, op := range f.Operands {
			entries, ok := idx.candidates(op, fold)
			if !ok {
				return nil, false
			}
			result = append(result, entries...)
		}
		return dedupe(result), true

	case *ldapfilter.ItemFilter:
		switch f.Type {
		case ldapfilter.Equality:
			entries, ok := idx.equality(f.Attribute, fold.String(f.Value))
			return dedupe(entries), ok
		case ldapfilter.Present:
			return idx.presence(f.Attribute)
		case ldapfilter.Substring:
			if f.Substring.Initial == "" {
				return nil, false
			}
			return idx.initial(f.Attribute, fold.String(f.Substring.Initial))
		}
	}

	// NOT, ordering, approximate and extensible assertions are not indexed.
	return nil, false
}
