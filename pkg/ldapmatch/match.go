/*
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2024 The LibreGraph Authors.
 */

// Package ldapmatch evaluates parsed LDAP filters against directory entries.
package ldapmatch

import (
	"strconv"
	"strings"

	"github.com/go-ldap/ldap/v3"
	"golang.org/x/text/cases"

	"github.com/libregraph/filterkit/pkg/ldapdn"
	"github.com/libregraph/filterkit/pkg/ldapfilter"
)

// Result is the outcome of evaluating a filter, see RFC 4511 section 4.5.1.7.
type Result int

const (
	False Result = iota
	True
	Undefined
)

func (r Result) String() string {
	switch r {
	case True:
		return "TRUE"
	case False:
		return "FALSE"
	default:
		return "Undefined"
	}
}

// Match reports whether entry matches the filter rooted at n. Undefined
// results do not match.
func Match(n ldapfilter.Node, entry *ldap.Entry) bool {
	return Evaluate(n, entry) == True
}

// Evaluate evaluates the filter rooted at n against entry.
func Evaluate(n ldapfilter.Node, entry *ldap.Entry) Result {
	if n == nil || entry == nil {
		return Undefined
	}
	m := &matcher{
		entry: entry,
		fold:  cases.Fold(),
	}
	return m.evaluate(n)
}

type matcher struct {
	entry *ldap.Entry
	fold  cases.Caser

	rdns []*ldap.AttributeTypeAndValue
}

func (m *matcher) evaluate(n ldapfilter.Node) Result {
	switch f := n.(type) {
	case *ldapfilter.AndFilter:
		result := True
		for _, op := range f.Operands {
			switch m.evaluate(op) {
			case False:
				return False
			case Undefined:
				result = Undefined
			}
		}
		return result

	case *ldapfilter.OrFilter:
		result := False
		for _, op := range f.Operands {
			switch m.evaluate(op) {
			case True:
				return True
			case Undefined:
				result = Undefined
			}
		}
		return result

	case *ldapfilter.NotFilter:
		if f.Operand == nil {
			return Undefined
		}
		switch m.evaluate(f.Operand) {
		case True:
			return False
		case False:
			return True
		}
		return Undefined

	case *ldapfilter.ItemFilter:
		return m.item(f)
	}
	return Undefined
}

func (m *matcher) item(f *ldapfilter.ItemFilter) Result {
	if f.Type == ldapfilter.Extensible {
		return m.extensible(f.Extensible)
	}

	values := m.entry.GetEqualFoldAttributeValues(attributeType(f.Attribute))
	if f.Type == ldapfilter.Present {
		return result(len(values) > 0)
	}

	var match func(string) bool
	switch f.Type {
	case ldapfilter.Equality:
		assertion := m.fold.String(f.Value)
		match = func(value string) bool {
			return m.fold.String(value) == assertion
		}
	case ldapfilter.GreaterOrEqual:
		assertion := m.fold.String(f.Value)
		match = func(value string) bool {
			return m.fold.String(value) >= assertion
		}
	case ldapfilter.LessOrEqual:
		assertion := m.fold.String(f.Value)
		match = func(value string) bool {
			return m.fold.String(value) <= assertion
		}
	case ldapfilter.Approximate:
		assertion := m.approx(f.Value)
		match = func(value string) bool {
			return m.approx(value) == assertion
		}
	case ldapfilter.Substring:
		match = func(value string) bool {
			return m.substring(value, f.Substring)
		}
	default:
		return Undefined
	}

	for _, value := range values {
		if match(value) {
			return True
		}
	}
	return False
}

// extensible evaluates a MatchingRuleAssertion. Without attribute type all
// attributes of the entry are considered, with dnAttributes also the
// attribute values of the entry DN.
func (m *matcher) extensible(ext *ldapfilter.ExtensibleSpec) Result {
	if ext == nil || (ext.Attribute == "" && ext.MatchingRule == "") {
		return Undefined
	}
	rule, ok := lookupRule(ext.MatchingRule)
	if !ok {
		return Undefined
	}
	assertion, ok := rule.prepare(m, ext.Value)
	if !ok {
		return Undefined
	}

	attributeName := attributeType(ext.Attribute)
	for _, attribute := range m.entry.Attributes {
		if attributeName != "" && !strings.EqualFold(attribute.Name, attributeName) {
			continue
		}
		for _, value := range attribute.Values {
			if rule.match(m, value, assertion) {
				return True
			}
		}
	}
	if ext.DNAttributes {
		for _, ava := range m.dnAttributes() {
			if attributeName != "" && !strings.EqualFold(ava.Type, attributeName) {
				continue
			}
			if rule.match(m, ava.Value, assertion) {
				return True
			}
		}
	}
	return False
}

func (m *matcher) dnAttributes() []*ldap.AttributeTypeAndValue {
	if m.rdns != nil {
		return m.rdns
	}
	m.rdns = []*ldap.AttributeTypeAndValue{}
	dn, err := ldap.ParseDN(m.entry.DN)
	if err != nil {
		return m.rdns
	}
	for _, rdn := range dn.RDNs {
		m.rdns = append(m.rdns, rdn.Attributes...)
	}
	return m.rdns
}

func (m *matcher) approx(value string) string {
	return strings.Join(strings.Fields(m.fold.String(value)), " ")
}

func (m *matcher) substring(value string, sub *ldapfilter.SubstringSpec) bool {
	if sub == nil {
		return false
	}
	value = m.fold.String(value)

	if initial := m.fold.String(sub.Initial); initial != "" {
		if !strings.HasPrefix(value, initial) {
			return false
		}
		value = value[len(initial):]
	}
	for _, part := range sub.Any {
		part = m.fold.String(part)
		idx := strings.Index(value, part)
		if idx < 0 {
			return false
		}
		value = value[idx+len(part):]
	}
	return strings.HasSuffix(value, m.fold.String(sub.Final))
}

// attributeType strips attribute options, "cn;lang-en" becomes "cn".
func attributeType(description string) string {
	if idx := strings.IndexByte(description, ';'); idx >= 0 {
		return description[:idx]
	}
	return description
}

func result(ok bool) Result {
	if ok {
		return True
	}
	return False
}

// matchingRule implements an equality matching rule. prepare normalizes the
// assertion value once and reports whether it is valid for the rule.
type matchingRule struct {
	prepare func(m *matcher, assertion string) (string, bool)
	match   func(m *matcher, value, assertion string) bool
}

var (
	caseIgnoreRule = &matchingRule{
		prepare: func(m *matcher, assertion string) (string, bool) {
			return m.fold.String(assertion), true
		},
		match: func(m *matcher, value, assertion string) bool {
			return m.fold.String(value) == assertion
		},
	}
	caseExactRule = &matchingRule{
		prepare: func(_ *matcher, assertion string) (string, bool) {
			return assertion, true
		},
		match: func(_ *matcher, value, assertion string) bool {
			return value == assertion
		},
	}
	integerRule = &matchingRule{
		prepare: func(_ *matcher, assertion string) (string, bool) {
			n, err := strconv.ParseInt(strings.TrimSpace(assertion), 10, 64)
			if err != nil {
				return "", false
			}
			return strconv.FormatInt(n, 10), true
		},
		match: func(_ *matcher, value, assertion string) bool {
			n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
			return err == nil && strconv.FormatInt(n, 10) == assertion
		},
	}
	distinguishedNameRule = &matchingRule{
		prepare: func(_ *matcher, assertion string) (string, bool) {
			dn, err := ldapdn.ParseNormalize(assertion)
			return dn, err == nil
		},
		match: func(_ *matcher, value, assertion string) bool {
			dn, err := ldapdn.ParseNormalize(value)
			return err == nil && dn == assertion
		},
	}
)

// rules maps matching rule names and OIDs, in lower case, to their
// implementation. The empty name selects the default equality rule.
var rules = map[string]*matchingRule{
	"":                           caseIgnoreRule,
	"caseignorematch":            caseIgnoreRule,
	"2.5.13.2":                   caseIgnoreRule,
	"caseignoresubstringsmatch":  caseIgnoreRule,
	"2.5.13.4":                   caseIgnoreRule,
	"caseignoreia5match":         caseIgnoreRule,
	"1.3.6.1.4.1.1466.109.114.2": caseIgnoreRule,
	"caseexactmatch":             caseExactRule,
	"2.5.13.5":                   caseExactRule,
	"caseexactia5match":          caseExactRule,
	"1.3.6.1.4.1.1466.109.114.1": caseExactRule,
	"octetstringmatch":           caseExactRule,
	"2.5.13.17":                  caseExactRule,
	"integermatch":               integerRule,
	"2.5.13.14":                  integerRule,
	"distinguishednamematch":     distinguishedNameRule,
	"2.5.13.1":                   distinguishedNameRule,
}

func lookupRule(name string) (*matchingRule, bool) {
	rule, ok := rules[strings.ToLower(name)]
	return rule, ok
}

// SupportedMatchingRule reports whether name is a matching rule known to the
// evaluator.
func SupportedMatchingRule(name string) bool {
	_, ok := lookupRule(name)
	return ok
}
