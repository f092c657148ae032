/*
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2024 The LibreGraph Authors.
 */

package ldapfilter

import (
	"strings"
)

// Span addresses bytes of the parsed input, End exclusive.
type Span struct {
	Start int
	End   int
}

// Len returns the number of bytes covered by the span.
func (s Span) Len() int {
	return s.End - s.Start
}

func (s Span) contains(offset int) bool {
	return offset >= s.Start && offset < s.End
}

// Node is a parsed filter component. The set of implementations is closed:
// *AndFilter, *OrFilter, *NotFilter, *ItemFilter and *InvalidFilter.
type Node interface {
	// Span returns the bytes of the input this node was parsed from.
	Span() Span
	// Source returns the input text of the node exactly as it was given.
	Source() string
	// Valid reports whether the node and all of its descendants parsed
	// without diagnostics.
	Valid() bool
	// String returns the canonical form of the node.
	String() string

	node()
}

type base struct {
	span    Span
	source  string
	invalid bool
}

func (b *base) Span() Span {
	return b.span
}

func (b *base) Source() string {
	return b.source
}

func (b *base) Valid() bool {
	return !b.invalid
}

func (b *base) node() {}

// AndFilter matches when all operands match.
type AndFilter struct {
	base
	Operands []Node
}

func (f *AndFilter) String() string {
	var sb strings.Builder
	writeNode(&sb, f)
	return sb.String()
}

// OrFilter matches when any operand matches.
type OrFilter struct {
	base
	Operands []Node
}

func (f *OrFilter) String() string {
	var sb strings.Builder
	writeNode(&sb, f)
	return sb.String()
}

// NotFilter negates its operand. Operand is nil when the input did not
// contain one.
type NotFilter struct {
	base
	Operand Node
}

func (f *NotFilter) String() string {
	var sb strings.Builder
	writeNode(&sb, f)
	return sb.String()
}

// ItemType is the assertion kind of an ItemFilter.
type ItemType int

const (
	Equality ItemType = iota + 1
	GreaterOrEqual
	LessOrEqual
	Approximate
	Present
	Substring
	Extensible
)

func (t ItemType) String() string {
	switch t {
	case Equality:
		return "Equality"
	case GreaterOrEqual:
		return "GreaterOrEqual"
	case LessOrEqual:
		return "LessOrEqual"
	case Approximate:
		return "Approximate"
	case Present:
		return "Present"
	case Substring:
		return "Substring"
	case Extensible:
		return "Extensible"
	default:
		return "Unknown"
	}
}

// Operator returns the filter operator of the item type.
func (t ItemType) Operator() string {
	switch t {
	case Equality, Present, Substring:
		return "="
	case GreaterOrEqual:
		return ">="
	case LessOrEqual:
		return "<="
	case Approximate:
		return "~="
	case Extensible:
		return ":="
	default:
		return ""
	}
}

// ItemFilter is a single attribute assertion.
type ItemFilter struct {
	base

	// Attribute is the attribute description as typed. It is empty for
	// extensible matches without attribute.
	Attribute     string
	AttributeSpan Span

	Type ItemType

	// Value is the unescaped assertion value of Equality, GreaterOrEqual,
	// LessOrEqual, Approximate and Extensible items.
	Value     string
	ValueSpan Span

	Substring  *SubstringSpec
	Extensible *ExtensibleSpec
}

func (f *ItemFilter) String() string {
	var sb strings.Builder
	writeNode(&sb, f)
	return sb.String()
}

// SubstringSpec holds the unescaped components of a substring assertion.
// Empty Initial or Final means the component is absent.
type SubstringSpec struct {
	Span Span

	Initial string
	Any     []string
	Final   string
}

// ExtensibleSpec holds the components of an extensible match assertion.
type ExtensibleSpec struct {
	Span Span

	Attribute        string
	MatchingRule     string
	MatchingRuleSpan Span
	DNAttributes     bool
	Value            string

	dnSource string
}

// InvalidFilter stands in for input which could not be parsed into any other
// node. It contributes nothing to the canonical form.
type InvalidFilter struct {
	base

	Raw    string
	Reason ErrorKind
}

func (f *InvalidFilter) Valid() bool {
	return false
}

func (f *InvalidFilter) String() string {
	return ""
}

// Walk traverses the tree rooted at n depth-first, calling fn for every node
// before its children. Children are skipped when fn returns false.
func Walk(n Node, fn func(Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	switch f := n.(type) {
	case *AndFilter:
		for _, op := range f.Operands {
			Walk(op, fn)
		}
	case *OrFilter:
		for _, op := range f.Operands {
			Walk(op, fn)
		}
	case *NotFilter:
		Walk(f.Operand, fn)
	}
}

func writeNode(sb *strings.Builder, n Node) {
	switch f := n.(type) {
	case *AndFilter:
		sb.WriteString("(&")
		for _, op := range f.Operands {
			writeNode(sb, op)
		}
		sb.WriteByte(')')
	case *OrFilter:
		sb.WriteString("(|")
		for _, op := range f.Operands {
			writeNode(sb, op)
		}
		sb.WriteByte(')')
	case *NotFilter:
		sb.WriteString("(!")
		if f.Operand != nil {
			writeNode(sb, f.Operand)
		}
		sb.WriteByte(')')
	case *ItemFilter:
		sb.WriteByte('(')
		writeItem(sb, f)
		sb.WriteByte(')')
	case *InvalidFilter:
	}
}

func writeItem(sb *strings.Builder, f *ItemFilter) {
	switch f.Type {
	case Present:
		sb.WriteString(f.Attribute)
		sb.WriteString("=*")
	case Substring:
		sb.WriteString(f.Attribute)
		sb.WriteByte('=')
		sub := f.Substring
		if sub.Initial == "" && len(sub.Any) == 0 && sub.Final == "" {
			// Keep it distinguishable from a presence assertion.
			sb.WriteString("**")
			break
		}
		sb.WriteString(EscapeValue(sub.Initial))
		sb.WriteByte('*')
		for _, part := range sub.Any {
			sb.WriteString(EscapeValue(part))
			sb.WriteByte('*')
		}
		sb.WriteString(EscapeValue(sub.Final))
	case Extensible:
		ext := f.Extensible
		sb.WriteString(ext.Attribute)
		if ext.DNAttributes {
			sb.WriteByte(':')
			if ext.dnSource != "" {
				sb.WriteString(ext.dnSource)
			} else {
				sb.WriteString("dn")
			}
		}
		if ext.MatchingRule != "" {
			sb.WriteByte(':')
			sb.WriteString(ext.MatchingRule)
		}
		sb.WriteString(":=")
		sb.WriteString(EscapeValue(ext.Value))
	default:
		sb.WriteString(f.Attribute)
		sb.WriteString(f.Type.Operator())
		sb.WriteString(EscapeValue(f.Value))
	}
}
