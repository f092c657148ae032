/*
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2024 The LibreGraph Authors.
 */

package ldapfilter

import (
	"fmt"
)

// ErrorKind classifies a syntax problem found while parsing a filter.
type ErrorKind int

const (
	UnbalancedParenthesis ErrorKind = iota + 1
	UnexpectedToken
	InvalidEscapeSequence
	TrailingContent
	EmptyFilterList
	MissingOperator
	InvalidAttributeDescription
)

func (k ErrorKind) String() string {
	switch k {
	case UnbalancedParenthesis:
		return "UnbalancedParenthesis"
	case UnexpectedToken:
		return "UnexpectedToken"
	case InvalidEscapeSequence:
		return "InvalidEscapeSequence"
	case TrailingContent:
		return "TrailingContent"
	case EmptyFilterList:
		return "EmptyFilterList"
	case MissingOperator:
		return "MissingOperator"
	case InvalidAttributeDescription:
		return "InvalidAttributeDescription"
	default:
		return "Unknown"
	}
}

// ErrorKinds lists all kinds in declaration order.
var ErrorKinds = []ErrorKind{
	UnbalancedParenthesis,
	UnexpectedToken,
	InvalidEscapeSequence,
	TrailingContent,
	EmptyFilterList,
	MissingOperator,
	InvalidAttributeDescription,
}

// Diagnostic describes one syntax problem. Offset and Length address the
// offending bytes of the original input.
type Diagnostic struct {
	Offset  int
	Length  int
	Kind    ErrorKind
	Message string
}

func (d *Diagnostic) Error() string {
	return fmt.Sprintf("filter syntax error at offset %d: %s (%s)", d.Offset, d.Message, d.Kind)
}

// diagnostics collects diagnostics in source order while parsing.
type diagnostics []*Diagnostic

func (ds *diagnostics) add(kind ErrorKind, span Span, format string, args ...interface{}) {
	*ds = append(*ds, &Diagnostic{
		Offset:  span.Start,
		Length:  span.Len(),
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
	})
}
