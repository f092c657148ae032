/*
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2024 The LibreGraph Authors.
 */

package ldapfilter

// State describes how parsing of a model ended.
type State int

const (
	// CompleteValid means the whole input is one well-formed filter.
	CompleteValid State = iota
	// CompleteInvalid means parsing finished but diagnostics were recorded.
	CompleteInvalid
	// Truncated means the input ended inside a production.
	Truncated
)

func (s State) String() string {
	switch s {
	case CompleteValid:
		return "CompleteValid"
	case CompleteInvalid:
		return "CompleteInvalid"
	case Truncated:
		return "Truncated"
	default:
		return "Unknown"
	}
}

// Model is the immutable result of parsing a filter string.
type Model struct {
	root        Node
	text        string
	diagnostics []*Diagnostic
	state       State
}

// Root returns the root node of the filter tree. It is never nil; input
// which does not contain any filter yields an *InvalidFilter.
func (m *Model) Root() Node {
	return m.root
}

// String returns the canonical form of the filter. Invalid leading and
// trailing content and invalid subtrees are omitted.
func (m *Model) String() string {
	return m.root.String()
}

// UserProvidedString returns the input exactly as it was passed to Parse.
func (m *Model) UserProvidedString() string {
	return m.text
}

// IsValid reports whether the whole input is a syntactically valid filter.
func (m *Model) IsValid() bool {
	return len(m.diagnostics) == 0
}

// State returns the terminal parser state.
func (m *Model) State() State {
	return m.state
}

// Diagnostics returns copies of the recorded diagnostics ordered by offset.
func (m *Model) Diagnostics() []*Diagnostic {
	result := make([]*Diagnostic, len(m.diagnostics))
	for i, d := range m.diagnostics {
		dc := *d
		result[i] = &dc
	}
	return result
}

// Err returns a copy of the first diagnostic as error, or nil if the model is
// valid.
func (m *Model) Err() error {
	if len(m.diagnostics) == 0 {
		return nil
	}
	d := *m.diagnostics[0]
	return &d
}

// Source returns the original text the given node was parsed from.
func (m *Model) Source(n Node) string {
	span := n.Span()
	if span.Start < 0 || span.End > len(m.text) || span.Start > span.End {
		return ""
	}
	return m.text[span.Start:span.End]
}
