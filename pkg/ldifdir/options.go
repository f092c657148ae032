/*
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2024 The LibreGraph Authors.
 */

package ldifdir

// Options configure a Directory.
type Options struct {
	BaseDN string

	// TemplateDisabled loads the LDIF file as is, without processing it as
	// text/template first.
	TemplateDisabled  bool
	DefaultCompany    string
	DefaultMailDomain string
	TemplateExtraVars map[string]interface{}

	// IndexAttributes maps attribute names to comma separated index kinds
	// (eq, pres, sub). Nil selects the default set.
	IndexAttributes map[string]string
}
