/*
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2024 The LibreGraph Authors.
 */

package ldifdir

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/template"

	"github.com/go-ldap/ldif"
	"github.com/spacewander/go-suffix-tree"
	"golang.org/x/text/cases"
)

// parseLDIFFile opens the named file for reading and parses it as LDIF. The
// file is processed as template first unless disabled in options.
func parseLDIFFile(fn string, options *Options) (*ldif.LDIF, error) {
	var r io.Reader
	if options != nil && options.TemplateDisabled {
		f, err := os.Open(fn)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	} else {
		m := make(map[string]interface{})
		tpl, err := template.New("tpl").Funcs(TemplateFuncs(m, options)).ParseFiles(fn)
		if err != nil {
			return nil, fmt.Errorf("failed to parse LDIF template: %w", err)
		}

		var buf bytes.Buffer
		err = tpl.ExecuteTemplate(&buf, filepath.Base(fn), m)
		if err != nil {
			return nil, fmt.Errorf("failed to process LDIF template: %w", err)
		}
		r = &buf
	}

	l := &ldif.LDIF{}
	if err := ldif.Unmarshal(r, l); err != nil {
		return nil, fmt.Errorf("failed to parse LDIF: %w", err)
	}
	return l, nil
}

// treeFromLDIF makes a tree keyed by normalized DN out of the provided LDIF
// and indexes each entry in the provided index.
func treeFromLDIF(l *ldif.LDIF, idx *index) (*suffix.Tree, error) {
	t := suffix.NewTree()
	fold := cases.Fold()

	for _, entry := range l.AllEntries() {
		e, err := newLDIFEntry(entry)
		if err != nil {
			return nil, fmt.Errorf("invalid entry dn %q: %w", entry.DN, err)
		}
		for _, a := range entry.Attributes {
			idx.add(a.Name, a.Values, e, fold)
		}
		v, ok := t.Insert([]byte(e.dn), e)
		if !ok || v != nil {
			return nil, fmt.Errorf("duplicate value: %s", e.dn)
		}
	}

	return t, nil
}
