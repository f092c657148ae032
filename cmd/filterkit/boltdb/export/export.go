/*
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2024 The LibreGraph Authors.
 */

package export

import (
	"fmt"
	"io"

	"github.com/go-ldap/ldap/v3"
	"github.com/go-ldap/ldif"
	"github.com/sirupsen/logrus"
	bolt "go.etcd.io/bbolt"

	"github.com/libregraph/filterkit/pkg/ldapfilter"
	"github.com/libregraph/filterkit/pkg/ldbbolt"
)

type LDIFExporter struct {
	logger logrus.FieldLogger
	dbFile string
	baseDN string
}

func NewLDIFExporter(logger logrus.FieldLogger, dbFile, base string) *LDIFExporter {
	return &LDIFExporter{
		logger: logger,
		dbFile: dbFile,
		baseDN: base,
	}
}

// Export writes the entries below the base DN to w as LDIF. Only entries
// matching filter are written unless filter is empty.
func (l *LDIFExporter) Export(w io.Writer, filter string) error {
	var model *ldapfilter.Model
	if filter != "" {
		model = ldapfilter.Parse(filter)
		if !model.IsValid() {
			return fmt.Errorf("%w: %w", ldbbolt.ErrInvalidFilter, model.Err())
		}
	}

	bdb := &ldbbolt.LdbBolt{}
	if err := bdb.Configure(l.logger, l.baseDN, l.dbFile, &bolt.Options{ReadOnly: true}); err != nil {
		return err
	}
	defer bdb.Close()

	entries, err := bdb.SearchFilter(l.baseDN, ldap.ScopeWholeSubtree, model, 0)
	if err != nil {
		l.logger.Error(err)
		return err
	}
	if len(entries) == 0 {
		return nil
	}

	ld, err := ldif.ToLDIF(entries)
	if err != nil {
		l.logger.Error(err)
		return err
	}

	output, err := ldif.Marshal(ld)
	if err != nil {
		l.logger.Error(err)
		return err
	}

	_, err = io.WriteString(w, output)
	return err
}
