/*
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2024 The LibreGraph Authors.
 */

package load

import (
	"fmt"
	"os"

	"github.com/go-ldap/ldif"
	"github.com/sirupsen/logrus"

	"github.com/libregraph/filterkit/pkg/ldbbolt"
)

type LDIFLoader struct {
	logger logrus.FieldLogger
	dbFile string
	baseDN string
}

func NewLDIFLoader(logger logrus.FieldLogger, dbFile, base string) *LDIFLoader {
	return &LDIFLoader{
		logger: logger,
		dbFile: dbFile,
		baseDN: base,
	}
}

// Load adds all entries of the LDIF file to the database.
func (l *LDIFLoader) Load(ldifFile string) error {
	f, err := os.Open(ldifFile)
	if err != nil {
		return fmt.Errorf("error opening file '%s': %w", ldifFile, err)
	}
	defer f.Close()
	lf := &ldif.LDIF{}
	if err := ldif.Unmarshal(f, lf); err != nil {
		return fmt.Errorf("failed to parse LDIF: %w", err)
	}

	bdb := &ldbbolt.LdbBolt{}
	if err := bdb.Configure(l.logger, l.baseDN, l.dbFile, nil); err != nil {
		return err
	}
	defer bdb.Close()

	if err := bdb.Initialize(); err != nil {
		return err
	}

	count := 0
	for _, entry := range lf.AllEntries() {
		l.logger.Debugf("Adding '%s'", entry.DN)
		if err := bdb.EntryPut(entry); err != nil {
			return fmt.Errorf("error adding Entry '%s': %w", entry.DN, err)
		}
		count++
	}
	l.logger.WithField("entries_count", count).Infoln("LDIF loaded")
	return nil
}
