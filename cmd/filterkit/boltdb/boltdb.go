/*
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2024 The LibreGraph Authors.
 */

package boltdb

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/libregraph/filterkit/cmd"
	"github.com/libregraph/filterkit/cmd/filterkit/boltdb/export"
	"github.com/libregraph/filterkit/cmd/filterkit/boltdb/load"
)

var (
	BoltDBFile string
	LDAPBaseDN string
	InputFile  string
	Filter     string
)

func CommandBoltDB() *cobra.Command {
	cmd.SetDefaults()
	BoltDBFile = cmd.DefaultBoltDBFile
	LDAPBaseDN = cmd.DefaultLDAPBaseDN

	boltdbCmd := &cobra.Command{
		Use:   "boltdb [...args]",
		Short: "Utility commands related to the BoltDB entry store",
	}

	boltdbCmd.PersistentFlags().StringVar(&cmd.DefaultLogLevel, "log-level", cmd.DefaultLogLevel, "Log level (one of panic, fatal, error, warn, info or debug)")
	boltdbCmd.PersistentFlags().StringVar(&BoltDBFile, "boltdb-file", BoltDBFile, "Filename of the BoltDB database")
	boltdbCmd.PersistentFlags().StringVar(&LDAPBaseDN, "ldap-base-dn", LDAPBaseDN, "Base DN of the database")

	loadLDIFCmd := &cobra.Command{
		Use:   "load",
		Short: "Initialize a database from an LDIF file",
		Long: `The load command imports LDAP entries from an LDIF file and stores them into a BoltDB database.
The entries in the LDIF file need to be sorted, so that parent entries are created
before their children.`,
		Run: func(c *cobra.Command, args []string) {
			cmd.ExitOnError(loadLDIF())
		},
	}
	loadLDIFCmd.Flags().StringVar(&InputFile, "input-file", InputFile, "Filename of LDIF to read into database")
	if err := loadLDIFCmd.MarkFlagRequired("input-file"); err != nil {
		cmd.ExitOnError(err)
	}

	exportLDIFCmd := &cobra.Command{
		Use:   "export",
		Short: "Export the entries of a database as LDIF",
		Run: func(c *cobra.Command, args []string) {
			cmd.ExitOnError(exportLDIF(c))
		},
	}
	exportLDIFCmd.Flags().StringVar(&Filter, "filter", Filter, "Only export entries matching this LDAP filter")

	boltdbCmd.AddCommand(loadLDIFCmd)
	boltdbCmd.AddCommand(exportLDIFCmd)

	return boltdbCmd
}

func loadLDIF() error {
	logger, err := cmd.NewLogger(!cmd.DefaultLogTimestamp, cmd.DefaultLogLevel)
	if err != nil {
		return cmd.StartupError(fmt.Errorf("failed to create logger: %w", err))
	}
	loader := load.NewLDIFLoader(logger, BoltDBFile, LDAPBaseDN)
	return loader.Load(InputFile)
}

func exportLDIF(c *cobra.Command) error {
	logger, err := cmd.NewLogger(!cmd.DefaultLogTimestamp, cmd.DefaultLogLevel)
	if err != nil {
		return cmd.StartupError(fmt.Errorf("failed to create logger: %w", err))
	}
	exporter := export.NewLDIFExporter(logger, BoltDBFile, LDAPBaseDN)
	return exporter.Export(c.OutOrStdout(), Filter)
}
