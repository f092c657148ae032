/*
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2024 The LibreGraph Authors.
 */

package search

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/go-ldap/ldap/v3"
	"github.com/go-ldap/ldif"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	bolt "go.etcd.io/bbolt"

	"github.com/libregraph/filterkit/cmd"
	"github.com/libregraph/filterkit/pkg/ldapfilter"
	"github.com/libregraph/filterkit/pkg/ldapmatch"
	"github.com/libregraph/filterkit/pkg/ldbbolt"
	"github.com/libregraph/filterkit/pkg/ldifdir"
)

var (
	LDIFFile   string
	BoltDBFile string
	BaseDN     string
	Scope      = "sub"
	SizeLimit  int
	Attributes []string
)

func CommandSearch() *cobra.Command {
	cmd.SetDefaults()

	searchCmd := &cobra.Command{
		Use:   "search [filter]",
		Short: "Search entries of an LDIF file or BoltDB database with a filter",
		Long: `The search command evaluates an LDAP search filter against the entries of an
LDIF file (--ldif) or a BoltDB database (--boltdb-file) and prints the matching
entries as LDIF. LDIF files are processed as templates before parsing.`,
		Args: cobra.ExactArgs(1),
		Run: func(c *cobra.Command, args []string) {
			cmd.ExitOnError(search(c.Context(), c.OutOrStdout(), args[0]))
		},
	}

	searchCmd.Flags().StringVar(&cmd.DefaultLogLevel, "log-level", cmd.DefaultLogLevel, "Log level (one of panic, fatal, error, warn, info or debug)")
	searchCmd.Flags().StringVar(&LDIFFile, "ldif", cmd.DefaultLDIFMain, "Path to the LDIF file to search")
	searchCmd.Flags().StringVar(&BoltDBFile, "boltdb-file", "", "Filename of the BoltDB database to search")
	searchCmd.Flags().StringVar(&BaseDN, "base-dn", cmd.DefaultLDAPBaseDN, "Base DN of the search")
	searchCmd.Flags().StringVar(&Scope, "scope", Scope, "Search scope (one of base, one or sub)")
	searchCmd.Flags().IntVar(&SizeLimit, "size-limit", SizeLimit, "Maximum number of entries returned, 0 for no limit")
	searchCmd.Flags().Uint32Var(&cmd.DefaultPageSize, "page-size", cmd.DefaultPageSize, "Fetch LDIF results in pages of this size, 0 disables paging")
	searchCmd.Flags().StringSliceVar(&Attributes, "attributes", Attributes, "Attributes to return, all if empty")
	searchCmd.Flags().StringVar(&cmd.DefaultLDIFCompany, "ldif-template-default-company", cmd.DefaultLDIFCompany, "Sets the default for of the .Company value used in LDIF templates")
	searchCmd.Flags().StringVar(&cmd.DefaultLDIFMailDomain, "ldif-template-default-mail-domain", cmd.DefaultLDIFMailDomain, "Set the default value of the .MailDomain value used in LDIF templates")

	return searchCmd
}

// ParseScope converts a scope name to the LDAP scope value.
func ParseScope(scope string) (int, error) {
	switch strings.ToLower(scope) {
	case "base":
		return ldap.ScopeBaseObject, nil
	case "one", "single":
		return ldap.ScopeSingleLevel, nil
	case "sub", "subtree", "":
		return ldap.ScopeWholeSubtree, nil
	}
	return 0, fmt.Errorf("invalid scope '%s'", scope)
}

func search(ctx context.Context, w io.Writer, filter string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	logger, err := cmd.NewLogger(!cmd.DefaultLogTimestamp, cmd.DefaultLogLevel)
	if err != nil {
		return cmd.StartupError(fmt.Errorf("failed to create logger: %w", err))
	}

	scope, err := ParseScope(Scope)
	if err != nil {
		return cmd.StartupError(err)
	}

	model := ldapfilter.Parse(filter)
	if !model.IsValid() {
		return cmd.InvalidFilterError(model.Err())
	}

	var entries []*ldap.Entry
	switch {
	case LDIFFile != "" && BoltDBFile != "":
		return cmd.StartupError(errors.New("only one of --ldif and --boltdb-file can be used"))
	case LDIFFile != "":
		entries, err = searchLDIF(ctx, logger, model, scope)
	case BoltDBFile != "":
		entries, err = searchBoltDB(logger, model, scope)
	default:
		return cmd.StartupError(errors.New("one of --ldif or --boltdb-file is required"))
	}
	if err != nil {
		return err
	}

	logger.WithField("entries_count", len(entries)).Debugln("search done")
	return writeLDIF(w, entries)
}

func searchLDIF(ctx context.Context, logger logrus.FieldLogger, model *ldapfilter.Model, scope int) ([]*ldap.Entry, error) {
	d, err := ldifdir.Load(ctx, logger, LDIFFile, &ldifdir.Options{
		BaseDN:            BaseDN,
		DefaultCompany:    cmd.DefaultLDIFCompany,
		DefaultMailDomain: cmd.DefaultLDIFMailDomain,
	})
	if err != nil {
		return nil, cmd.StartupError(err)
	}

	var controls []ldap.Control
	if cmd.DefaultPageSize > 0 {
		controls = append(controls, ldap.NewControlPaging(cmd.DefaultPageSize))
	}
	req := ldap.NewSearchRequest(BaseDN, scope, ldap.NeverDerefAliases, SizeLimit, 0, false, model.String(), Attributes, controls)

	var entries []*ldap.Entry
	for {
		result, err := d.Search(ctx, req)
		if err != nil {
			return nil, err
		}
		entries = append(entries, result.Entries...)

		paging, ok := ldap.FindControl(result.Controls, ldap.ControlTypePaging).(*ldap.ControlPaging)
		if !ok || len(paging.Cookie) == 0 {
			break
		}
		if SizeLimit > 0 && len(entries) >= SizeLimit {
			// Abandon the remaining pages.
			abandon := ldap.NewControlPaging(0)
			abandon.SetCookie(paging.Cookie)
			req.Controls = []ldap.Control{abandon}
			if _, err := d.Search(ctx, req); err != nil {
				return nil, err
			}
			entries = entries[:SizeLimit]
			break
		}
		logger.WithField("entries_count", len(entries)).Debugln("search next page")
		next := ldap.NewControlPaging(cmd.DefaultPageSize)
		next.SetCookie(paging.Cookie)
		req.Controls = []ldap.Control{next}
	}
	return entries, nil
}

func searchBoltDB(logger logrus.FieldLogger, model *ldapfilter.Model, scope int) ([]*ldap.Entry, error) {
	bdb := &ldbbolt.LdbBolt{}
	if err := bdb.Configure(logger, BaseDN, BoltDBFile, &bolt.Options{ReadOnly: true}); err != nil {
		return nil, cmd.StartupError(err)
	}
	defer bdb.Close()

	entries, err := bdb.SearchFilter(BaseDN, scope, model, SizeLimit)
	if err != nil {
		return nil, err
	}
	for i, entry := range entries {
		entries[i] = ldapmatch.SelectAttributes(entry, Attributes)
	}
	return entries, nil
}

func writeLDIF(w io.Writer, entries []*ldap.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	l, err := ldif.ToLDIF(entries)
	if err != nil {
		return err
	}
	output, err := ldif.Marshal(l)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, output)
	return err
}
