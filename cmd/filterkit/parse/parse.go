/*
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2024 The LibreGraph Authors.
 */

package parse

import (
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	ber "github.com/go-asn1-ber/asn1-ber"
	"github.com/spf13/cobra"

	"github.com/libregraph/filterkit/cmd"
	"github.com/libregraph/filterkit/pkg/ldapfilter"
)

var (
	WithTree bool
	WithBER  bool
)

func CommandParse() *cobra.Command {
	parseCmd := &cobra.Command{
		Use:   "parse [filter]",
		Short: "Parse an LDAP search filter and print its canonical form",
		Long: `The parse command parses a single RFC 4515 search filter and prints its
canonical form, the original input and all diagnostics. The command exits with
code 3 if the filter is not valid.`,
		Args: cobra.ExactArgs(1),
		Run: func(c *cobra.Command, args []string) {
			cmd.ExitOnError(parse(c.OutOrStdout(), args[0]))
		},
	}
	parseCmd.Flags().BoolVar(&WithTree, "tree", WithTree, "Print the parsed filter tree")
	parseCmd.Flags().BoolVar(&WithBER, "ber", WithBER, "Print the BER encoding of valid filters")

	return parseCmd
}

func parse(w io.Writer, text string) error {
	m := ldapfilter.Parse(text)

	fmt.Fprintf(w, "canonical:   %s\n", m.String())
	fmt.Fprintf(w, "original:    %q\n", m.UserProvidedString())
	fmt.Fprintf(w, "state:       %s\n", m.State())
	fmt.Fprintf(w, "valid:       %t\n", m.IsValid())
	if diagnostics := m.Diagnostics(); len(diagnostics) > 0 {
		fmt.Fprintln(w, "diagnostics:")
		for _, d := range diagnostics {
			fmt.Fprintf(w, "  %d+%d %s: %s\n", d.Offset, d.Length, d.Kind, d.Message)
		}
	}

	if WithTree {
		fmt.Fprintln(w, "tree:")
		writeTree(w, m.Root(), 1)
	}

	if WithBER && m.IsValid() {
		packet, err := m.Packet()
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "ber:         %s\n", hex.EncodeToString(packet.Bytes()))
		ber.WritePacket(w, packet)
	}

	if !m.IsValid() {
		return cmd.InvalidFilterError(m.Err())
	}
	return nil
}

func writeTree(w io.Writer, n ldapfilter.Node, depth int) {
	indent := strings.Repeat("  ", depth)
	span := n.Span()
	valid := ""
	if !n.Valid() {
		valid = " invalid"
	}

	switch f := n.(type) {
	case *ldapfilter.AndFilter:
		fmt.Fprintf(w, "%sand [%d,%d)%s\n", indent, span.Start, span.End, valid)
		for _, op := range f.Operands {
			writeTree(w, op, depth+1)
		}
	case *ldapfilter.OrFilter:
		fmt.Fprintf(w, "%sor [%d,%d)%s\n", indent, span.Start, span.End, valid)
		for _, op := range f.Operands {
			writeTree(w, op, depth+1)
		}
	case *ldapfilter.NotFilter:
		fmt.Fprintf(w, "%snot [%d,%d)%s\n", indent, span.Start, span.End, valid)
		if f.Operand != nil {
			writeTree(w, f.Operand, depth+1)
		}
	case *ldapfilter.ItemFilter:
		fmt.Fprintf(w, "%s%s [%d,%d)%s %s\n", indent, strings.ToLower(f.Type.String()), span.Start, span.End, valid, f.String())
	case *ldapfilter.InvalidFilter:
		fmt.Fprintf(w, "%sinvalid [%d,%d) %s %q\n", indent, span.Start, span.End, f.Reason, f.Raw)
	}
}
