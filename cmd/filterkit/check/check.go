/*
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2024 The LibreGraph Authors.
 */

package check

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/libregraph/filterkit/cmd"
	"github.com/libregraph/filterkit/pkg/filtercheck"
)

var (
	MetricsTextfile string
	Quiet           bool
)

func CommandCheck() *cobra.Command {
	checkCmd := &cobra.Command{
		Use:   "check [file|-]",
		Short: "Validate LDAP search filters read line by line",
		Long: `The check command validates one search filter per line, read from the given
file or from stdin. Blank lines and lines starting with # are skipped. The
command exits with code 3 if any filter is not valid.`,
		Args: cobra.MaximumNArgs(1),
		Run: func(c *cobra.Command, args []string) {
			cmd.ExitOnError(check(c.Context(), c, args))
		},
	}
	checkCmd.Flags().StringVar(&MetricsTextfile, "metrics-textfile", MetricsTextfile, "Write checker metrics in Prometheus text format to this file")
	checkCmd.Flags().BoolVarP(&Quiet, "quiet", "q", Quiet, "Only print invalid filters")
	checkCmd.Flags().StringVar(&cmd.DefaultLogLevel, "log-level", cmd.DefaultLogLevel, "Log level (one of panic, fatal, error, warn, info or debug)")

	return checkCmd
}

func check(ctx context.Context, c *cobra.Command, args []string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	logger, err := cmd.NewLogger(!cmd.DefaultLogTimestamp, cmd.DefaultLogLevel)
	if err != nil {
		return cmd.StartupError(fmt.Errorf("failed to create logger: %w", err))
	}

	var r io.Reader = c.InOrStdin()
	if len(args) == 1 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return cmd.StartupError(fmt.Errorf("error opening file '%s': %w", args[0], err))
		}
		defer f.Close()
		r = f
	}

	checker := filtercheck.New(logger)
	invalid, err := run(ctx, c.OutOrStdout(), checker, r)
	if err != nil {
		return err
	}

	if MetricsTextfile != "" {
		if err := filtercheck.WriteToTextfile(MetricsTextfile, checker.Stats); err != nil {
			return fmt.Errorf("failed to write metrics: %w", err)
		}
	}

	if invalid > 0 {
		return cmd.InvalidFilterError(fmt.Errorf("%d invalid filters", invalid))
	}
	return nil
}

// run checks all filters of r and reports each on w. It returns the number
// of invalid filters.
func run(ctx context.Context, w io.Writer, checker *filtercheck.Checker, r io.Reader) (int, error) {
	results, err := checker.CheckReader(ctx, r)
	if err != nil {
		return 0, err
	}

	invalid := 0
	for _, result := range results {
		if result.Valid() {
			if !Quiet {
				fmt.Fprintf(w, "%d: ok %s\n", result.Line, result.Model.String())
			}
			continue
		}
		invalid++
		fmt.Fprintf(w, "%d: invalid %q\n", result.Line, result.Model.UserProvidedString())
		for _, d := range result.Model.Diagnostics() {
			fmt.Fprintf(w, "  %d+%d %s: %s\n", d.Offset, d.Length, d.Kind, d.Message)
		}
	}

	stats := checker.Stats.Clone()
	fmt.Fprintf(w, "checked %d filters, %d valid, %d invalid\n", stats.Parsed, stats.Valid, stats.Invalid)
	return invalid, nil
}
