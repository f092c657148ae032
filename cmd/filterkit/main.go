/*
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2024 The LibreGraph Authors.
 */

package main

import (
	"fmt"
	"os"

	"github.com/libregraph/filterkit/cmd"
	"github.com/libregraph/filterkit/cmd/filterkit/boltdb"
	"github.com/libregraph/filterkit/cmd/filterkit/check"
	"github.com/libregraph/filterkit/cmd/filterkit/parse"
	"github.com/libregraph/filterkit/cmd/filterkit/search"
)

func main() {
	cmd.RootCmd.Use = "filterkit"

	cmd.RootCmd.AddCommand(parse.CommandParse())
	cmd.RootCmd.AddCommand(check.CommandCheck())
	cmd.RootCmd.AddCommand(search.CommandSearch())
	cmd.RootCmd.AddCommand(boltdb.CommandBoltDB())
	if err := cmd.RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}
