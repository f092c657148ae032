/*
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2024 The LibreGraph Authors.
 */

// Package filtercheck validates LDAP search filters in bulk and keeps
// statistics about the problems found.
package filtercheck

import (
	"bufio"
	"context"
	"io"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/libregraph/filterkit/pkg/ldapfilter"
)

// Result is the outcome of checking one filter.
type Result struct {
	// Line is the 1-based line number for filters read by CheckReader.
	Line  int
	Model *ldapfilter.Model
}

// Valid reports whether the filter parsed without diagnostics.
func (r Result) Valid() bool {
	return r.Model.IsValid()
}

// Checker parses filters and counts the results in Stats. It is safe for
// concurrent use.
type Checker struct {
	logger logrus.FieldLogger
	parser *ldapfilter.Parser

	Stats *Stats
}

// New returns a Checker with empty Stats.
func New(logger logrus.FieldLogger) *Checker {
	return &Checker{
		logger: logger,
		parser: ldapfilter.NewParser(),

		Stats: &Stats{},
	}
}

// Check parses the filter text.
func (c *Checker) Check(text string) Result {
	m := c.parser.Parse(text)
	c.Stats.countModel(m)
	if !m.IsValid() {
		c.logger.WithFields(logrus.Fields{
			"filter":      text,
			"diagnostics": len(m.Diagnostics()),
		}).WithError(m.Err()).Debugln("invalid filter")
	}
	return Result{Model: m}
}

// CheckReader checks each line of r as a filter. Blank lines and lines
// starting with # are skipped. Lines are passed to the parser unmodified so
// surrounding whitespace is reported.
func (c *Checker) CheckReader(ctx context.Context, r io.Reader) ([]Result, error) {
	var results []Result
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		if err := ctx.Err(); err != nil {
			return results, err
		}
		text := strings.TrimSuffix(scanner.Text(), "\r")
		trimmed := strings.TrimSpace(text)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		result := c.Check(text)
		result.Line = line
		results = append(results, result)
	}
	return results, scanner.Err()
}
