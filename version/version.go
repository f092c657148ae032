/*
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2024 The LibreGraph Authors.
 */

// Package version holds build information, set with -ldflags -X at build
// time.
package version

var (
	// Version specifies the version string of this build.
	Version = "0.0.0-dev"
	// BuildDate specifies the date of this build.
	BuildDate = "0"
)
