/*
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2024 The LibreGraph Authors.
 */

package filterkit

// Defaults as used by multiple sub packages.
var (
	DefaultLDAPBaseDN = "dc=lg,dc=local"
	DefaultMailDomain = "lg.local"
)
