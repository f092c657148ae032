/*
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2024 The LibreGraph Authors.
 */

package cmd

import (
	"os"
	"strconv"

	"github.com/libregraph/filterkit"
)

var (
	DefaultLogTimestamp = true
	DefaultLogLevel     = "info"

	DefaultLDAPBaseDN = ""

	DefaultBoltDBFile = "filterkit.db"
	DefaultLDIFMain   = ""

	DefaultLDIFCompany    = "Default"
	DefaultLDIFMailDomain = ""

	DefaultPageSize = uint32(0)

	DefaultEnvBase = "FILTERKIT_"
)

// SetDefaults applies the package defaults and their environment overrides.
// It is called before flags are bound.
func SetDefaults() {
	if DefaultLDAPBaseDN == "" {
		DefaultLDAPBaseDN = filterkit.DefaultLDAPBaseDN
	}

	if DefaultLDIFMailDomain == "" {
		DefaultLDIFMailDomain = filterkit.DefaultMailDomain
	}

	if envDefaultLogLevel := os.Getenv(withEnvBase("DEFAULT_LOG_LEVEL")); envDefaultLogLevel != "" {
		DefaultLogLevel = envDefaultLogLevel
	}

	DefaultLDIFMain = os.Getenv(withEnvBase("DEFAULT_LDIF_MAIN_PATH"))

	envDefaultBoltDBFile := os.Getenv(withEnvBase("DEFAULT_BOLTDB_FILE"))
	if envDefaultBoltDBFile != "" {
		DefaultBoltDBFile = envDefaultBoltDBFile
	}
	envDefaultLDAPBaseDN := os.Getenv(withEnvBase("DEFAULT_LDAP_BASEDN"))
	if envDefaultLDAPBaseDN != "" {
		DefaultLDAPBaseDN = envDefaultLDAPBaseDN
	}

	envDefaultLDIFCompany := os.Getenv(withEnvBase("DEFAULT_LDIF_TEMPLATE_COMPANY"))
	if envDefaultLDIFCompany != "" {
		DefaultLDIFCompany = envDefaultLDIFCompany
	}

	envDefaultLDIFMailDomain := os.Getenv(withEnvBase("DEFAULT_LDIF_TEMPLATE_MAIL_DOMAIN"))
	if envDefaultLDIFMailDomain != "" {
		DefaultLDIFMailDomain = envDefaultLDIFMailDomain
	}

	envDefaultPageSize := os.Getenv(withEnvBase("DEFAULT_PAGE_SIZE"))
	if pageSize, err := strconv.ParseUint(envDefaultPageSize, 10, 32); err == nil {
		DefaultPageSize = uint32(pageSize)
	}
}

func withEnvBase(name string) string {
	return DefaultEnvBase + name
}
