/*
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2024 The LibreGraph Authors.
 */

// Package ldapfilter implements a parser for the string representation of
// LDAP search filters as defined in RFC 4515.
//
// Parsing never fails. The resulting Model keeps the input verbatim, offers a
// canonical rendering of everything which could be recognized and reports
// syntax problems as diagnostics with byte offsets into the input.
package ldapfilter
