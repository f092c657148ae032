/*
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2024 The LibreGraph Authors.
 */

package filtercheck

import (
	"sync"

	"github.com/libregraph/filterkit/pkg/ldapfilter"
)

// Stats counts checked filters. The zero value is ready to use and a nil
// *Stats ignores all counts.
type Stats struct {
	Parsed      uint64
	Valid       uint64
	Invalid     uint64
	Truncated   uint64
	Diagnostics map[ldapfilter.ErrorKind]uint64
	statsMutex  sync.RWMutex
}

func (stats *Stats) countModel(m *ldapfilter.Model) {
	if stats == nil {
		return
	}
	stats.statsMutex.Lock()
	defer stats.statsMutex.Unlock()

	stats.Parsed++
	if m.IsValid() {
		stats.Valid++
	} else {
		stats.Invalid++
	}
	if m.State() == ldapfilter.Truncated {
		stats.Truncated++
	}
	for _, d := range m.Diagnostics() {
		if stats.Diagnostics == nil {
			stats.Diagnostics = make(map[ldapfilter.ErrorKind]uint64)
		}
		stats.Diagnostics[d.Kind]++
	}
}

func (stats *Stats) Clone() *Stats {
	var s2 *Stats
	if stats != nil {
		s2 = &Stats{}
		stats.statsMutex.RLock()
		s2.Parsed = stats.Parsed
		s2.Valid = stats.Valid
		s2.Invalid = stats.Invalid
		s2.Truncated = stats.Truncated
		s2.Diagnostics = make(map[ldapfilter.ErrorKind]uint64, len(stats.Diagnostics))
		for kind, count := range stats.Diagnostics {
			s2.Diagnostics[kind] = count
		}
		stats.statsMutex.RUnlock()
	}
	return s2
}
