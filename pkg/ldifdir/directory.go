/*
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2024 The LibreGraph Authors.
 */

// Package ldifdir provides an in-memory, read-only directory loaded from an
// LDIF file which can be searched with LDAP filters.
package ldifdir

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/go-ldap/ldap/v3"
	"github.com/go-ldap/ldif"
	"github.com/longsleep/rndm"
	cmap "github.com/orcaman/concurrent-map"
	"github.com/sirupsen/logrus"
	"github.com/spacewander/go-suffix-tree"
	"golang.org/x/text/cases"

	"github.com/libregraph/filterkit/pkg/ldapdn"
	"github.com/libregraph/filterkit/pkg/ldapfilter"
	"github.com/libregraph/filterkit/pkg/ldapmatch"
)

var (
	ErrInvalidFilter  = errors.New("invalid search filter")
	ErrUnknownCookie  = errors.New("unknown paging cookie")
	ErrOutsideBaseDN  = errors.New("search base is not in the base dn")
	ErrNoSuchObject   = errors.New("search base does not exist")
	ErrBaseDNRequired = errors.New("base dn is empty")
)

// PumpTimeout is how long an unused paged search is kept alive.
var PumpTimeout = 1 * time.Minute

// SearchResult holds the entries of one search or search page.
type SearchResult struct {
	Entries []*ldap.Entry
	// Controls holds the paging response control for paged searches.
	Controls []ldap.Control
}

// Directory is a read-only LDIF backed directory. It is safe for concurrent
// use.
type Directory struct {
	ctx    context.Context
	logger logrus.FieldLogger

	baseDN string

	l *ldif.LDIF
	t *suffix.Tree

	index *index

	activeSearchPagings cmap.ConcurrentMap
}

// pagedSearch is the state of a paged search between requests.
type pagedSearch struct {
	pumpCh <-chan *ldifEntry
	cancel context.CancelFunc
}

// Load reads the LDIF file fn into a new Directory. The context bounds the
// lifetime of paged searches.
func Load(ctx context.Context, logger logrus.FieldLogger, fn string, options *Options) (*Directory, error) {
	if fn == "" {
		return nil, fmt.Errorf("file name is empty")
	}
	if options == nil {
		options = &Options{}
	}

	logger.WithField("fn", fn).Debugln("loading LDIF from file")
	l, err := parseLDIFFile(fn, options)
	if err != nil {
		return nil, err
	}
	return New(ctx, logger, l, options)
}

// New creates a Directory holding the entries of l.
func New(ctx context.Context, logger logrus.FieldLogger, l *ldif.LDIF, options *Options) (*Directory, error) {
	if options == nil || options.BaseDN == "" {
		return nil, ErrBaseDNRequired
	}
	baseDN, err := ldapdn.ParseNormalize(options.BaseDN)
	if err != nil {
		return nil, err
	}

	indexAttributes := options.IndexAttributes
	if indexAttributes == nil {
		indexAttributes = DefaultIndexAttributes
	}
	idx := newIndex(indexAttributes)
	t, err := treeFromLDIF(l, idx)
	if err != nil {
		return nil, err
	}
	logger.WithFields(logrus.Fields{
		"version":       l.Version,
		"entries_count": len(l.Entries),
		"tree_length":   t.Len(),
		"base_dn":       baseDN,
	}).Debugln("loaded LDIF")

	return &Directory{
		ctx:    ctx,
		logger: logger,

		baseDN: baseDN,

		l: l,
		t: t,

		index: idx,

		activeSearchPagings: cmap.New(),
	}, nil
}

// BaseDN returns the normalized base DN of the directory.
func (d *Directory) BaseDN() string {
	return d.baseDN
}

// Len returns the number of entries.
func (d *Directory) Len() int {
	return d.t.Len()
}

// Entries returns all entries of the directory.
func (d *Directory) Entries() []*ldap.Entry {
	return d.l.AllEntries()
}

// Search returns the entries matching the request. Paging is requested with
// an ldap.ControlPaging in the request controls; the response control carries
// the cookie for the next page, which is empty after the last page. A paging
// control with size 0 and a cookie abandons the paged search.
func (d *Directory) Search(ctx context.Context, searchReq *ldap.SearchRequest) (*SearchResult, error) {
	logger := d.logger.WithFields(logrus.Fields{
		"search_base_dn": searchReq.BaseDN,
		"scope":          searchReq.Scope,
		"size_limit":     searchReq.SizeLimit,
	})
	logger.Debugf("ldif search request for %s", searchReq.Filter)

	model := ldapfilter.Parse(searchReq.Filter)
	if !model.IsValid() {
		return nil, fmt.Errorf("%w: %w", ErrInvalidFilter, model.Err())
	}

	searchBaseDN, err := ldapdn.ParseNormalize(searchReq.BaseDN)
	if err != nil {
		return nil, err
	}
	if !ldapdn.IsDescendant(searchBaseDN, d.baseDN) {
		return nil, fmt.Errorf("%w: %s", ErrOutsideBaseDN, d.baseDN)
	}
	if _, found := d.t.Get([]byte(searchBaseDN)); !found {
		return nil, fmt.Errorf("%w: %s", ErrNoSuchObject, searchBaseDN)
	}

	var pagingControl *ldap.ControlPaging
	if paging := ldap.FindControl(searchReq.Controls, ldap.ControlTypePaging); paging != nil {
		pagingControl = paging.(*ldap.ControlPaging)
		if searchReq.SizeLimit > 0 && pagingControl.PagingSize >= uint32(searchReq.SizeLimit) {
			pagingControl = nil
		}
	}

	var pumpCh <-chan *ldifEntry
	var pagingCookie string
	switch {
	case pagingControl == nil:
		pumpCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		pumpCh = d.startPump(pumpCtx, logger, searchReq, searchBaseDN, model, nil)

	case len(pagingControl.Cookie) == 0:
		pagingCookie = base64.RawURLEncoding.EncodeToString(rndm.GenerateRandomBytes(16))
		pumpCtx, cancel := context.WithCancel(d.ctx)
		remove := func() {
			cancel()
			d.activeSearchPagings.Remove(pagingCookie)
		}
		paged := &pagedSearch{
			cancel: remove,
		}
		d.activeSearchPagings.Set(pagingCookie, paged)
		pumpCh = d.startPump(pumpCtx, logger, searchReq, searchBaseDN, model, func(completed bool) {
			if completed {
				// Keep the drained pump for the final page request.
				time.AfterFunc(PumpTimeout, remove)
			} else {
				remove()
			}
		})
		paged.pumpCh = pumpCh
		logger.WithField("paging_cookie", pagingCookie).Debugln("ldif search paging pump start")

	default:
		pagingCookie = string(pagingControl.Cookie)
		record, ok := d.activeSearchPagings.Get(pagingCookie)
		if !ok {
			return nil, ErrUnknownCookie
		}
		paged := record.(*pagedSearch)
		if pagingControl.PagingSize == 0 {
			logger.WithField("paging_cookie", pagingCookie).Debugln("ldif search paging pump abandon")
			paged.cancel()
			return &SearchResult{
				Controls: []ldap.Control{ldap.NewControlPaging(0)},
			}, nil
		}
		logger.WithField("paging_cookie", pagingCookie).Debugln("ldif search paging pump continue")
		pumpCh = paged.pumpCh
	}

	var entries []*ldap.Entry
	var count uint32
	done := false
results:
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case entryRecord, ok := <-pumpCh:
			if !ok {
				done = true
				break results
			}

			entries = append(entries, entryRecord.selectAttributes(searchReq.Attributes))

			count++
			if pagingControl != nil && count >= pagingControl.PagingSize {
				break results
			}
			if searchReq.SizeLimit > 0 && count >= uint32(searchReq.SizeLimit) {
				break results
			}
		}
	}

	result := &SearchResult{
		Entries: entries,
	}
	if pagingControl != nil {
		control := ldap.NewControlPaging(0)
		if !done {
			control.SetCookie([]byte(pagingCookie))
		} else if record, ok := d.activeSearchPagings.Get(pagingCookie); ok {
			record.(*pagedSearch).cancel()
		}
		result.Controls = append(result.Controls, control)
	}
	return result, nil
}

// startPump starts a goroutine which sends the entries matching the search to
// the returned channel. The channel is closed when all entries have been sent
// or ctx is done. done is called when the pump ends, completed tells whether
// all entries have been sent.
func (d *Directory) startPump(ctx context.Context, logger logrus.FieldLogger, searchReq *ldap.SearchRequest, searchBaseDN string, model *ldapfilter.Model, done func(completed bool)) <-chan *ldifEntry {
	pumpCh := make(chan *ldifEntry)
	go d.searchEntriesPump(ctx, logger, pumpCh, searchReq, searchBaseDN, model, done)
	return pumpCh
}

func (d *Directory) searchEntriesPump(ctx context.Context, logger logrus.FieldLogger, pumpCh chan<- *ldifEntry, searchReq *ldap.SearchRequest, searchBaseDN string, model *ldapfilter.Model, done func(completed bool)) {
	completed := false
	defer func() {
		close(pumpCh)
		if done != nil {
			done(completed)
		}
		logger.WithField("completed", completed).Debugln("ldif search pump ended")
	}()

	root := model.Root()
	pump := func(entryRecord *ldifEntry) bool {
		if !entryRecord.inScope(searchBaseDN, searchReq.Scope) || !ldapmatch.Match(root, entryRecord.Entry) {
			return true
		}

		timer := time.NewTimer(PumpTimeout)
		defer timer.Stop()
		select {
		case pumpCh <- entryRecord:
		case <-ctx.Done():
			return false
		case <-timer.C:
			logger.Warnln("ldif search pump timeout")
			return false
		}
		return true
	}

	if indexed, ok := d.index.candidates(root, cases.Fold()); ok {
		// Get entries with help of index.
		for _, entryRecord := range indexed {
			if !pump(entryRecord) {
				return
			}
		}
		completed = true
		return
	}

	// Walk through all entries below the search base.
	logger.WithField("filter", searchReq.Filter).Debugln("ldif search filter does not match any index, using slow walk")
	completed = true
	d.t.WalkSuffix([]byte(searchBaseDN), func(key []byte, entryRecord interface{}) bool {
		if !pump(entryRecord.(*ldifEntry)) {
			completed = false
			return true
		}
		return false
	})
}
