/*
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2024 The LibreGraph Authors.
 */

// Package ldbbolt stores LDAP entries in a BoltDB database and searches them
// with LDAP filters.
//
// The database is separated into three buckets:
//
//   - id2entry: the GOB encoded ldap.Entry instances keyed by a unique 64bit ID
//   - dn2id: the ID of an entry keyed by its normalized DN
//   - id2children: the IDs of the direct children of an entry keyed by its ID
package ldbbolt

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"errors"
	"fmt"

	"github.com/go-ldap/ldap/v3"
	"github.com/sirupsen/logrus"
	bolt "go.etcd.io/bbolt"

	"github.com/libregraph/filterkit/pkg/ldapdn"
	"github.com/libregraph/filterkit/pkg/ldapfilter"
	"github.com/libregraph/filterkit/pkg/ldapmatch"
)

var (
	bucketDN2ID       = []byte("dn2id")
	bucketID2Children = []byte("id2children")
	bucketID2Entry    = []byte("id2entry")
)

var (
	ErrEntryAlreadyExists = errors.New("entry already exists")
	ErrEntryNotFound      = errors.New("entry not found")
	ErrNonLeafEntry       = errors.New("entry is not a leaf entry")
	ErrInvalidFilter      = errors.New("invalid search filter")
)

type LdbBolt struct {
	logger  logrus.FieldLogger
	db      *bolt.DB
	options *bolt.Options
	base    string
}

// Configure opens the database file. The base DN limits which entries can be
// stored.
func (bdb *LdbBolt) Configure(logger logrus.FieldLogger, baseDN, dbfile string, options *bolt.Options) error {
	base, err := ldapdn.ParseNormalize(baseDN)
	if err != nil {
		return err
	}

	bdb.logger = logger
	logger.Debugf("Open boltdb %s", dbfile)
	db, err := bolt.Open(dbfile, 0o600, options)
	if err != nil {
		bdb.logger.WithError(err).Error("Error opening database")
		return err
	}
	bdb.db = db
	bdb.options = options
	bdb.base = base
	return nil
}

// Initialize creates the required buckets if they do not exist yet. After
// calling Initialize the database is ready to process transactions.
func (bdb *LdbBolt) Initialize() error {
	if bdb.options != nil && bdb.options.ReadOnly {
		return nil
	}
	bdb.logger.Debug("Adding default buckets")
	err := bdb.db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketDN2ID, bucketID2Children, bucketID2Entry} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("create bucket '%s': %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		bdb.logger.WithError(err).Error("Error creating default buckets")
	}
	return err
}

// BaseDN returns the normalized base DN of the database.
func (bdb *LdbBolt) BaseDN() string {
	return bdb.base
}

// Search returns all entries in scope of base.
func (bdb *LdbBolt) Search(base string, scope int) ([]*ldap.Entry, error) {
	return bdb.SearchFilter(base, scope, nil, 0)
}

// SearchFilter returns the entries in scope of base which match the filter
// model. A nil model matches all entries. At most sizeLimit entries are
// returned if sizeLimit is greater than 0.
func (bdb *LdbBolt) SearchFilter(base string, scope int, model *ldapfilter.Model, sizeLimit int) ([]*ldap.Entry, error) {
	if model != nil && !model.IsValid() {
		return nil, fmt.Errorf("%w: %w", ErrInvalidFilter, model.Err())
	}
	nDN, err := ldapdn.ParseNormalize(base)
	if err != nil {
		return nil, err
	}

	entries := []*ldap.Entry{}
	err = bdb.db.View(func(tx *bolt.Tx) error {
		entryID := bdb.getIDByDN(tx, nDN)
		if entryID == 0 {
			return fmt.Errorf("%w: %s", ErrEntryNotFound, base)
		}
		var entryIDs []uint64
		switch scope {
		case ldap.ScopeBaseObject:
			entryIDs = append(entryIDs, entryID)
		case ldap.ScopeSingleLevel:
			entryIDs = bdb.getChildrenIDs(tx, entryID)
		case ldap.ScopeWholeSubtree:
			entryIDs = append(entryIDs, entryID)
			entryIDs = append(entryIDs, bdb.getSubtreeIDs(tx, entryID)...)
		default:
			return fmt.Errorf("invalid scope %d", scope)
		}

		id2entry := tx.Bucket(bucketID2Entry)
		for _, id := range entryIDs {
			entry, err := decodeEntry(id2entry.Get(idToBytes(id)))
			if err != nil {
				return fmt.Errorf("error decoding entry id: %d, %w", id, err)
			}
			if model != nil && !ldapmatch.Match(model.Root(), entry) {
				continue
			}
			entries = append(entries, entry)
			if sizeLimit > 0 && len(entries) >= sizeLimit {
				break
			}
		}
		return nil
	})
	return entries, err
}

// EntryPut adds a new entry. Its parent must exist unless it is the base
// entry.
func (bdb *LdbBolt) EntryPut(e *ldap.Entry) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(e); err != nil {
		return fmt.Errorf("error encoding entry '%s': %w", e.DN, err)
	}

	dn, err := ldap.ParseDN(e.DN)
	if err != nil {
		return err
	}
	nDN := ldapdn.Normalize(dn)
	if !ldapdn.IsDescendant(nDN, bdb.base) {
		return fmt.Errorf("'%s' is not a descendant of '%s'", e.DN, bdb.base)
	}
	nParentDN := ldapdn.Parent(dn)

	return bdb.db.Update(func(tx *bolt.Tx) error {
		id2entry := tx.Bucket(bucketID2Entry)
		id := bdb.getIDByDN(tx, nDN)
		if id != 0 {
			return fmt.Errorf("%w: %s", ErrEntryAlreadyExists, e.DN)
		}
		var err error
		if id, err = id2entry.NextSequence(); err != nil {
			return err
		}

		if err := id2entry.Put(idToBytes(id), buf.Bytes()); err != nil {
			return err
		}
		if nDN != bdb.base {
			if err := bdb.addID2Children(tx, nParentDN, id); err != nil {
				return err
			}
		}
		return tx.Bucket(bucketDN2ID).Put([]byte(nDN), idToBytes(id))
	})
}

// EntryDelete removes the leaf entry with the given DN.
func (bdb *LdbBolt) EntryDelete(dn string) error {
	parsed, err := ldap.ParseDN(dn)
	if err != nil {
		return err
	}
	nDN := ldapdn.Normalize(parsed)
	nParentDN := ldapdn.Parent(parsed)

	return bdb.db.Update(func(tx *bolt.Tx) error {
		id := bdb.getIDByDN(tx, nDN)
		if id == 0 {
			return fmt.Errorf("%w: %s", ErrEntryNotFound, dn)
		}
		id2Children := tx.Bucket(bucketID2Children)
		if children := id2Children.Get(idToBytes(id)); len(children) > 0 {
			return fmt.Errorf("%w: %s", ErrNonLeafEntry, dn)
		}

		if nDN != bdb.base {
			if err := bdb.removeID2Children(tx, nParentDN, id); err != nil {
				return err
			}
		}
		if err := tx.Bucket(bucketID2Entry).Delete(idToBytes(id)); err != nil {
			return err
		}
		return tx.Bucket(bucketDN2ID).Delete([]byte(nDN))
	})
}

// ForEach calls fn for every stored entry in ID order. Iteration stops at
// the first error returned by fn.
func (bdb *LdbBolt) ForEach(fn func(*ldap.Entry) error) error {
	return bdb.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketID2Entry).ForEach(func(k, v []byte) error {
			entry, err := decodeEntry(v)
			if err != nil {
				return fmt.Errorf("error decoding entry id: %d, %w", binary.LittleEndian.Uint64(k), err)
			}
			return fn(entry)
		})
	})
}

func (bdb *LdbBolt) Close() error {
	return bdb.db.Close()
}

func decodeEntry(data []byte) (*ldap.Entry, error) {
	var entry ldap.Entry
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

func idToBytes(id uint64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, id)
	return b
}

func bytesToIDs(b []byte) []uint64 {
	ids := make([]uint64, len(b)/8)
	for i := range ids {
		ids[i] = binary.LittleEndian.Uint64(b[i*8:])
	}
	return ids
}

func (bdb *LdbBolt) getChildrenIDs(tx *bolt.Tx, parent uint64) []uint64 {
	ids := bytesToIDs(tx.Bucket(bucketID2Children).Get(idToBytes(parent)))
	bdb.logger.Debugf("Children of '%d': '%v'", parent, ids)
	return ids
}

func (bdb *LdbBolt) getSubtreeIDs(tx *bolt.Tx, root uint64) []uint64 {
	var res []uint64
	children := bdb.getChildrenIDs(tx, root)
	res = append(res, children...)
	for _, child := range children {
		res = append(res, bdb.getSubtreeIDs(tx, child)...)
	}
	return res
}

func (bdb *LdbBolt) addID2Children(tx *bolt.Tx, nParentDN string, newChildID uint64) error {
	parentID := bdb.getIDByDN(tx, nParentDN)
	if parentID == 0 {
		return fmt.Errorf("parent not found '%s'", nParentDN)
	}

	id2Children := tx.Bucket(bucketID2Children)
	// Copy, values returned by Get are only valid within the transaction
	// and must not be modified.
	children := append([]byte(nil), id2Children.Get(idToBytes(parentID))...)
	children = append(children, idToBytes(newChildID)...)
	if err := id2Children.Put(idToBytes(parentID), children); err != nil {
		return fmt.Errorf("error updating id2children index for %d: %w", parentID, err)
	}
	return nil
}

func (bdb *LdbBolt) removeID2Children(tx *bolt.Tx, nParentDN string, childID uint64) error {
	parentID := bdb.getIDByDN(tx, nParentDN)
	if parentID == 0 {
		return fmt.Errorf("parent not found '%s'", nParentDN)
	}

	id2Children := tx.Bucket(bucketID2Children)
	var children []byte
	for _, id := range bytesToIDs(id2Children.Get(idToBytes(parentID))) {
		if id != childID {
			children = append(children, idToBytes(id)...)
		}
	}
	if len(children) == 0 {
		return id2Children.Delete(idToBytes(parentID))
	}
	return id2Children.Put(idToBytes(parentID), children)
}

func (bdb *LdbBolt) getIDByDN(tx *bolt.Tx, nDN string) uint64 {
	dn2id := tx.Bucket(bucketDN2ID)
	if dn2id == nil {
		bdb.logger.Debugf("Bucket 'dn2id' does not exist")
		return 0
	}
	id := dn2id.Get([]byte(nDN))
	if id == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(id)
}
