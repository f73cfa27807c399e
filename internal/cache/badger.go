// VPNShield - VPN and Proxy Detection for Game Server Proxies
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vpnshield

package cache

import (
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
)

const badgerKeyPrefix = "ip:"

// BadgerStore keeps the snapshot in a badger database, one key per IP.
type BadgerStore struct {
	db     *badger.DB
	ownsDB bool
}

// OpenBadgerStore opens (or creates) a badger database in dir.
func OpenBadgerStore(dir string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil // Suppress BadgerDB logs

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger db for cache: %w", err)
	}
	return &BadgerStore{db: db, ownsDB: true}, nil
}

// NewBadgerStore wraps an already open database. Close leaves it open.
func NewBadgerStore(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db}
}

// Load reads every stored verdict.
func (s *BadgerStore) Load() (map[string]Entry, error) {
	entries := make(map[string]Entry)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(badgerKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			ip := strings.TrimPrefix(string(item.Key()), badgerKeyPrefix)
			err := item.Value(func(val []byte) error {
				var r record
				if err := json.Unmarshal(val, &r); err != nil {
					return fmt.Errorf("decode entry %s: %w", ip, err)
				}
				entries[ip] = r.entry()
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load cache from badger: %w", err)
	}
	return entries, nil
}

// Save replaces the stored verdicts with entries. Keys absent from entries
// are deleted in the same batch.
func (s *BadgerStore) Save(entries map[string]Entry) error {
	var stale [][]byte
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(badgerKeyPrefix)
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			ip := strings.TrimPrefix(string(it.Item().Key()), badgerKeyPrefix)
			if _, keep := entries[ip]; !keep {
				stale = append(stale, it.Item().KeyCopy(nil))
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("scan badger cache: %w", err)
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	for _, key := range stale {
		if err := wb.Delete(key); err != nil {
			return fmt.Errorf("delete stale entry: %w", err)
		}
	}
	for ip, e := range entries {
		val, err := json.Marshal(toRecord(e))
		if err != nil {
			return fmt.Errorf("encode entry %s: %w", ip, err)
		}
		if err := wb.Set([]byte(badgerKeyPrefix+ip), val); err != nil {
			return fmt.Errorf("write entry %s: %w", ip, err)
		}
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("flush badger cache: %w", err)
	}
	return nil
}

// Close closes the database if the store opened it.
func (s *BadgerStore) Close() error {
	if s.ownsDB {
		return s.db.Close()
	}
	return nil
}
