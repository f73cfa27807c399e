// VPNShield - VPN and Proxy Detection for Game Server Proxies
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vpnshield

package cache

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"
)

// DefaultSnapshotFile is the snapshot file name inside the data directory.
const DefaultSnapshotFile = "ip_cache.json"

// Persister loads and saves full cache snapshots.
type Persister interface {
	// Load returns the stored snapshot. A missing snapshot is not an error.
	Load() (map[string]Entry, error)

	// Save replaces the stored snapshot with entries.
	Save(entries map[string]Entry) error

	Close() error
}

// record is the on-disk form of an Entry: {"isVPN":bool,"timestamp":<unix ms>}.
// Snapshots written with the short "vpn" key are still read.
type record struct {
	VPN       bool  `json:"isVPN"`
	Timestamp int64 `json:"timestamp"`
	LegacyVPN bool  `json:"vpn,omitempty"`
}

func toRecord(e Entry) record {
	return record{VPN: e.VPN, Timestamp: e.ObservedAt.UnixMilli()}
}

func (r record) entry() Entry {
	return Entry{VPN: r.VPN || r.LegacyVPN, ObservedAt: time.UnixMilli(r.Timestamp)}
}

// FileStore keeps the snapshot in one JSON file.
type FileStore struct {
	path string
}

// NewFileStore returns a FileStore writing to path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the snapshot file path.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the snapshot file.
func (s *FileStore) Load() (map[string]Entry, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]Entry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot %s: %w", s.path, err)
	}
	if len(data) == 0 {
		return map[string]Entry{}, nil
	}

	var records map[string]record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", s.path, err)
	}

	entries := make(map[string]Entry, len(records))
	for ip, r := range records {
		entries[ip] = r.entry()
	}
	return entries, nil
}

// Save rewrites the snapshot through a temporary file in the same directory
// followed by a rename, so readers never observe a partial file.
func (s *FileStore) Save(entries map[string]Entry) error {
	records := make(map[string]record, len(entries))
	for ip, e := range entries {
		records[ip] = toRecord(e)
	}
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write temp snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp snapshot: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}

// Close is a no-op for FileStore.
func (s *FileStore) Close() error {
	return nil
}

type nopStore struct{}

func (nopStore) Load() (map[string]Entry, error) { return map[string]Entry{}, nil }
func (nopStore) Save(map[string]Entry) error     { return nil }
func (nopStore) Close() error                    { return nil }

// Snapshot backends accepted by OpenStore.
const (
	BackendFile   = "file"
	BackendBadger = "badger"
	BackendMemory = "memory"
)

// OpenStore opens the snapshot backend named by backend inside dataDir.
func OpenStore(backend, dataDir string) (Persister, error) {
	switch backend {
	case "", BackendFile:
		return NewFileStore(filepath.Join(dataDir, DefaultSnapshotFile)), nil
	case BackendBadger:
		return OpenBadgerStore(filepath.Join(dataDir, "ip_cache.badger"))
	case BackendMemory:
		return nopStore{}, nil
	default:
		return nil, fmt.Errorf("cache: unknown backend %q", backend)
	}
}
