// VPNShield - VPN and Proxy Detection for Game Server Proxies
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vpnshield

// Package whitelist holds the IPs that skip VPN detection and the
// append-only detection log.
//
// The whitelist file has one IP per line. Blank lines and lines starting
// with '#' are ignored, and entries are matched in canonical form, so
// "2001:DB8::1" and "::ffff:192.0.2.5" behave like "2001:db8::1" and
// "192.0.2.5":
//
//	# staff
//	203.0.113.7
//	2001:db8::42
package whitelist

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/netip"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// DefaultFile is the whitelist file name inside the data directory.
const DefaultFile = "whitelist.txt"

type ipSet map[string]struct{}

// List is a file-backed IP set. Reads are lock free; writes are
// serialized and go to disk before the in-memory set changes.
type List struct {
	path   string
	logger zerolog.Logger

	mu  sync.Mutex
	set atomic.Pointer[ipSet]
}

// Open loads the whitelist at path, creating an empty file if it does not exist.
func Open(path string, logger zerolog.Logger) (*List, error) {
	l := &List{path: path, logger: logger}
	if err := l.Reload(); err != nil {
		return nil, err
	}
	return l, nil
}

// Path returns the backing file.
func (l *List) Path() string {
	return l.path
}

// Contains reports whether ip is whitelisted. Any textual form of the
// address matches, so "2001:DB8::1" finds "2001:db8::1".
func (l *List) Contains(ip string) bool {
	key, ok := canonical(ip)
	if !ok {
		return false
	}
	_, ok = (*l.set.Load())[key]
	return ok
}

// Len returns the number of whitelisted IPs.
func (l *List) Len() int {
	return len(*l.set.Load())
}

// IPs returns the whitelisted IPs in sorted order.
func (l *List) IPs() []string {
	set := *l.set.Load()
	out := make([]string, 0, len(set))
	for ip := range set {
		out = append(out, ip)
	}
	slices.Sort(out)
	return out
}

// Reload reads the file again, replacing the in-memory set.
func (l *List) Reload() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.Open(l.path)
	if errors.Is(err, fs.ErrNotExist) {
		if err := l.create(); err != nil {
			return err
		}
		empty := ipSet{}
		l.set.Store(&empty)
		return nil
	}
	if err != nil {
		return fmt.Errorf("open whitelist: %w", err)
	}
	defer f.Close()

	set, err := parse(f, l.logger)
	if err != nil {
		return fmt.Errorf("read whitelist %s: %w", l.path, err)
	}
	l.set.Store(&set)
	l.logger.Debug().Str("path", l.path).Int("entries", len(set)).Msg("Whitelist loaded")
	return nil
}

// Add appends ip to the file in canonical form. It reports false when ip
// was already listed.
func (l *List) Add(raw string) (bool, error) {
	ip, ok := canonical(raw)
	if !ok {
		return false, fmt.Errorf("whitelist: invalid ip %q", raw)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	cur := *l.set.Load()
	if _, ok := cur[ip]; ok {
		return false, nil
	}

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return false, fmt.Errorf("open whitelist: %w", err)
	}
	line := ip + "\n"
	if missingNewline(f) {
		line = "\n" + line
	}
	if _, err := f.WriteString(line); err != nil {
		f.Close()
		return false, fmt.Errorf("append whitelist: %w", err)
	}
	if err := f.Close(); err != nil {
		return false, fmt.Errorf("close whitelist: %w", err)
	}

	next := make(ipSet, len(cur)+1)
	for k := range cur {
		next[k] = struct{}{}
	}
	next[ip] = struct{}{}
	l.set.Store(&next)
	return true, nil
}

// Remove rewrites the file without ip. Comments and other lines are kept.
// It reports false when ip was not listed.
func (l *List) Remove(raw string) (bool, error) {
	ip, ok := canonical(raw)
	if !ok {
		return false, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	cur := *l.set.Load()
	if _, ok := cur[ip]; !ok {
		return false, nil
	}

	data, err := os.ReadFile(l.path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return false, fmt.Errorf("read whitelist: %w", err)
	}

	var b strings.Builder
	for _, line := range strings.Split(string(data), "\n") {
		if line == "" {
			continue
		}
		if key, ok := canonical(line); ok && key == ip {
			continue
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	if err := l.replace([]byte(b.String())); err != nil {
		return false, err
	}

	next := make(ipSet, len(cur))
	for k := range cur {
		if k != ip {
			next[k] = struct{}{}
		}
	}
	l.set.Store(&next)
	return true, nil
}

func (l *List) create() error {
	if dir := filepath.Dir(l.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create whitelist dir: %w", err)
		}
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("create whitelist: %w", err)
	}
	l.logger.Info().Str("path", l.path).Msg("Created empty whitelist")
	return f.Close()
}

// replace writes data to a temporary file in the same directory and
// renames it over the whitelist.
func (l *List) replace(data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(l.path), ".whitelist-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp whitelist: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp whitelist: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp whitelist: %w", err)
	}
	if err := os.Rename(tmpName, l.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace whitelist: %w", err)
	}
	return nil
}

// missingNewline reports whether a hand-edited file lacks a trailing newline.
func missingNewline(f *os.File) bool {
	info, err := f.Stat()
	if err != nil || info.Size() == 0 {
		return false
	}
	last := make([]byte, 1)
	if _, err := f.ReadAt(last, info.Size()-1); err != nil {
		return false
	}
	return last[0] != '\n'
}

// canonical returns the normalized text of an address: lower-case IPv6,
// IPv4-mapped IPv6 unmapped to IPv4.
func canonical(s string) (string, bool) {
	addr, err := netip.ParseAddr(strings.TrimSpace(s))
	if err != nil {
		return "", false
	}
	return addr.Unmap().String(), true
}

func parse(r io.Reader, logger zerolog.Logger) (ipSet, error) {
	set := ipSet{}
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, ok := canonical(line)
		if !ok {
			logger.Warn().Int("line", lineNo).Str("entry", line).Msg("Skipping invalid whitelist entry")
			continue
		}
		set[key] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return set, nil
}
