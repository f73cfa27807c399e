// VPNShield - VPN and Proxy Detection for Game Server Proxies
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vpnshield

package whitelist

import (
	"fmt"
	"os"
	"sync"
	"time"
)

// DefaultLogFile is the detection log file name inside the data directory.
const DefaultLogFile = "log.txt"

const logTimeLayout = "2006-01-02 15:04:05"

// DetectionLog appends one line per denied connection:
//
//	[2026-03-01 18:04:11] VPN detected - Username: steve, IP: 203.0.113.9
type DetectionLog struct {
	path string
	now  func() time.Time

	mu sync.Mutex
}

// NewDetectionLog writes to path. The file is created on first use.
func NewDetectionLog(path string) *DetectionLog {
	return &DetectionLog{path: path, now: time.Now}
}

// Path returns the log file.
func (d *DetectionLog) Path() string {
	return d.path
}

// Record appends a detection line for username and ip.
func (d *DetectionLog) Record(username, ip string) error {
	line := fmt.Sprintf("[%s] VPN detected - Username: %s, IP: %s\n",
		d.now().Format(logTimeLayout), username, ip)

	d.mu.Lock()
	defer d.mu.Unlock()

	f, err := os.OpenFile(d.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open detection log: %w", err)
	}
	if _, err := f.WriteString(line); err != nil {
		f.Close()
		return fmt.Errorf("write detection log: %w", err)
	}
	return f.Close()
}
