// VPNShield - VPN and Proxy Detection for Game Server Proxies
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vpnshield

package vpn

import (
	"errors"
	"fmt"
	"net/netip"
	"strings"
	"time"
)

// ErrInvalidIP is returned by ParseIP for text that is not an IP address.
var ErrInvalidIP = errors.New("invalid IP address")

// ErrUnknownService is returned by ParseService for unrecognised names.
var ErrUnknownService = errors.New("unknown lookup service")

// Verdict is the answer of one lookup service.
type Verdict int

const (
	// VerdictIndeterminate means the service could not answer.
	VerdictIndeterminate Verdict = iota
	// VerdictClean means the address is not a VPN or proxy.
	VerdictClean
	// VerdictVPN means the address is a VPN or proxy exit node.
	VerdictVPN
)

// String returns the verdict name used in logs and metrics.
func (v Verdict) String() string {
	switch v {
	case VerdictVPN:
		return "vpn"
	case VerdictClean:
		return "clean"
	default:
		return "indeterminate"
	}
}

// Definite reports whether v is VerdictVPN or VerdictClean.
func (v Verdict) Definite() bool {
	return v == VerdictVPN || v == VerdictClean
}

// VerdictOf converts a confirmed boolean into a Verdict.
func VerdictOf(vpn bool) Verdict {
	if vpn {
		return VerdictVPN
	}
	return VerdictClean
}

// Service identifies a lookup service.
type Service int

const (
	ServiceProxyCheck Service = iota
	ServiceIPAPI
)

// String returns the service name used in logs, metrics and breaker names.
func (s Service) String() string {
	switch s {
	case ServiceProxyCheck:
		return "proxycheck"
	case ServiceIPAPI:
		return "ip-api"
	default:
		return fmt.Sprintf("service(%d)", int(s))
	}
}

// Other returns the service used as fallback for s.
func (s Service) Other() Service {
	if s == ServiceProxyCheck {
		return ServiceIPAPI
	}
	return ServiceProxyCheck
}

// ParseService accepts the service names used in configuration files.
func ParseService(name string) (Service, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "proxycheck", "proxycheck.io", "proxycheck-io":
		return ServiceProxyCheck, nil
	case "ip-api", "ipapi", "ip-api.com":
		return ServiceIPAPI, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownService, name)
	}
}

// Policy is the immutable settings snapshot read once per check.
type Policy struct {
	Primary            Service
	FallbackEnabled    bool
	AllowJoinOnFailure bool
	CacheEnabled       bool
	CacheTTL           time.Duration
	Debug              bool
	ProxyCheckAPIKey   string
}

// FailureVerdict is the boolean returned when no service answered.
func (p *Policy) FailureVerdict() bool {
	return !p.AllowJoinOnFailure
}

// DefaultPolicy mirrors the default configuration file.
func DefaultPolicy() *Policy {
	return &Policy{
		Primary:            ServiceProxyCheck,
		FallbackEnabled:    true,
		AllowJoinOnFailure: true,
		CacheEnabled:       true,
		CacheTTL:           12 * time.Hour,
	}
}

// PolicySource supplies the current policy snapshot.
type PolicySource interface {
	Policy() *Policy
}

// StaticPolicy is a PolicySource that never changes.
type StaticPolicy struct {
	P *Policy
}

// Policy returns the wrapped snapshot.
func (s StaticPolicy) Policy() *Policy {
	return s.P
}

// ParseIP validates and normalises a textual IP address.
func ParseIP(s string) (string, error) {
	addr, err := netip.ParseAddr(strings.TrimSpace(s))
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidIP, s)
	}
	return addr.Unmap().String(), nil
}
