// VPNShield - VPN and Proxy Detection for Game Server Proxies
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vpnshield

package vpn

import (
	"context"
	"fmt"
	"net/url"

	"github.com/goccy/go-json"
)

// DefaultProxyCheckURL is the proxycheck.io API base.
const DefaultProxyCheckURL = "https://proxycheck.io"

// ProxyCheck queries proxycheck.io:
//
//	GET {base}/v2/{ip}?key={key}&vpn=1
//	{"status":"ok","203.0.113.7":{"proxy":"yes","type":"VPN"}}
//
// The verdict is VPN iff status is "ok" and {ip}.proxy is "yes".
type ProxyCheck struct {
	httpLookup
}

// NewProxyCheck creates a proxycheck.io client.
func NewProxyCheck(cfg ClientConfig) *ProxyCheck {
	return &ProxyCheck{httpLookup: newHTTPLookup(ServiceProxyCheck, DefaultProxyCheckURL, cfg)}
}

// Lookup asks proxycheck.io about ip using the API key from policy.
func (p *ProxyCheck) Lookup(ctx context.Context, ip string, policy *Policy) Verdict {
	key := ""
	if policy != nil {
		key = policy.ProxyCheckAPIKey
	}
	return p.run(ctx, ip, policy, func() (Verdict, error) {
		body, err := p.get(ctx, p.url(ip, key))
		if err != nil {
			return VerdictIndeterminate, err
		}
		return parseProxyCheck(body, ip)
	})
}

func (p *ProxyCheck) url(ip, key string) string {
	q := url.Values{}
	q.Set("key", key)
	q.Set("vpn", "1")
	return fmt.Sprintf("%s/v2/%s?%s", p.baseURL, url.PathEscape(ip), q.Encode())
}

type proxyCheckAddress struct {
	Proxy *string `json:"proxy"`
	Type  string  `json:"type"`
}

func parseProxyCheck(body []byte, ip string) (Verdict, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(body, &doc); err != nil {
		return VerdictIndeterminate, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	rawStatus, ok := doc["status"]
	if !ok {
		return VerdictIndeterminate, fmt.Errorf("%w: status", ErrMissingField)
	}
	var status string
	if err := json.Unmarshal(rawStatus, &status); err != nil {
		return VerdictIndeterminate, fmt.Errorf("%w: status: %v", ErrMalformed, err)
	}
	if status != "ok" {
		return VerdictIndeterminate, fmt.Errorf("%w: status %q", ErrServiceStatus, status)
	}

	rawAddr, ok := doc[ip]
	if !ok {
		return VerdictIndeterminate, fmt.Errorf("%w: %s", ErrMissingField, ip)
	}
	var addr proxyCheckAddress
	if err := json.Unmarshal(rawAddr, &addr); err != nil {
		return VerdictIndeterminate, fmt.Errorf("%w: %s: %v", ErrMalformed, ip, err)
	}
	if addr.Proxy == nil {
		return VerdictIndeterminate, fmt.Errorf("%w: %s.proxy", ErrMissingField, ip)
	}
	return VerdictOf(*addr.Proxy == "yes"), nil
}
