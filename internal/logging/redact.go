// VPNShield - VPN and Proxy Detection for Game Server Proxies
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vpnshield

package logging

import (
	"net/url"
)

// SanitizeToken masks a credential for logging, keeping the first and last
// four characters. Tokens of twelve characters or fewer are fully masked.
func SanitizeToken(token string) string {
	if token == "" {
		return ""
	}
	if len(token) <= 12 {
		return "***"
	}
	return token[:4] + "..." + token[len(token)-4:]
}

// SanitizeURL masks the query parameters that carry credentials. A URL that
// cannot be parsed is replaced entirely.
func SanitizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "[unparseable url]"
	}
	q := u.Query()
	changed := false
	for _, name := range []string{"key", "api_key", "token"} {
		if v := q.Get(name); v != "" {
			q.Set(name, SanitizeToken(v))
			changed = true
		}
	}
	if changed {
		u.RawQuery = q.Encode()
	}
	return u.String()
}
