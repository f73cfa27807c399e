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

// DefaultIPAPIURL is the ip-api.com base. The free tier is HTTP only.
const DefaultIPAPIURL = "http://ip-api.com"

// IPAPI queries ip-api.com:
//
//	GET {base}/json/{ip}?fields=status,isp,org,proxy,query
//	{"status":"success","isp":"...","org":"...","proxy":true,"query":"203.0.113.7"}
//
// The verdict is VPN iff status is "success" and proxy is true.
type IPAPI struct {
	httpLookup
}

// NewIPAPI creates an ip-api.com client.
func NewIPAPI(cfg ClientConfig) *IPAPI {
	return &IPAPI{httpLookup: newHTTPLookup(ServiceIPAPI, DefaultIPAPIURL, cfg)}
}

// Lookup asks ip-api.com about ip.
func (c *IPAPI) Lookup(ctx context.Context, ip string, policy *Policy) Verdict {
	return c.run(ctx, ip, policy, func() (Verdict, error) {
		body, err := c.get(ctx, c.url(ip))
		if err != nil {
			return VerdictIndeterminate, err
		}
		return parseIPAPI(body)
	})
}

func (c *IPAPI) url(ip string) string {
	return fmt.Sprintf("%s/json/%s?fields=status,isp,org,proxy,query", c.baseURL, url.PathEscape(ip))
}

type ipAPIResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	ISP     string `json:"isp"`
	Org     string `json:"org"`
	Proxy   *bool  `json:"proxy"`
	Query   string `json:"query"`
}

func parseIPAPI(body []byte) (Verdict, error) {
	var resp ipAPIResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return VerdictIndeterminate, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if resp.Status == "" {
		return VerdictIndeterminate, fmt.Errorf("%w: status", ErrMissingField)
	}
	if resp.Status != "success" {
		return VerdictIndeterminate, fmt.Errorf("%w: status %q: %s", ErrServiceStatus, resp.Status, resp.Message)
	}
	if resp.Proxy == nil {
		return VerdictIndeterminate, fmt.Errorf("%w: proxy", ErrMissingField)
	}
	return VerdictOf(*resp.Proxy), nil
}
