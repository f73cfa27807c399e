// VPNShield - VPN and Proxy Detection for Game Server Proxies
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vpnshield

/*
Package api provides the HTTP sidecar for VPNShield.

A game server proxy that cannot embed the detector directly asks the sidecar
for a verdict over loopback HTTP. Whitelisted addresses and players holding
the bypass permission skip detection entirely; every other address goes
through the worker pool and the detection pipeline.

Endpoints:

	GET    /v1/check?ip=&username=&bypass=   verdict for one address
	GET    /v1/whitelist                     whitelisted addresses
	POST   /v1/whitelist/{ip}                add an address to the whitelist
	DELETE /v1/whitelist/{ip}                remove an address from the whitelist
	POST   /v1/reload                        re-read configuration and whitelist
	DELETE /v1/cache                         drop every cached verdict
	GET    /healthz                          liveness and counters
	GET    /metrics                          Prometheus metrics

Every JSON body uses the same envelope:

	{"status":"success","data":{...},"metadata":{"timestamp":"...","request_id":"..."}}
	{"status":"error","error":{"code":"...","message":"..."},"metadata":{...}}

Middleware order: request ID and logging context, real IP, panic recovery,
request metrics, CORS, then a per-client rate limit (go-chi/httprate).
*/
package api
