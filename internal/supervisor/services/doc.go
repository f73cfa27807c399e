// VPNShield - VPN and Proxy Detection for Game Server Proxies
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vpnshield

// Package services adapts VPNShield components to suture.Service.
//
// Each wrapper depends on a small interface rather than the concrete
// component, so the supervisor package never imports the detection
// pipeline:
//
//	HTTPServerService  ListenAndServe/Shutdown servers, rebuilt on restart
//	RunnerService      anything with RunWithContext (update checker)
//	WatchService       anything with Watch (config file watcher)
package services
