// VPNShield - VPN and Proxy Detection for Game Server Proxies
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vpnshield

// Package validation provides struct validation using go-playground/validator v10.
//
// A single validator instance is shared by the configuration loader and the
// HTTP API. Field failures are collected into *Errors, which renders a
// combined message for logs and a field list for API responses.
//
// # Usage
//
//	type checkQuery struct {
//	    IP       string `validate:"required,ip"`
//	    Username string `validate:"omitempty,max=64"`
//	}
//
//	if verr := validation.ValidateStruct(&q); verr != nil {
//	    writeError(w, http.StatusBadRequest, verr.Code(), verr.Error(), verr.Fields)
//	}
//
// # Custom Tags
//
// Packages register their own tags with Register before first use, for
// example the configuration package registers "timeunit" for the
// cache-time-unit setting.
//
// # Thread Safety
//
// GetValidator and ValidateStruct are safe for concurrent use. Register must
// be called from init functions.
package validation
