// VPNShield - VPN and Proxy Detection for Game Server Proxies
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vpnshield

package config

import (
	"errors"

	"github.com/go-playground/validator/v10"

	"github.com/tomtom215/vpnshield/internal/validation"
)

func init() {
	validation.Register("timeunit", func(fl validator.FieldLevel) bool {
		_, err := ParseTimeUnit(fl.Field().String())
		return err == nil
	}, "%s must be one of seconds, minutes, hours, days")
}

// Validate checks field constraints and the rules that span several fields.
func (c *Config) Validate() error {
	var errs []error

	if verr := validation.ValidateStruct(c); verr != nil {
		errs = append(errs, verr)
	}

	if c.Update.Enabled && c.Update.URL == "" {
		errs = append(errs, errors.New("update.url is required when update.enabled=true"))
	}

	return errors.Join(errs...)
}
