// VPNShield - VPN and Proxy Detection for Game Server Proxies
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vpnshield

package services

import "context"

// Runner is a background loop that returns when ctx is canceled.
//
// Satisfied by *update.Checker.
type Runner interface {
	RunWithContext(ctx context.Context) error
}

// RunnerService wraps a Runner as a supervised service.
type RunnerService struct {
	runner Runner
	name   string
}

// NewRunnerService creates a wrapper named name.
func NewRunnerService(name string, runner Runner) *RunnerService {
	return &RunnerService{runner: runner, name: name}
}

// Serve implements suture.Service.
func (r *RunnerService) Serve(ctx context.Context) error {
	return r.runner.RunWithContext(ctx)
}

func (r *RunnerService) String() string {
	return r.name
}
