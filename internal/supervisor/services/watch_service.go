// VPNShield - VPN and Proxy Detection for Game Server Proxies
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vpnshield

package services

import (
	"context"
	"fmt"
)

// Watcher starts a callback-driven watcher and returns its stop function.
//
// Satisfied by *config.Holder.
type Watcher interface {
	Watch() (stop func(), err error)
}

// WatchService keeps a Watcher running for the lifetime of the service.
type WatchService struct {
	watcher Watcher
	name    string
}

// NewWatchService creates a wrapper named name.
func NewWatchService(name string, watcher Watcher) *WatchService {
	return &WatchService{watcher: watcher, name: name}
}

// Serve implements suture.Service.
func (w *WatchService) Serve(ctx context.Context) error {
	stop, err := w.watcher.Watch()
	if err != nil {
		return fmt.Errorf("%s: %w", w.name, err)
	}
	defer stop()

	<-ctx.Done()
	return ctx.Err()
}

func (w *WatchService) String() string {
	return w.name
}
