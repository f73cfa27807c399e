// VPNShield - VPN and Proxy Detection for Game Server Proxies
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vpnshield

package cache

import (
	"sync"
)

// asyncWriter runs flush on a background goroutine. Notifications that arrive
// while a flush is pending collapse into that flush.
type asyncWriter struct {
	flush   func()
	pending chan struct{}
	stopCh  chan struct{}
	once    sync.Once
	wg      sync.WaitGroup
}

func newAsyncWriter(flush func()) *asyncWriter {
	w := &asyncWriter{
		flush:   flush,
		pending: make(chan struct{}, 1),
		stopCh:  make(chan struct{}),
	}
	w.wg.Add(1)
	go w.run()
	return w
}

func (w *asyncWriter) notify() {
	select {
	case w.pending <- struct{}{}:
	default:
	}
}

func (w *asyncWriter) run() {
	defer w.wg.Done()
	for {
		select {
		case <-w.stopCh:
			return
		case <-w.pending:
			w.flush()
		}
	}
}

// stop waits for an in-flight flush. The caller writes the final snapshot.
func (w *asyncWriter) stop() {
	w.once.Do(func() {
		close(w.stopCh)
		w.wg.Wait()
	})
}
