// VPNShield - VPN and Proxy Detection for Game Server Proxies
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vpnshield

package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// DefaultShutdownTimeout bounds graceful HTTP shutdown.
const DefaultShutdownTimeout = 5 * time.Second

// errServerStopped is returned when the server exits without a shutdown request.
var errServerStopped = errors.New("http server stopped unexpectedly")

// HTTPServer matches the *http.Server lifecycle methods.
type HTTPServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// HTTPServerService runs an HTTP server as a supervised service.
//
// An *http.Server cannot be reused once shut down, so the service holds a
// constructor and builds a fresh server for every Serve call. A supervisor
// restart therefore gets a working listener.
//
//	svc := services.NewHTTPServerService(func() services.HTTPServer {
//	    return &http.Server{Addr: addr, Handler: router}
//	}, 5*time.Second, logger)
//	tree.AddAPIService(svc)
type HTTPServerService struct {
	newServer       func() HTTPServer
	shutdownTimeout time.Duration
	name            string
	logger          zerolog.Logger
}

// NewHTTPServerService creates the wrapper. A non-positive shutdownTimeout
// uses DefaultShutdownTimeout.
func NewHTTPServerService(newServer func() HTTPServer, shutdownTimeout time.Duration, logger zerolog.Logger) *HTTPServerService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = DefaultShutdownTimeout
	}
	return &HTTPServerService{
		newServer:       newServer,
		shutdownTimeout: shutdownTimeout,
		name:            "http-server",
		logger:          logger,
	}
}

// Serve implements suture.Service. It returns ctx.Err() after a graceful
// shutdown and an error when the server fails or exits on its own.
func (h *HTTPServerService) Serve(ctx context.Context) error {
	server := h.newServer()
	if s, ok := server.(*http.Server); ok {
		h.logger.Info().Str("addr", s.Addr).Msg("HTTP server listening")
	}

	errCh := make(chan error, 1)
	go func() {
		err := server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errCh <- err
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return errServerStopped

	case <-ctx.Done():
		// The parent context is already canceled.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), h.shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown failed: %w", err)
		}
		<-errCh
		h.logger.Info().Msg("HTTP server stopped")
		return ctx.Err()
	}
}

// String implements fmt.Stringer. Suture uses it in log messages.
func (h *HTTPServerService) String() string {
	return h.name
}
