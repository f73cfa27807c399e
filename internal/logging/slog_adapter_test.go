// VPNShield - VPN and Proxy Detection for Game Server Proxies
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vpnshield

package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestSlogHandler_Levels(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		level slog.Level
		want  string
	}{
		{"debug", slog.LevelDebug, `"level":"debug"`},
		{"info", slog.LevelInfo, `"level":"info"`},
		{"warn", slog.LevelWarn, `"level":"warn"`},
		{"error", slog.LevelError, `"level":"error"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var buf bytes.Buffer
			handler := NewSlogHandler(zerolog.New(&buf).Level(zerolog.TraceLevel))
			record := slog.NewRecord(time.Now(), tt.level, "event", 0)
			if err := handler.Handle(context.Background(), record); err != nil {
				t.Fatalf("Handle() error = %v", err)
			}
			if !strings.Contains(buf.String(), tt.want) {
				t.Errorf("expected %s in output, got: %s", tt.want, buf.String())
			}
		})
	}
}

func TestSlogHandler_AttrsAndGroups(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(NewSlogHandler(zerolog.New(&buf))).
		With("service", "detector").
		WithGroup("suture")

	logger.Info("restart",
		"attempt", 3,
		"backoff", 2*time.Second,
		"ok", false,
		"err", errors.New("boom"),
		slog.Group("child", "name", "http-api"),
	)

	out := buf.String()
	for _, want := range []string{
		`"service":"detector"`,
		`"suture.attempt":3`,
		`"suture.ok":false`,
		`"suture.err":"boom"`,
		`"suture.child.name":"http-api"`,
		`"message":"restart"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %s in output, got: %s", want, out)
		}
	}
}

func TestSlogHandler_Enabled(t *testing.T) {
	t.Parallel()

	handler := NewSlogHandler(zerolog.New(&bytes.Buffer{}).Level(zerolog.WarnLevel))
	if handler.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("expected info disabled on warn logger")
	}
	if !handler.Enabled(context.Background(), slog.LevelError) {
		t.Error("expected error enabled on warn logger")
	}
}

func TestSlogHandler_WithGroupEmpty(t *testing.T) {
	t.Parallel()

	h := NewSlogHandler(zerolog.New(&bytes.Buffer{}))
	if h.WithGroup("") != h {
		t.Error("expected WithGroup(\"\") to return the same handler")
	}
}
