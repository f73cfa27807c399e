// VPNShield - VPN and Proxy Detection for Game Server Proxies
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vpnshield

package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	if cfg.Level != "info" {
		t.Errorf("expected default level 'info', got '%s'", cfg.Level)
	}
	if cfg.Format != "json" {
		t.Errorf("expected default format 'json', got '%s'", cfg.Format)
	}
	if cfg.Output == nil {
		t.Error("expected default output to be set")
	}
}

// TestInit reconfigures the global logger and must not run in parallel.
func TestInit(t *testing.T) {
	prev := Logger()
	prevLevel := zerolog.GlobalLevel()
	t.Cleanup(func() {
		SetLogger(prev)
		zerolog.SetGlobalLevel(prevLevel)
	})

	var buf bytes.Buffer
	Init(Config{Level: "debug", Format: "json", Output: &buf})

	Info().Str("ip", "203.0.113.7").Msg("test message")
	Debug().Msg("debug message")

	output := buf.String()
	if !strings.Contains(output, "test message") {
		t.Errorf("expected output to contain 'test message', got: %s", output)
	}
	if !strings.Contains(output, `"ip":"203.0.113.7"`) {
		t.Errorf("expected ip field, got: %s", output)
	}
	if !strings.Contains(output, "debug message") {
		t.Errorf("expected debug output at debug level, got: %s", output)
	}
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input    string
		expected zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"debug", zerolog.DebugLevel},
		{"INFO", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"fatal", zerolog.FatalLevel},
		{"disabled", zerolog.Disabled},
		{" debug ", zerolog.DebugLevel},
		{"", zerolog.InfoLevel},
		{"bogus", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()
			if got := ParseLevel(tt.input); got != tt.expected {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestDiag(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	l := zerolog.New(&buf).Level(zerolog.InfoLevel)

	Diag(&l, false).Msg("hidden")
	if buf.Len() != 0 {
		t.Errorf("expected debug diagnostic to be suppressed at info level, got: %s", buf.String())
	}

	Diag(&l, true).Msg("shown")
	if !strings.Contains(buf.String(), `"level":"info"`) {
		t.Errorf("expected verbose diagnostic at info level, got: %s", buf.String())
	}
}

func TestSanitizeToken(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		token string
		want  string
	}{
		{"empty", "", ""},
		{"short", "abc123", "***"},
		{"twelve", "abcdefghijkl", "***"},
		{"long", "111111-222222-333333-444444", "1111...4444"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := SanitizeToken(tt.token); got != tt.want {
				t.Errorf("SanitizeToken(%q) = %q, want %q", tt.token, got, tt.want)
			}
		})
	}
}

func TestSanitizeURL(t *testing.T) {
	t.Parallel()

	got := SanitizeURL("https://proxycheck.io/v2/1.2.3.4?key=111111-222222-333333-444444&vpn=1")
	if strings.Contains(got, "222222") {
		t.Errorf("expected key to be masked, got %s", got)
	}
	if !strings.Contains(got, "vpn=1") {
		t.Errorf("expected other parameters to survive, got %s", got)
	}

	plain := "http://ip-api.com/json/1.2.3.4?fields=status"
	if got := SanitizeURL(plain); got != plain {
		t.Errorf("expected URL without credentials unchanged, got %s", got)
	}
}
