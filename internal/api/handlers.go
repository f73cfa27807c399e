// VPNShield - VPN and Proxy Detection for Game Server Proxies
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vpnshield

package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/tomtom215/vpnshield/internal/logging"
	"github.com/tomtom215/vpnshield/internal/update"
	"github.com/tomtom215/vpnshield/internal/validation"
	"github.com/tomtom215/vpnshield/internal/vpn"
)

// DefaultCheckTimeout bounds how long /v1/check waits for a verdict.
const DefaultCheckTimeout = 10 * time.Second

// Submitter queues checks; *vpn.Pool implements it.
type Submitter interface {
	Submit(ctx context.Context, ip string) (*vpn.Pending, error)
}

// Mitigator counts admitted checks that ended in a VPN verdict; *vpn.Detector
// implements it.
type Mitigator interface {
	RecordMitigation()
	Mitigations() int64
}

// Whitelist is the address allow-list; *whitelist.List implements it.
type Whitelist interface {
	Contains(ip string) bool
	Add(ip string) (bool, error)
	Remove(ip string) (bool, error)
	IPs() []string
	Len() int
	Reload() error
}

// DetectionRecorder appends detections to the detection log.
type DetectionRecorder interface {
	Record(username, ip string) error
}

// CacheAdmin is the subset of the result cache the API manages.
type CacheAdmin interface {
	Clear()
	Len() int
}

// Reloader re-reads configuration; *config.Holder implements it.
type Reloader interface {
	Reload() error
}

// UpdateStatus reports the update checker's state.
type UpdateStatus interface {
	Status() update.Status
}

// Deps wires the handler's collaborators. Checks, Mitigator and Whitelist are
// required; the rest may be nil.
type Deps struct {
	Checks       Submitter
	Mitigator    Mitigator
	Whitelist    Whitelist
	Detections   DetectionRecorder
	Cache        CacheAdmin
	Config       Reloader
	Updates      UpdateStatus
	CheckTimeout time.Duration
}

// Handler serves the sidecar endpoints.
type Handler struct {
	deps    Deps
	logger  zerolog.Logger
	started time.Time
}

// NewHandler validates deps and builds a Handler.
func NewHandler(deps Deps, logger zerolog.Logger) (*Handler, error) {
	if deps.Checks == nil || deps.Mitigator == nil || deps.Whitelist == nil {
		return nil, errors.New("api: checks, mitigator and whitelist are required")
	}
	if deps.CheckTimeout <= 0 {
		deps.CheckTimeout = DefaultCheckTimeout
	}
	return &Handler{deps: deps, logger: logger, started: time.Now()}, nil
}

func (h *Handler) log(ctx context.Context) *zerolog.Logger {
	l := logging.WithContext(ctx, h.logger)
	return &l
}

type checkRequest struct {
	IP       string `validate:"required,ip"`
	Username string `validate:"omitempty,max=64"`
}

// CheckResponse is the data of a /v1/check response.
type CheckResponse struct {
	IP       string `json:"ip"`
	Username string `json:"username,omitempty"`
	VPN      bool   `json:"vpn"`
	Allowed  bool   `json:"allowed"`
	Source   string `json:"source"`
	Service  string `json:"service,omitempty"`
}

const (
	sourceWhitelist = "whitelist"
	sourceBypass    = "bypass"
)

// Check handles GET /v1/check.
func (h *Handler) Check(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := checkRequest{IP: q.Get("ip"), Username: q.Get("username")}
	if verrs := validation.ValidateStruct(&req); verrs != nil {
		respondValidation(w, r, verrs.Error(), verrs.Fields)
		return
	}
	bypass := false
	if raw := q.Get("bypass"); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			respondValidation(w, r, "bypass must be a boolean", nil)
			return
		}
		bypass = b
	}

	ip, err := vpn.ParseIP(req.IP)
	if err != nil {
		respondValidation(w, r, err.Error(), nil)
		return
	}
	resp := CheckResponse{IP: ip, Username: req.Username, Allowed: true}

	switch {
	case bypass:
		resp.Source = sourceBypass
		respondData(w, r, http.StatusOK, resp)
		return
	case h.deps.Whitelist.Contains(ip):
		resp.Source = sourceWhitelist
		respondData(w, r, http.StatusOK, resp)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.deps.CheckTimeout)
	defer cancel()

	pending, err := h.deps.Checks.Submit(ctx, ip)
	if err != nil {
		respondError(w, r, http.StatusServiceUnavailable, CodeUnavailable, "detector is shutting down", err)
		return
	}
	result, err := pending.WaitResult(ctx)
	if err != nil {
		respondError(w, r, http.StatusGatewayTimeout, CodeCheckTimeout, "check did not finish in time", err)
		return
	}

	resp.VPN = result.VPN
	resp.Allowed = !result.VPN
	resp.Source = string(result.Source)
	resp.Service = result.Service

	if result.VPN {
		h.deps.Mitigator.RecordMitigation()
		h.recordDetection(r.Context(), req.Username, ip)
	}
	respondData(w, r, http.StatusOK, resp)
}

func (h *Handler) recordDetection(ctx context.Context, username, ip string) {
	if h.deps.Detections == nil {
		return
	}
	if username == "" {
		username = "unknown"
	}
	if err := h.deps.Detections.Record(username, ip); err != nil {
		h.log(ctx).Warn().Err(err).Str("ip", ip).Msg("Failed to write detection log")
	}
}

// WhitelistResponse is the data of the whitelist endpoints.
type WhitelistResponse struct {
	IP      string   `json:"ip,omitempty"`
	Changed bool     `json:"changed"`
	Count   int      `json:"count"`
	IPs     []string `json:"ips,omitempty"`
}

// ListWhitelist handles GET /v1/whitelist.
func (h *Handler) ListWhitelist(w http.ResponseWriter, r *http.Request) {
	ips := h.deps.Whitelist.IPs()
	respondData(w, r, http.StatusOK, WhitelistResponse{Count: len(ips), IPs: ips})
}

// AddWhitelist handles POST /v1/whitelist/{ip}.
func (h *Handler) AddWhitelist(w http.ResponseWriter, r *http.Request) {
	ip, ok := h.pathIP(w, r)
	if !ok {
		return
	}
	added, err := h.deps.Whitelist.Add(ip)
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, CodeInternalError, "failed to update whitelist", err)
		return
	}
	status := http.StatusOK
	if added {
		status = http.StatusCreated
		h.log(r.Context()).Info().Str("ip", ip).Msg("Whitelisted address")
	}
	respondData(w, r, status, WhitelistResponse{IP: ip, Changed: added, Count: h.deps.Whitelist.Len()})
}

// RemoveWhitelist handles DELETE /v1/whitelist/{ip}.
func (h *Handler) RemoveWhitelist(w http.ResponseWriter, r *http.Request) {
	ip, ok := h.pathIP(w, r)
	if !ok {
		return
	}
	removed, err := h.deps.Whitelist.Remove(ip)
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, CodeInternalError, "failed to update whitelist", err)
		return
	}
	if !removed {
		respondError(w, r, http.StatusNotFound, CodeNotFound, "address is not whitelisted", nil)
		return
	}
	h.log(r.Context()).Info().Str("ip", ip).Msg("Removed address from whitelist")
	respondData(w, r, http.StatusOK, WhitelistResponse{IP: ip, Changed: true, Count: h.deps.Whitelist.Len()})
}

func (h *Handler) pathIP(w http.ResponseWriter, r *http.Request) (string, bool) {
	ip, err := vpn.ParseIP(chi.URLParam(r, "ip"))
	if err != nil {
		respondValidation(w, r, err.Error(), nil)
		return "", false
	}
	return ip, true
}

// Reload handles POST /v1/reload. The whitelist is reloaded even when the
// configuration fails to load.
func (h *Handler) Reload(w http.ResponseWriter, r *http.Request) {
	var errs []error
	if h.deps.Config != nil {
		if err := h.deps.Config.Reload(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := h.deps.Whitelist.Reload(); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		respondError(w, r, http.StatusInternalServerError, CodeReloadFailed, err.Error(), err)
		return
	}
	respondData(w, r, http.StatusOK, map[string]any{
		"reloaded":  true,
		"whitelist": h.deps.Whitelist.Len(),
	})
}

// ClearCache handles DELETE /v1/cache.
func (h *Handler) ClearCache(w http.ResponseWriter, r *http.Request) {
	if h.deps.Cache == nil {
		respondError(w, r, http.StatusNotFound, CodeNotFound, "cache is disabled", nil)
		return
	}
	n := h.deps.Cache.Len()
	h.deps.Cache.Clear()
	h.log(r.Context()).Info().Int("entries", n).Msg("Cache cleared")
	respondData(w, r, http.StatusOK, map[string]int{"cleared": n})
}

// HealthResponse is the data of /healthz.
type HealthResponse struct {
	Status      string         `json:"status"`
	Uptime      string         `json:"uptime"`
	Mitigations int64          `json:"mitigations"`
	CacheSize   int            `json:"cache_size"`
	Whitelisted int            `json:"whitelisted"`
	Update      *update.Status `json:"update,omitempty"`
}

// Health handles GET /healthz.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:      "ok",
		Uptime:      time.Since(h.started).Round(time.Second).String(),
		Mitigations: h.deps.Mitigator.Mitigations(),
		Whitelisted: h.deps.Whitelist.Len(),
	}
	if h.deps.Cache != nil {
		resp.CacheSize = h.deps.Cache.Len()
	}
	if h.deps.Updates != nil {
		st := h.deps.Updates.Status()
		resp.Update = &st
	}
	respondData(w, r, http.StatusOK, resp)
}
