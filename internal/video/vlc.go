// ALN Orchestrator
// Copyright 2026 ALN Orchestrator Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/maxepunk/aln-orchestrator

package video

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/maxepunk/aln-orchestrator/internal/config"
)

// VLCStatus is the subset of VLC's /requests/status.json response the
// Video Queue cares about for reconciliation.
type VLCStatus struct {
	State    string  `json:"state"` // "playing", "paused", "stopped"
	Position float64 `json:"position"`
	Length   int     `json:"length"` // seconds
}

// VLCClient drives VLC's HTTP control interface. It is the single
// point every outbound call to the display passes through, so it is
// the natural place to wrap the circuit breaker: a dead VLC trips it
// open instead of pinning every scan behind a timeout.
type VLCClient struct {
	baseURL string
	auth    string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[interface{}]
}

// BreakerConfig holds circuit breaker tuning for the VLC client.
type BreakerConfig struct {
	Name             string
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold uint32
}

// DefaultBreakerConfig returns production defaults for the VLC
// circuit breaker: five consecutive failures opens it, it stays open
// ten seconds before allowing a half-open probe.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Name:             "vlc",
		MaxRequests:      1,
		Interval:         30 * time.Second,
		Timeout:          10 * time.Second,
		FailureThreshold: 5,
	}
}

func newBreaker(cfg BreakerConfig) *gobreaker.CircuitBreaker[interface{}] {
	return gobreaker.NewCircuitBreaker[interface{}](gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
	})
}

// NewVLCClient constructs a client for the VLC HTTP control interface
// at cfg.Host:cfg.Port, authenticated with cfg.Password (VLC's
// web-interface scheme is username-less, password-only Basic auth).
func NewVLCClient(cfg config.VLCConfig, breaker BreakerConfig) *VLCClient {
	return &VLCClient{
		baseURL: fmt.Sprintf("http://%s:%d/requests", cfg.Host, cfg.Port),
		auth:    cfg.Password,
		http:    &http.Client{Timeout: cfg.RequestTimeout},
		breaker: newBreaker(breaker),
	}
}

// BreakerState reports the current circuit breaker state for metrics
// and the GameState.systemStatus.vlc projection.
func (c *VLCClient) BreakerState() string {
	return c.breaker.State().String()
}

func (c *VLCClient) do(ctx context.Context, command string, params url.Values) (*VLCStatus, error) {
	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.doRequest(ctx, command, params)
	})
	if err != nil {
		return nil, err
	}
	return result.(*VLCStatus), nil
}

func (c *VLCClient) doRequest(ctx context.Context, command string, params url.Values) (*VLCStatus, error) {
	u := c.baseURL + "/status.json"
	if command != "" {
		if params == nil {
			params = url.Values{}
		}
		params.Set("command", command)
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("vlc: build request: %w", err)
	}
	req.SetBasicAuth("", c.auth)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("vlc: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("vlc: unexpected status %d", resp.StatusCode)
	}

	var status VLCStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("vlc: decode status: %w", err)
	}
	return &status, nil
}

// Play issues an in_play command for filename and returns VLC's
// status immediately after.
func (c *VLCClient) Play(ctx context.Context, filename string) (*VLCStatus, error) {
	params := url.Values{"input": {filename}}
	return c.do(ctx, "in_play", params)
}

// Pause toggles playback.
func (c *VLCClient) Pause(ctx context.Context) (*VLCStatus, error) {
	return c.do(ctx, "pl_pause", nil)
}

// Resume is an alias for Pause: VLC's pl_pause command toggles state,
// so resuming a paused item issues the identical command.
func (c *VLCClient) Resume(ctx context.Context) (*VLCStatus, error) {
	return c.do(ctx, "pl_pause", nil)
}

// Stop halts playback entirely (used by skip/clear).
func (c *VLCClient) Stop(ctx context.Context) (*VLCStatus, error) {
	return c.do(ctx, "pl_stop", nil)
}

// Status polls current VLC state without issuing a command.
func (c *VLCClient) Status(ctx context.Context) (*VLCStatus, error) {
	return c.do(ctx, "", nil)
}
