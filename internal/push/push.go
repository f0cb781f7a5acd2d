// Tasklane - Realtime Notifications for Team Task Management
// Copyright 2026 Tasklane contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tasklane/tasklane

// Package push delivers a mobile push when a recipient has no live
// socket. The gateway is an external service, so calls go through a
// rate limiter and a circuit breaker; a rejected or failed push is
// logged and counted, never retried. Socket delivery stays the primary
// channel.
package push

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/tasklane/tasklane/internal/config"
	"github.com/tasklane/tasklane/internal/logging"
	"github.com/tasklane/tasklane/internal/metrics"
	"github.com/tasklane/tasklane/internal/notify"
)

// ErrRateLimited is returned when the local limiter rejects a push.
var ErrRateLimited = errors.New("push rate limit exceeded")

// payload is the gateway request body.
type payload struct {
	UserID  string `json:"user_id"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
	TaskID  string `json:"task_id,omitempty"`
}

// Sender posts notifications to the push gateway.
//
// DETERMINISM NOTE: The circuit breaker uses real time (via
// sony/gobreaker) for its interval and timeout calculations. Tests
// exercise the HTTP and limiter paths with a relaxed breaker rather
// than mocking time.
type Sender struct {
	cfg     config.PushConfig
	client  *http.Client
	cb      *gobreaker.CircuitBreaker[struct{}]
	limiter *rate.Limiter
	name    string
}

// NewSender creates a push sender. Circuit breaker configuration:
// - Max 3 concurrent requests in half-open state
// - 1 minute measurement window
// - 30 second timeout before attempting recovery
// - Opens after 60% failure rate with minimum 10 requests
func NewSender(cfg config.PushConfig) *Sender {
	cbName := "push-gateway"
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	cb := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        cbName,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("push gateway circuit state transition")
		},
	})

	ratePerSecond := cfg.RatePerSecond
	if ratePerSecond <= 0 {
		ratePerSecond = 20
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 40
	}

	return &Sender{
		cfg:     cfg,
		client:  &http.Client{Timeout: timeout},
		cb:      cb,
		limiter: rate.NewLimiter(rate.Limit(ratePerSecond), burst),
		name:    cbName,
	}
}

// Enabled reports whether the sender is configured to do anything.
func (s *Sender) Enabled() bool {
	return s.cfg.Enabled && s.cfg.GatewayURL != ""
}

// Send posts one notification to the gateway. Disabled senders return
// nil so callers can invoke unconditionally.
func (s *Sender) Send(ctx context.Context, userID string, n notify.Notification) error {
	if !s.Enabled() {
		return nil
	}
	if !s.limiter.Allow() {
		metrics.PushErrors.WithLabelValues("rate_limited").Inc()
		return ErrRateLimited
	}

	_, err := s.cb.Execute(func() (struct{}, error) {
		return struct{}{}, s.post(ctx, userID, n)
	})
	if err != nil {
		switch {
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			metrics.PushErrors.WithLabelValues("circuit_open").Inc()
		default:
			metrics.PushErrors.WithLabelValues("gateway").Inc()
		}
		logging.Warn().Err(err).Str("user_id", userID).Msg("push delivery failed")
		return err
	}

	metrics.PushFallbacks.Inc()
	return nil
}

func (s *Sender) post(ctx context.Context, userID string, n notify.Notification) error {
	body, err := json.Marshal(payload{
		UserID:  userID,
		Kind:    string(n.Kind),
		Message: n.Message,
		TaskID:  n.TaskID,
	})
	if err != nil {
		return fmt.Errorf("marshal push payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.GatewayURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("post push: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("push gateway returned %d", resp.StatusCode)
	}
	return nil
}
