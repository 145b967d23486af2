package instrumentation

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the metric instruments recorded by the authorization server
type Metrics struct {
	AuthorizationStarted   metric.Int64Counter
	AuthorizationCompleted metric.Int64Counter
	TokensIssued           metric.Int64Counter
	RequestsRejected       metric.Int64Counter
	PKCEValidationFailed   metric.Int64Counter
	CodeReuseDetected      metric.Int64Counter
	TokenReuseDetected     metric.Int64Counter
	RateLimitExceeded      metric.Int64Counter
}

func newMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
		unit string
	}{
		{&m.AuthorizationStarted, "oauth.authorization.started", "Number of authorization requests validated", "{flow}"},
		{&m.AuthorizationCompleted, "oauth.authorization.completed", "Number of authorization requests completed", "{flow}"},
		{&m.TokensIssued, "oauth.token.issued", "Number of access tokens issued", "{token}"},
		{&m.RequestsRejected, "oauth.request.rejected", "Number of requests rejected with a protocol error", "{request}"},
		{&m.PKCEValidationFailed, "oauth.pkce.validation_failed", "Number of failed PKCE verifications", "{failure}"},
		{&m.CodeReuseDetected, "oauth.code.reuse_detected", "Number of authorization code replays", "{event}"},
		{&m.TokenReuseDetected, "oauth.token.reuse_detected", "Number of refresh token replays", "{event}"},
		{&m.RateLimitExceeded, "oauth.rate_limit.exceeded", "Number of requests rejected by the rate limiter", "{request}"},
	}
	for _, c := range counters {
		*c.dst, err = meter.Int64Counter(c.name, metric.WithDescription(c.desc), metric.WithUnit(c.unit))
		if err != nil {
			return nil, fmt.Errorf("failed to create %s counter: %w", c.name, err)
		}
	}
	return m, nil
}

// RecordAuthorizationStarted records a validated authorization request
func (m *Metrics) RecordAuthorizationStarted(ctx context.Context, grant string) {
	if m == nil {
		return
	}
	m.AuthorizationStarted.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrGrantType, grant)))
}

// RecordAuthorizationCompleted records a completed authorization request and its outcome
func (m *Metrics) RecordAuthorizationCompleted(ctx context.Context, grant string, approved bool) {
	if m == nil {
		return
	}
	m.AuthorizationCompleted.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrGrantType, grant),
		attribute.Bool(AttrApproved, approved),
	))
}

// RecordTokenIssued records an issued access token
func (m *Metrics) RecordTokenIssued(ctx context.Context, grant string, withRefresh bool) {
	if m == nil {
		return
	}
	m.TokensIssued.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrGrantType, grant),
		attribute.Bool(AttrRefreshIssued, withRefresh),
	))
}

// RecordRejected records a protocol error surfaced to the client
func (m *Metrics) RecordRejected(ctx context.Context, grant, code string) {
	if m == nil {
		return
	}
	m.RequestsRejected.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrGrantType, grant),
		attribute.String(AttrError, code),
	))
}

// RecordPKCEFailure records a failed PKCE verification
func (m *Metrics) RecordPKCEFailure(ctx context.Context, method string) {
	if m == nil {
		return
	}
	m.PKCEValidationFailed.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrPKCEMethod, method)))
}

// RecordCodeReuse records a replayed authorization code
func (m *Metrics) RecordCodeReuse(ctx context.Context) {
	if m == nil {
		return
	}
	m.CodeReuseDetected.Add(ctx, 1)
}

// RecordTokenReuse records a replayed refresh token
func (m *Metrics) RecordTokenReuse(ctx context.Context) {
	if m == nil {
		return
	}
	m.TokenReuseDetected.Add(ctx, 1)
}

// RecordRateLimitExceeded records a request rejected by the limiter
func (m *Metrics) RecordRateLimitExceeded(ctx context.Context, endpoint string) {
	if m == nil {
		return
	}
	m.RateLimitExceeded.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrHTTPEndpoint, endpoint)))
}
