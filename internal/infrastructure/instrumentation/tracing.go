package instrumentation

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Span attribute keys. Never attach codes, tokens, secrets or verifiers.
const (
	AttrClientID      = "oauth.client_id"
	AttrUserID        = "oauth.user_id"
	AttrScope         = "oauth.scope"
	AttrGrantType     = "oauth.grant_type"
	AttrPKCEMethod    = "oauth.pkce.method"
	AttrTokenFamilyID = "oauth.token.family_id" //nolint:gosec // identifier, not a credential
	AttrApproved      = "oauth.approved"
	AttrRefreshIssued = "oauth.refresh_issued"
	AttrError         = "oauth.error"
	AttrHTTPEndpoint  = "http.endpoint"
)

// RecordError records an error on a span with proper status codes (nil-safe)
func RecordError(span trace.Span, err error) {
	if span != nil && err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// SetSpanSuccess marks a span as successful (nil-safe)
func SetSpanSuccess(span trace.Span) {
	if span != nil {
		span.SetStatus(codes.Ok, "")
	}
}

// AddOAuthFlowAttributes adds common OAuth flow attributes to a span (nil-safe)
func AddOAuthFlowAttributes(span trace.Span, grant, clientID, userID string) {
	if span == nil {
		return
	}
	if grant != "" {
		span.SetAttributes(attribute.String(AttrGrantType, grant))
	}
	if clientID != "" {
		span.SetAttributes(attribute.String(AttrClientID, clientID))
	}
	if userID != "" {
		span.SetAttributes(attribute.String(AttrUserID, userID))
	}
}

// AddTokenFamilyAttributes adds the lineage identifier to a span (nil-safe)
func AddTokenFamilyAttributes(span trace.Span, familyID string) {
	if span != nil && familyID != "" {
		span.SetAttributes(attribute.String(AttrTokenFamilyID, familyID))
	}
}
