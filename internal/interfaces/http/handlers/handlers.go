// Package handlers adapts net/http requests to the authorization server and renders its responses.
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"strings"

	"github.com/manorfm/oauth2server/internal/domain"
	apperrors "github.com/manorfm/oauth2server/internal/domain/errors"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

// AuthorizationServer is the part of the engine the protocol endpoints drive
type AuthorizationServer interface {
	ValidateAuthorizationRequest(ctx context.Context, req *domain.Request) (*domain.AuthorizationRequest, error)
	CompleteAuthorizationRequest(ctx context.Context, authReq *domain.AuthorizationRequest, decision domain.AuthorizationDecision) (*domain.Response, error)
	RespondToAccessTokenRequest(ctx context.Context, req *domain.Request, res *domain.Response) (*domain.Response, error)
}

// newDomainRequest converts r into the engine's request view.
// Bodies are read as JSON when declared so, otherwise as a form.
func newDomainRequest(w http.ResponseWriter, r *http.Request) (*domain.Request, error) {
	headers := make(map[string]string, len(r.Header))
	for name, values := range r.Header {
		if len(values) > 0 {
			headers[name] = values[0]
		}
	}

	body := map[string]any{}
	if r.Method == http.MethodPost {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
		switch mediaType {
		case "application/json":
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				return nil, apperrors.NewInvalidRequest("body", "malformed JSON").WithCause(err)
			}
		default:
			if err := r.ParseForm(); err != nil {
				return nil, apperrors.NewInvalidRequest("body", "malformed form").WithCause(err)
			}
			for key, values := range r.PostForm {
				if len(values) == 1 {
					body[key] = values[0]
				} else {
					body[key] = values
				}
			}
		}
	}

	return domain.NewRequest(r.URL.Query(), body, headers), nil
}

// writeResponse copies an engine response onto w
func writeResponse(w http.ResponseWriter, res *domain.Response, logger *zap.Logger) {
	for name, value := range res.Headers {
		w.Header().Set(name, value)
	}
	if res.Body == nil {
		w.WriteHeader(res.Status)
		return
	}
	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "application/json")
	}
	w.WriteHeader(res.Status)
	if err := json.NewEncoder(w).Encode(res.Body); err != nil {
		logger.Error("Failed to encode response", zap.Error(err))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any, logger *zap.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Failed to encode response", zap.Error(err))
	}
}

func jsonFieldName(tag string) string {
	name := strings.SplitN(tag, ",", 2)[0]
	if name == "-" {
		return ""
	}
	return name
}

func describeRule(tag, param string) string {
	switch tag {
	case "required":
		return "is required"
	case "url":
		return "must be an absolute URL"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", param)
	case "max":
		return fmt.Sprintf("must be at most %s characters", param)
	case "min":
		return fmt.Sprintf("must be at least %s characters", param)
	default:
		return fmt.Sprintf("failed %s validation", tag)
	}
}
