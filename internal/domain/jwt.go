package domain

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
)

// Claims is a decoded JWT payload
type Claims map[string]any

// JWT signs and verifies the bearer tokens, codes and refresh blobs handed to clients
type JWT interface {
	Sign(ctx context.Context, claims Claims) (string, error)
	Verify(ctx context.Context, token string) (Claims, error)
}

// String returns the string claim stored at key
func (c Claims) String(key string) (string, bool) {
	v, ok := c[key]
	if !ok || v == nil {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Int64 returns the numeric claim stored at key.
// Decoded JSON numbers arrive as float64 or json.Number depending on the decoder.
func (c Claims) Int64(key string) (int64, bool) {
	v, ok := c[key]
	if !ok || v == nil {
		return 0, false
	}
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			f, ferr := n.Float64()
			if ferr != nil {
				return 0, false
			}
			return int64(f), true
		}
		return i, true
	default:
		return 0, false
	}
}

// StringSlice returns the list claim stored at key
func (c Claims) StringSlice(key string) ([]string, bool) {
	v, ok := c[key]
	if !ok || v == nil {
		return nil, false
	}
	switch list := v.(type) {
	case []string:
		return list, true
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	default:
		return nil, false
	}
}

// RequireString returns the string claim at key or an error naming the missing claim
func (c Claims) RequireString(key string) (string, error) {
	s, ok := c.String(key)
	if !ok {
		return "", fmt.Errorf("claim %q missing or not a string", key)
	}
	return s, nil
}
