package domain

import (
	"encoding/json"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGrantIdentifier_IsValid(t *testing.T) {
	for _, g := range AllGrants {
		assert.True(t, g.IsValid(), g.String())
	}
	assert.False(t, GrantIdentifier("urn:ietf:params:oauth:grant-type:device_code").IsValid())
	assert.False(t, GrantIdentifier("").IsValid())
}

func TestParseDateInterval(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"15m", 15 * time.Minute, false},
		{"1h", time.Hour, false},
		{"0s", 0, false},
		{"-1h", 0, true},
		{"PT1H", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDateInterval(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Duration)
		})
	}
}

func TestDateInterval(t *testing.T) {
	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	i := NewDateInterval(90 * time.Minute)

	assert.False(t, i.IsZero())
	assert.True(t, DateInterval{}.IsZero())
	assert.Equal(t, from.Add(90*time.Minute), i.EndFrom(from))
	assert.Equal(t, int64(5400), i.Seconds())
}

func TestClaims(t *testing.T) {
	var decoded Claims
	require.NoError(t, json.Unmarshal([]byte(`{"sub":"u1","exp":1767225600,"scopes":["read","write"],"bad":[1]}`), &decoded))

	sub, ok := decoded.String("sub")
	assert.True(t, ok)
	assert.Equal(t, "u1", sub)

	exp, ok := decoded.Int64("exp")
	assert.True(t, ok)
	assert.Equal(t, int64(1767225600), exp)

	scopes, ok := decoded.StringSlice("scopes")
	assert.True(t, ok)
	assert.Equal(t, []string{"read", "write"}, scopes)

	_, ok = decoded.StringSlice("bad")
	assert.False(t, ok)

	_, err := decoded.RequireString("exp")
	assert.Error(t, err)
	_, err = decoded.RequireString("missing")
	assert.Error(t, err)

	n, ok := Claims{"n": json.Number("42")}.Int64("n")
	assert.True(t, ok)
	assert.Equal(t, int64(42), n)
}

func TestClient(t *testing.T) {
	c := &Client{
		ID:           "app",
		RedirectURIs: []string{"https://app/cb"},
		Grants:       []GrantIdentifier{GrantAuthorizationCode, GrantRefreshToken},
		Scopes:       []string{"read"},
	}

	assert.False(t, c.IsConfidential())
	assert.True(t, c.HasRedirectURI("https://app/cb"))
	assert.False(t, c.HasRedirectURI(""))
	assert.False(t, c.HasRedirectURI("https://app/cb/"))
	assert.True(t, c.AllowsGrant(GrantRefreshToken))
	assert.False(t, c.AllowsGrant(GrantPassword))
	assert.True(t, c.AllowsScope("read"))
	assert.False(t, c.AllowsScope("write"))

	open := &Client{ID: "open", Secret: "x"}
	assert.True(t, open.IsConfidential())
	assert.True(t, open.AllowsGrant(GrantPassword))
	assert.True(t, open.AllowsScope("anything"))
	assert.False(t, open.AllowsScope(AdminScope))

	admin := &Client{ID: "admin", Scopes: []string{AdminScope}}
	assert.True(t, admin.AllowsScope(AdminScope))
	assert.False(t, admin.AllowsScope("read"))
}

func TestRequest(t *testing.T) {
	req := NewRequest(
		url.Values{"response_type": {"code"}},
		map[string]any{"grant_type": "password", "n": 5, "list": []string{"a", "b"}},
		map[string]string{"Authorization": "Basic abc"},
	)

	assert.Equal(t, "code", req.QueryParam("response_type"))
	assert.Equal(t, "password", req.BodyParam("grant_type"))
	assert.Equal(t, "5", req.BodyParam("n"))
	assert.Equal(t, "a", req.BodyParam("list"))
	assert.Equal(t, "", req.BodyParam("missing"))
	assert.Equal(t, "Basic abc", req.Header("authorization"))
	assert.Equal(t, "Basic abc", req.Header("AUTHORIZATION"))

	empty := NewRequest(nil, nil, nil)
	assert.Equal(t, "", empty.QueryParam("x"))
	assert.Nil(t, empty.BodyValue("x"))
}

func TestResponse(t *testing.T) {
	res := NewRedirectResponse("https://app/cb?code=1")
	assert.Equal(t, 302, res.Status)
	assert.Equal(t, "https://app/cb?code=1", res.Location())

	res = NewResponse()
	res.SetHeader("Cache-Control", "no-store")
	assert.Equal(t, 200, res.Status)
	assert.Equal(t, "no-store", res.Headers["cache-control"])
	assert.Empty(t, res.Location())
}

func TestScopes(t *testing.T) {
	scopes := []*Scope{{Name: "read"}, {Name: "write"}}
	assert.Equal(t, []string{"read", "write"}, ScopeNames(scopes))
	assert.True(t, ContainsScope(scopes, "write"))
	assert.False(t, ContainsScope(scopes, "admin"))
	assert.Empty(t, ScopeNames(nil))
}

func TestExpiry(t *testing.T) {
	now := time.Now()
	code := &AuthCode{ExpiresAt: now}
	assert.True(t, code.IsExpired(now))
	assert.False(t, code.IsExpired(now.Add(-time.Second)))

	rt := &RefreshToken{ExpiresAt: now.Add(time.Minute)}
	assert.False(t, rt.IsExpired(now))
	assert.True(t, rt.IsExpired(now.Add(time.Minute)))
}

func TestUserID(t *testing.T) {
	assert.Equal(t, "", UserID(nil))
	assert.Equal(t, "u1", UserID(&User{ID: "u1"}))
}

func TestNewID(t *testing.T) {
	id := NewID()
	assert.Len(t, id, 26)
	_, err := ParseULID(id)
	assert.NoError(t, err)
	assert.NotEqual(t, id, NewID())
}
