package domain

// GrantIdentifier is the wire value of an OAuth2 grant type
type GrantIdentifier string

const (
	GrantAuthorizationCode GrantIdentifier = "authorization_code"
	GrantClientCredentials GrantIdentifier = "client_credentials"
	GrantImplicit          GrantIdentifier = "implicit"
	GrantPassword          GrantIdentifier = "password"
	GrantRefreshToken      GrantIdentifier = "refresh_token"
)

// AllGrants lists every grant the server knows how to enable, in default registration order
var AllGrants = []GrantIdentifier{
	GrantAuthorizationCode,
	GrantClientCredentials,
	GrantImplicit,
	GrantPassword,
	GrantRefreshToken,
}

// String returns the wire value
func (g GrantIdentifier) String() string {
	return string(g)
}

// IsValid reports whether g is one of the known grant identifiers
func (g GrantIdentifier) IsValid() bool {
	for _, known := range AllGrants {
		if g == known {
			return true
		}
	}
	return false
}
