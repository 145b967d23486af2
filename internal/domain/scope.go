package domain

// Scope is a named permission unit with opaque metadata
type Scope struct {
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// ScopeNames extracts the names of scopes in order
func ScopeNames(scopes []*Scope) []string {
	names := make([]string, 0, len(scopes))
	for _, s := range scopes {
		names = append(names, s.Name)
	}
	return names
}

// ContainsScope reports whether a scope with the given name is present
func ContainsScope(scopes []*Scope, name string) bool {
	for _, s := range scopes {
		if s.Name == name {
			return true
		}
	}
	return false
}

// AdminScope authorizes the client administration API
const AdminScope = "clients:admin"

// IsReservedScope reports whether a scope is granted only to clients that list it explicitly
func IsReservedScope(name string) bool {
	return name == AdminScope
}
