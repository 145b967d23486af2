package domain

import "context"

// ClientAdminRepository manages client registrations outside of the protocol flows
type ClientAdminRepository interface {
	// CreateClient creates a new OAuth2 client
	CreateClient(ctx context.Context, client *Client) error

	// ListClients lists all OAuth2 clients
	ListClients(ctx context.Context) ([]*Client, error)

	// DeleteClient deletes an OAuth2 client
	DeleteClient(ctx context.Context, id string) error
}

// UserAdminRepository registers resource owners
type UserAdminRepository interface {
	CreateUser(ctx context.Context, user *User) error
}
