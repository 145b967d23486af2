package memory

import (
	"context"
	"sync"
	"time"

	"github.com/manorfm/oauth2server/internal/domain"
	"go.uber.org/zap"
)

// DefaultRefreshTokenTTL is the refresh token lifetime when Options leaves it unset
const DefaultRefreshTokenTTL = 30 * 24 * time.Hour

var (
	_ domain.ClientRepository               = (*ClientRepository)(nil)
	_ domain.ScopeRepository                = (*ScopeRepository)(nil)
	_ domain.UserRepository                 = (*UserRepository)(nil)
	_ domain.ExtraAccessTokenFieldsProvider = (*UserRepository)(nil)
	_ domain.AuthCodeRepository             = (*AuthCodeRepository)(nil)
	_ domain.TokenRepository                = (*TokenRepository)(nil)
	_ domain.ClientAdminRepository          = (*Store)(nil)
	_ domain.UserAdminRepository            = (*Store)(nil)
)

// Options configures the store
type Options struct {
	RefreshTokenTTL time.Duration
	// DisableRefreshTokens makes IssueRefreshToken decline
	DisableRefreshTokens bool
	// CleanupInterval purges expired records periodically; zero disables the cleanup loop
	CleanupInterval time.Duration
	Now             func() time.Time
}

// Store holds all records behind a single lock so revocations are atomic
type Store struct {
	mu sync.RWMutex

	clients       map[string]*domain.Client
	scopes        map[string]*domain.Scope
	users         map[string]*domain.User
	usernames     map[string]string // username -> user id
	authCodes     map[string]*domain.AuthCode
	accessTokens  map[string]*domain.AccessToken
	refreshTokens map[string]*domain.RefreshToken

	opts        Options
	logger      *zap.Logger
	stopCleanup chan struct{}
	stopOnce    sync.Once
}

// New creates an empty store
func New(logger *zap.Logger, opts Options) *Store {
	if opts.RefreshTokenTTL <= 0 {
		opts.RefreshTokenTTL = DefaultRefreshTokenTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	s := &Store{
		clients:       make(map[string]*domain.Client),
		scopes:        make(map[string]*domain.Scope),
		users:         make(map[string]*domain.User),
		usernames:     make(map[string]string),
		authCodes:     make(map[string]*domain.AuthCode),
		accessTokens:  make(map[string]*domain.AccessToken),
		refreshTokens: make(map[string]*domain.RefreshToken),
		opts:          opts,
		logger:        logger,
		stopCleanup:   make(chan struct{}),
	}
	if opts.CleanupInterval > 0 {
		go s.cleanupLoop(opts.CleanupInterval)
	}
	return s
}

// Stop ends the cleanup loop
func (s *Store) Stop() {
	s.stopOnce.Do(func() { close(s.stopCleanup) })
}

func (s *Store) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.Cleanup()
		case <-s.stopCleanup:
			return
		}
	}
}

// Cleanup removes expired codes and tokens
func (s *Store) Cleanup() {
	now := s.opts.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for k, c := range s.authCodes {
		if c.IsExpired(now) {
			delete(s.authCodes, k)
			removed++
		}
	}
	for k, t := range s.refreshTokens {
		if t.IsExpired(now) {
			delete(s.refreshTokens, k)
			removed++
		}
	}
	for k, t := range s.accessTokens {
		if t.IsExpired(now) {
			delete(s.accessTokens, k)
			removed++
		}
	}
	if removed > 0 {
		s.logger.Debug("Expired records removed", zap.Int("count", removed))
	}
}

// Clients returns the client repository view of the store
func (s *Store) Clients() *ClientRepository { return &ClientRepository{s} }

// Scopes returns the scope repository view of the store
func (s *Store) Scopes() *ScopeRepository { return &ScopeRepository{s} }

// Users returns the user repository view of the store
func (s *Store) Users() *UserRepository { return &UserRepository{s} }

// AuthCodes returns the auth code repository view of the store
func (s *Store) AuthCodes() *AuthCodeRepository { return &AuthCodeRepository{s} }

// Tokens returns the token repository view of the store
func (s *Store) Tokens() *TokenRepository { return &TokenRepository{s} }

// SaveClient registers or replaces a client
func (s *Store) SaveClient(client *domain.Client) {
	c := *client
	now := s.opts.Now()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	s.mu.Lock()
	s.clients[c.ID] = &c
	s.mu.Unlock()
}

// SaveScope registers or replaces a scope
func (s *Store) SaveScope(scope *domain.Scope) {
	sc := *scope
	s.mu.Lock()
	s.scopes[sc.Name] = &sc
	s.mu.Unlock()
}

// SaveUser registers or replaces a user. PasswordHash must already be a bcrypt hash.
func (s *Store) SaveUser(user *domain.User) {
	u := *user
	if u.ID == "" {
		u.ID = domain.NewID()
	}
	s.mu.Lock()
	s.users[u.ID] = &u
	if u.Username != "" {
		s.usernames[u.Username] = u.ID
	}
	s.mu.Unlock()
}

// CreateClient implements domain.ClientAdminRepository
func (s *Store) CreateClient(_ context.Context, client *domain.Client) error {
	s.SaveClient(client)
	return nil
}

// ListClients implements domain.ClientAdminRepository
func (s *Store) ListClients(_ context.Context) ([]*domain.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.Client, 0, len(s.clients))
	for _, c := range s.clients {
		cp := *c
		out = append(out, &cp)
	}
	return out, nil
}

// DeleteClient implements domain.ClientAdminRepository
func (s *Store) DeleteClient(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.clients, id)
	return nil
}

// CreateUser implements domain.UserAdminRepository
func (s *Store) CreateUser(_ context.Context, user *domain.User) error {
	s.SaveUser(user)
	return nil
}
