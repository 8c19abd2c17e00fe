package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials is returned when an email/password pair does not match an account.
var ErrInvalidCredentials = errors.New("invalid email or password")

// ErrUnauthenticated is returned by callers that require a signed-in user and found none.
var ErrUnauthenticated = errors.New("not signed in")

// ErrUnknownProvider is returned for sign-in providers that are not configured.
var ErrUnknownProvider = errors.New("unknown sign-in provider")

const oauthStateTTL = 10 * time.Minute

// Service issues, resolves and ends sessions, and announces session changes
// to subscribers.
type Service struct {
	users      UserRepository
	sessions   SessionRepository
	tokens     *TokenIssuer
	events     *Broadcaster
	providers  map[string]OAuthProvider
	bcryptCost int
	ttl        time.Duration
	now        func() time.Time
}

// NewService creates a new identity Service.
func NewService(users UserRepository, sessions SessionRepository, tokens *TokenIssuer, bcryptCost int, ttl time.Duration, providers ...OAuthProvider) *Service {
	s := &Service{
		users:      users,
		sessions:   sessions,
		tokens:     tokens,
		events:     NewBroadcaster(),
		providers:  make(map[string]OAuthProvider, len(providers)),
		bcryptCost: bcryptCost,
		ttl:        ttl,
		now:        time.Now,
	}
	for _, p := range providers {
		s.providers[p.Name()] = p
	}
	return s
}

// Subscribe registers fn for SIGNED_IN and SIGNED_OUT events.
func (s *Service) Subscribe(fn Listener) (unsubscribe func()) {
	return s.events.Subscribe(fn)
}

// Providers lists the enabled sign-in methods, email first.
func (s *Service) Providers() []string {
	names := []string{ProviderEmail}
	if _, ok := s.providers[ProviderGoogle]; ok {
		names = append(names, ProviderGoogle)
	}
	return names
}

// SignUp registers an email/password account and starts a session for it.
func (s *Service) SignUp(ctx context.Context, email, password string) (*User, string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return nil, "", fmt.Errorf("hashing password: %w", err)
	}

	u := &User{
		Email:        normalizeEmail(email),
		PasswordHash: string(hash),
		Provider:     ProviderEmail,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, "", err
	}

	token, err := s.startSession(ctx, u)
	if err != nil {
		return nil, "", err
	}
	return u, token, nil
}

// EnsureUser returns the account for email, creating an email/password account
// if none exists. It starts no session. created reports whether a row was inserted.
func (s *Service) EnsureUser(ctx context.Context, email, password string) (u *User, created bool, err error) {
	email = normalizeEmail(email)
	u, err = s.users.GetByEmail(ctx, email)
	if err == nil {
		return u, false, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return nil, false, fmt.Errorf("looking up user: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return nil, false, fmt.Errorf("hashing password: %w", err)
	}

	u = &User{Email: email, PasswordHash: string(hash), Provider: ProviderEmail}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, false, err
	}
	return u, true, nil
}

// SignIn verifies an email/password pair and starts a session.
func (s *Service) SignIn(ctx context.Context, email, password string) (*User, string, error) {
	u, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", fmt.Errorf("looking up user: %w", err)
	}

	if u.PasswordHash == "" || bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.startSession(ctx, u)
	if err != nil {
		return nil, "", err
	}
	return u, token, nil
}

// OAuthURL returns the provider's consent URL. The state parameter carries from
// so the callback can return the user to where they started.
func (s *Service) OAuthURL(provider, from string) (string, error) {
	p, ok := s.providers[provider]
	if !ok {
		return "", ErrUnknownProvider
	}
	state, err := s.tokens.IssueState(provider, from, oauthStateTTL)
	if err != nil {
		return "", err
	}
	return p.AuthCodeURL(state), nil
}

// CompleteOAuth finishes the authorization code flow: it verifies state,
// exchanges the code, finds or creates the user and starts a session.
func (s *Service) CompleteOAuth(ctx context.Context, code, state string) (*User, string, string, error) {
	providerName, from, err := s.tokens.ParseState(state)
	if err != nil {
		return nil, "", "", err
	}
	p, ok := s.providers[providerName]
	if !ok {
		return nil, "", "", ErrUnknownProvider
	}

	email, err := p.Exchange(ctx, code)
	if err != nil {
		return nil, "", "", err
	}

	u, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, ErrUserNotFound) {
		u = &User{Email: normalizeEmail(email), Provider: providerName}
		err = s.users.Create(ctx, u)
	}
	if err != nil {
		return nil, "", "", fmt.Errorf("resolving oauth user: %w", err)
	}

	token, err := s.startSession(ctx, u)
	if err != nil {
		return nil, "", "", err
	}
	return u, token, from, nil
}

// Authenticate resolves a session token to a Principal. A missing, invalid,
// revoked or expired session yields (nil, nil); only store failures are errors.
// Finding a session that has quietly expired ends it and publishes SIGNED_OUT.
func (s *Service) Authenticate(ctx context.Context, token string) (*Principal, error) {
	if token == "" {
		return nil, nil
	}

	claims, err := s.tokens.ParseSession(token)
	if err != nil {
		if errors.Is(err, ErrTokenExpired) {
			s.expire(ctx, claims)
		}
		return nil, nil
	}

	sess, err := s.sessions.GetByID(ctx, claims.SessionID)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("looking up session: %w", err)
	}

	if !sess.Active(s.now()) {
		if sess.RevokedAt == nil {
			s.expire(ctx, claims)
		}
		return nil, nil
	}

	u, err := s.users.GetByID(ctx, sess.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("looking up session user: %w", err)
	}

	return &Principal{User: u, SessionID: sess.ID, Token: token}, nil
}

// CurrentUser returns the user behind token, or nil when there is no valid session.
func (s *Service) CurrentUser(ctx context.Context, token string) (*User, error) {
	p, err := s.Authenticate(ctx, token)
	if err != nil || p == nil {
		return nil, err
	}
	return p.User, nil
}

// SignOut revokes the session behind token and publishes SIGNED_OUT. Signing
// out with a token that names no session is a no-op.
func (s *Service) SignOut(ctx context.Context, token string) error {
	claims, err := s.tokens.ParseSession(token)
	if err != nil && !errors.Is(err, ErrTokenExpired) {
		return nil
	}

	if err := s.sessions.Revoke(ctx, claims.SessionID); err != nil {
		if errors.Is(err, ErrSessionNotFound) || errors.Is(err, ErrSessionRevoked) {
			return nil
		}
		return fmt.Errorf("revoking session: %w", err)
	}

	s.events.Publish(Event{Type: EventSignedOut, UserID: claims.UserID, SessionID: claims.SessionID})
	return nil
}

// SweepExpired deletes expired sessions and publishes SIGNED_OUT for each one
// that had not already been ended.
func (s *Service) SweepExpired(ctx context.Context) (int, error) {
	expired, err := s.sessions.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, err
	}
	for _, sess := range expired {
		s.events.Publish(Event{Type: EventSignedOut, UserID: sess.UserID, SessionID: sess.ID})
	}
	return len(expired), nil
}

// RunSweeper calls SweepExpired every interval. It blocks until ctx is cancelled.
func (s *Service) RunSweeper(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("session sweep interval must be positive, got %s", interval)
	}
	slog.Info("session sweeper started", "interval", interval.String())
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("session sweeper stopped")
			return nil
		case <-ticker.C:
			n, err := s.SweepExpired(ctx)
			if err != nil {
				slog.Error("session sweeper: failed to delete expired sessions", "error", err)
				continue
			}
			if n > 0 {
				slog.Info("session sweeper: expired sessions ended", "count", n)
			}
		}
	}
}

func (s *Service) startSession(ctx context.Context, u *User) (string, error) {
	sess := &Session{
		UserID:    u.ID,
		ExpiresAt: s.now().Add(s.ttl),
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return "", fmt.Errorf("creating session: %w", err)
	}

	token, err := s.tokens.IssueSession(sess)
	if err != nil {
		return "", err
	}

	s.events.Publish(Event{Type: EventSignedIn, UserID: u.ID, SessionID: sess.ID})
	return token, nil
}

func (s *Service) expire(ctx context.Context, claims *SessionClaims) {
	if claims == nil {
		return
	}
	if err := s.sessions.Revoke(ctx, claims.SessionID); err != nil {
		if !errors.Is(err, ErrSessionNotFound) && !errors.Is(err, ErrSessionRevoked) {
			slog.Warn("failed to end expired session", "sessionId", claims.SessionID, "error", err)
		}
		return
	}
	s.events.Publish(Event{Type: EventSignedOut, UserID: claims.UserID, SessionID: claims.SessionID})
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
