package identity

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	tokenIssuer   = "onescheduler"
	audienceSess  = "session"
	audienceState = "oauth-state"
)

// ErrInvalidToken is returned for tokens that are malformed, wrongly signed or
// issued for another purpose.
var ErrInvalidToken = errors.New("invalid token")

// ErrTokenExpired is returned for well-signed tokens past their expiry.
var ErrTokenExpired = errors.New("token expired")

// SessionClaims are the validated contents of a session token.
type SessionClaims struct {
	SessionID uuid.UUID
	UserID    uuid.UUID
	ExpiresAt time.Time
}

type sessionTokenClaims struct {
	jwt.RegisteredClaims
}

type stateTokenClaims struct {
	jwt.RegisteredClaims
	Provider string `json:"provider"`
	From     string `json:"from"`
}

// TokenIssuer signs and verifies the HS256 tokens carried by browsers.
type TokenIssuer struct {
	secret []byte
	now    func() time.Time
}

// NewTokenIssuer creates a TokenIssuer using secret as the HMAC key.
func NewTokenIssuer(secret string) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret), now: time.Now}
}

// IssueSession signs a token naming the given session.
func (t *TokenIssuer) IssueSession(s *Session) (string, error) {
	claims := sessionTokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   s.UserID.String(),
			Audience:  jwt.ClaimStrings{audienceSess},
			ID:        s.ID.String(),
			IssuedAt:  jwt.NewNumericDate(t.now()),
			ExpiresAt: jwt.NewNumericDate(s.ExpiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("signing session token: %w", err)
	}
	return signed, nil
}

// ParseSession verifies a session token. An expired but correctly signed token
// returns its claims together with ErrTokenExpired so the caller can end the session.
func (t *TokenIssuer) ParseSession(raw string) (*SessionClaims, error) {
	var parsed sessionTokenClaims
	_, err := jwt.ParseWithClaims(raw, &parsed, t.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithAudience(audienceSess),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)

	expired := err != nil && errors.Is(err, jwt.ErrTokenExpired)
	if err != nil && !expired {
		return nil, ErrInvalidToken
	}
	if expired {
		if errors.Is(err, jwt.ErrTokenInvalidIssuer) || errors.Is(err, jwt.ErrTokenInvalidAudience) {
			return nil, ErrInvalidToken
		}
		// The signature must hold even when the claims are stale.
		var check sessionTokenClaims
		if _, verr := jwt.ParseWithClaims(raw, &check, t.keyFunc,
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithoutClaimsValidation(),
		); verr != nil {
			return nil, ErrInvalidToken
		}
	}

	sessionID, idErr := uuid.Parse(parsed.ID)
	userID, subErr := uuid.Parse(parsed.Subject)
	if idErr != nil || subErr != nil {
		return nil, ErrInvalidToken
	}

	claims := &SessionClaims{SessionID: sessionID, UserID: userID}
	if parsed.ExpiresAt != nil {
		claims.ExpiresAt = parsed.ExpiresAt.Time
	}
	if expired {
		return claims, ErrTokenExpired
	}
	return claims, nil
}

// IssueState signs the OAuth state parameter, carrying the location to return
// to after sign-in.
func (t *TokenIssuer) IssueState(provider, from string, ttl time.Duration) (string, error) {
	now := t.now()
	claims := stateTokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Audience:  jwt.ClaimStrings{audienceState},
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Provider: provider,
		From:     from,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("signing state token: %w", err)
	}
	return signed, nil
}

// ParseState verifies an OAuth state parameter and returns its provider and return location.
func (t *TokenIssuer) ParseState(raw string) (provider, from string, err error) {
	var parsed stateTokenClaims
	_, err = jwt.ParseWithClaims(raw, &parsed, t.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithAudience(audienceState),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return "", "", ErrInvalidToken
	}
	return parsed.Provider, parsed.From, nil
}

func (t *TokenIssuer) keyFunc(*jwt.Token) (any, error) {
	return t.secret, nil
}
