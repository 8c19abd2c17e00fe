package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

const googleUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"

// ErrUnverifiedEmail is returned when the provider does not vouch for the account email.
var ErrUnverifiedEmail = errors.New("provider email is not verified")

// OAuthProvider is an external sign-in provider using the authorization code flow.
type OAuthProvider interface {
	Name() string
	AuthCodeURL(state string) string
	// Exchange trades an authorization code for the account's verified email.
	Exchange(ctx context.Context, code string) (string, error)
}

// GoogleProvider signs users in with their Google account.
type GoogleProvider struct {
	cfg         *oauth2.Config
	userInfoURL string
}

// NewGoogleProvider creates a GoogleProvider for the given OAuth client.
func NewGoogleProvider(clientID, clientSecret, redirectURL string) *GoogleProvider {
	return &GoogleProvider{
		cfg: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Endpoint:     endpoints.Google,
			Scopes:       []string{"openid", "email", "profile"},
		},
		userInfoURL: googleUserInfoURL,
	}
}

// Name implements OAuthProvider.
func (p *GoogleProvider) Name() string { return ProviderGoogle }

// AuthCodeURL asks for offline access and always shows the consent screen.
func (p *GoogleProvider) AuthCodeURL(state string) string {
	return p.cfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.SetAuthURLParam("prompt", "consent"))
}

type googleUserInfo struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
}

// Exchange implements OAuthProvider.
func (p *GoogleProvider) Exchange(ctx context.Context, code string) (string, error) {
	tok, err := p.cfg.Exchange(ctx, code)
	if err != nil {
		return "", fmt.Errorf("exchanging authorization code: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return "", fmt.Errorf("building userinfo request: %w", err)
	}

	resp, err := p.cfg.Client(ctx, tok).Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching userinfo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetching userinfo: unexpected status %d", resp.StatusCode)
	}

	var info googleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return "", fmt.Errorf("decoding userinfo: %w", err)
	}
	if !info.EmailVerified || strings.TrimSpace(info.Email) == "" {
		return "", ErrUnverifiedEmail
	}

	return info.Email, nil
}
