package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	gotrue "github.com/supabase-community/auth-go"
	"github.com/supabase-community/auth-go/types"
	"golang.org/x/oauth2"
)

// APIError is a non-2xx answer from the identity server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("identity server returned %d: %s", e.Status, e.Message)
}

// User is the authenticated identity.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Session is a signed in identity with its tokens.
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresIn    int64     `json:"expires_in"`
	ExpiresAt    time.Time `json:"-"`
	User         User      `json:"user"`
}

// Expired reports whether the access token has expired at now.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// GoTrueConfig configures a GoTrue client.
type GoTrueConfig struct {
	URL     string
	AnonKey string
	// SiteURL is where OAuth redirects point.
	SiteURL string
	// ClientID is the OAuth client registered with the identity server.
	ClientID string
	Timeout  time.Duration
}

// GoTrue talks to a GoTrue server (/auth/v1) through the Supabase auth
// client. The OAuth authorize URL is built locally so the PKCE challenge and
// redirect stay under our control.
type GoTrue struct {
	client   gotrue.Client
	base     string
	siteURL  string
	clientID string
	now      func() time.Time
}

// NewGoTrue creates a GoTrue client.
func NewGoTrue(cfg GoTrueConfig) *GoTrue {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	base := strings.TrimRight(cfg.URL, "/") + "/auth/v1"
	client := gotrue.New("", cfg.AnonKey).
		WithCustomAuthURL(base).
		WithClient(http.Client{Timeout: timeout})
	return &GoTrue{
		client:   client,
		base:     base,
		siteURL:  strings.TrimRight(cfg.SiteURL, "/"),
		clientID: cfg.ClientID,
		now:      time.Now,
	}
}

// PasswordGrant signs in with email and password.
func (g *GoTrue) PasswordGrant(ctx context.Context, email, password string) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	resp, err := g.client.Token(types.TokenRequest{
		GrantType: "password",
		Email:     email,
		Password:  password,
	})
	if err != nil {
		return nil, apiError(err)
	}
	return g.session(resp.Session), nil
}

// SignUp registers a new identity; the server emails a confirmation link.
func (g *GoTrue) SignUp(ctx context.Context, email, password string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := g.client.Signup(types.SignupRequest{Email: email, Password: password})
	return apiError(err)
}

// Logout revokes the session behind accessToken.
func (g *GoTrue) Logout(ctx context.Context, accessToken string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return apiError(g.client.WithToken(accessToken).Logout())
}

// Recover sends a password reset email.
func (g *GoTrue) Recover(ctx context.Context, email string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return apiError(g.client.Recover(types.RecoverRequest{Email: email}))
}

// UpdatePassword changes the password of the signed in identity.
func (g *GoTrue) UpdatePassword(ctx context.Context, accessToken, password string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := g.client.WithToken(accessToken).UpdateUser(types.UpdateUserRequest{Password: &password})
	return apiError(err)
}

// OAuthConfig describes the authorize endpoint for provider.
func (g *GoTrue) OAuthConfig(provider string) *oauth2.Config {
	return &oauth2.Config{
		ClientID: g.clientID,
		Endpoint: oauth2.Endpoint{
			AuthURL:  g.base + "/authorize?provider=" + url.QueryEscape(provider),
			TokenURL: g.base + "/token?grant_type=pkce",
		},
		RedirectURL: g.siteURL + "/auth/callback",
	}
}

// AuthorizeURL returns the URL that starts an OAuth sign in with provider
// and the PKCE verifier needed to finish it.
func (g *GoTrue) AuthorizeURL(provider string) (authURL, verifier string) {
	verifier = oauth2.GenerateVerifier()
	state := oauth2.GenerateVerifier()
	authURL = g.OAuthConfig(provider).AuthCodeURL(state, oauth2.S256ChallengeOption(verifier))
	return authURL, verifier
}

// ExchangeCode finishes an OAuth sign in.
func (g *GoTrue) ExchangeCode(ctx context.Context, code, verifier string) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	resp, err := g.client.Token(types.TokenRequest{
		GrantType:    "pkce",
		Code:         code,
		CodeVerifier: verifier,
	})
	if err != nil {
		return nil, apiError(err)
	}
	return g.session(resp.Session), nil
}

func (g *GoTrue) session(s types.Session) *Session {
	out := &Session{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		ExpiresIn:    int64(s.ExpiresIn),
		User:         User{Email: s.User.Email},
	}
	if s.User.ID != uuid.Nil {
		out.User.ID = s.User.ID.String()
	}
	switch {
	case s.ExpiresAt > 0:
		out.ExpiresAt = time.Unix(s.ExpiresAt, 0)
	case s.ExpiresIn > 0:
		out.ExpiresAt = g.now().Add(time.Duration(s.ExpiresIn) * time.Second)
	}
	return out
}

// apiError turns the client's "response status code N: body" errors into an
// APIError carrying the server's message. Other errors pass through.
func apiError(err error) error {
	if err == nil {
		return nil
	}
	var status int
	if _, scanErr := fmt.Sscanf(err.Error(), "response status code %d:", &status); scanErr != nil {
		return err
	}
	body := err.Error()
	if i := strings.Index(body, ": "); i >= 0 {
		body = body[i+2:]
	}

	var payload struct {
		Message     string `json:"msg"`
		Alt         string `json:"message"`
		Description string `json:"error_description"`
	}
	_ = json.Unmarshal([]byte(body), &payload)
	msg := payload.Description
	if msg == "" {
		msg = payload.Message
	}
	if msg == "" {
		msg = payload.Alt
	}
	if msg == "" {
		msg = http.StatusText(status)
	}
	return &APIError{Status: status, Message: msg}
}
