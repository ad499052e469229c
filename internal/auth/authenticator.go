package auth

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"
)

// ErrNotSignedIn is returned for operations that need a session.
var ErrNotSignedIn = errors.New("not signed in")

// Backend is the identity server the Authenticator talks to.
type Backend interface {
	PasswordGrant(ctx context.Context, email, password string) (*Session, error)
	SignUp(ctx context.Context, email, password string) error
	Logout(ctx context.Context, accessToken string) error
	Recover(ctx context.Context, email string) error
	UpdatePassword(ctx context.Context, accessToken, password string) error
	AuthorizeURL(provider string) (authURL, verifier string)
	ExchangeCode(ctx context.Context, code, verifier string) (*Session, error)
}

// Authenticator is one player's identity state. It implements Provider.
type Authenticator struct {
	backend   Backend
	tracker   *SessionTracker
	verifier  *TokenVerifier
	minLength int

	mu           sync.Mutex
	view         View
	pkceVerifier string
}

// NewAuthenticator creates an Authenticator. verifier may be nil to skip
// local token verification.
func NewAuthenticator(backend Backend, verifier *TokenVerifier, minPasswordLength int) *Authenticator {
	if minPasswordLength <= 0 {
		minPasswordLength = DefaultMinPasswordLength
	}
	return &Authenticator{
		backend:   backend,
		tracker:   NewSessionTracker(),
		verifier:  verifier,
		minLength: minPasswordLength,
		view:      ViewLogin,
	}
}

// Sessions returns the tracker that reports session changes.
func (a *Authenticator) Sessions() *SessionTracker {
	return a.tracker
}

// View returns the form the auth panel shows.
func (a *Authenticator) View() View {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.view
}

// SetView switches the auth panel form.
func (a *Authenticator) SetView(v View) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.view = v
}

// MinPasswordLength is the shortest accepted password.
func (a *Authenticator) MinPasswordLength() int {
	return a.minLength
}

// SignInWithPassword implements Provider.
func (a *Authenticator) SignInWithPassword(ctx context.Context, email, password string) Result {
	if err := ValidateLogin(email, password); err != nil {
		return failed(err)
	}
	s, err := a.backend.PasswordGrant(ctx, email, password)
	if err != nil {
		log.Warn().Err(err).Msg("Password sign in failed")
		return failed(err)
	}
	if err := a.adopt(s); err != nil {
		return failed(err)
	}
	return ok("Signed in successfully!")
}

// SignInWithOAuth implements Provider. The returned Message is the URL to
// open; CompleteOAuth finishes the sign in.
func (a *Authenticator) SignInWithOAuth(ctx context.Context, provider string) Result {
	if provider == "" {
		return Result{Error: "Unknown sign in provider"}
	}
	authURL, verifier := a.backend.AuthorizeURL(provider)

	a.mu.Lock()
	a.pkceVerifier = verifier
	a.mu.Unlock()
	return ok(authURL)
}

// CompleteOAuth exchanges the code from the OAuth callback for a session.
func (a *Authenticator) CompleteOAuth(ctx context.Context, code string) Result {
	a.mu.Lock()
	verifier := a.pkceVerifier
	a.pkceVerifier = ""
	a.mu.Unlock()

	if verifier == "" {
		return Result{Error: "No sign in in progress"}
	}
	s, err := a.backend.ExchangeCode(ctx, code, verifier)
	if err != nil {
		log.Warn().Err(err).Msg("OAuth code exchange failed")
		return failed(err)
	}
	if err := a.adopt(s); err != nil {
		return failed(err)
	}
	return ok("Signed in successfully!")
}

// SignUp implements Provider. The password confirmation is checked by
// Register.
func (a *Authenticator) SignUp(ctx context.Context, email, password string) Result {
	if err := a.backend.SignUp(ctx, email, password); err != nil {
		log.Warn().Err(err).Msg("Sign up failed")
		return failed(err)
	}
	a.SetView(ViewLogin)
	return ok("Check your email for the confirmation link!")
}

// Register validates the registration form and signs up.
func (a *Authenticator) Register(ctx context.Context, email, password, confirm string) Result {
	if err := ValidateRegistration(email, password, confirm, a.minLength); err != nil {
		return failed(err)
	}
	return a.SignUp(ctx, email, password)
}

// SignOut implements Provider. The local session is cleared even when the
// server cannot be reached.
func (a *Authenticator) SignOut(ctx context.Context) Result {
	s := a.tracker.Current()
	if s == nil {
		return ok("Signed out successfully!")
	}
	err := a.backend.Logout(ctx, s.AccessToken)
	a.tracker.Set(nil)
	if err != nil {
		log.Warn().Err(err).Msg("Sign out request failed")
		return Result{Error: "Failed to sign out. Please try again."}
	}
	return ok("Signed out successfully!")
}

// RequestPasswordReset implements Provider.
func (a *Authenticator) RequestPasswordReset(ctx context.Context, email string) Result {
	if err := ValidateEmail(email); err != nil {
		return failed(err)
	}
	if err := a.backend.Recover(ctx, email); err != nil {
		log.Warn().Err(err).Msg("Password reset request failed")
		return failed(err)
	}
	a.SetView(ViewLogin)
	return ok("Check your email for the password reset link!")
}

// UpdatePassword implements Provider.
func (a *Authenticator) UpdatePassword(ctx context.Context, password string) Result {
	return a.ChangePassword(ctx, password, password)
}

// ChangePassword validates the new password and its confirmation and
// updates it.
func (a *Authenticator) ChangePassword(ctx context.Context, password, confirm string) Result {
	if err := ValidateNewPassword(password, confirm, a.minLength); err != nil {
		return failed(err)
	}
	s := a.tracker.Current()
	if s == nil {
		return failed(ErrNotSignedIn)
	}
	if err := a.backend.UpdatePassword(ctx, s.AccessToken, password); err != nil {
		log.Warn().Err(err).Msg("Password update failed")
		return failed(err)
	}
	return ok("Password updated successfully!")
}

func (a *Authenticator) adopt(s *Session) error {
	if a.verifier != nil {
		claims, err := a.verifier.Verify(s.AccessToken)
		if err != nil {
			return err
		}
		if s.User.ID == "" {
			s.User.ID = claims.Subject
		}
		if s.User.Email == "" {
			s.User.Email = claims.Email
		}
	}
	a.tracker.Set(s)
	return nil
}

var (
	_ Provider = (*Authenticator)(nil)
	_ Backend  = (*GoTrue)(nil)
)
