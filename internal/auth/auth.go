// Package auth is the identity collaborator: email/password and OAuth sign in
// against a GoTrue compatible server, session tracking and credential checks.
// Identity is separate from the leaderboard display name.
package auth

import (
	"context"
	"errors"
)

// Result is the outcome of an identity operation. Error holds a message
// suitable for the player when Success is false.
type Result struct {
	Success bool
	Message string
	Error   string
}

func ok(message string) Result {
	return Result{Success: true, Message: message}
}

func failed(err error) Result {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return Result{Error: apiErr.Message}
	}
	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return Result{Error: vErr.Message}
	}
	return Result{Error: err.Error()}
}

// Provider is the set of identity operations offered to a player.
type Provider interface {
	SignInWithPassword(ctx context.Context, email, password string) Result
	// SignInWithOAuth starts an OAuth sign in; on success Message holds the
	// URL the player must open.
	SignInWithOAuth(ctx context.Context, provider string) Result
	SignUp(ctx context.Context, email, password string) Result
	SignOut(ctx context.Context) Result
	RequestPasswordReset(ctx context.Context, email string) Result
	UpdatePassword(ctx context.Context, password string) Result
}

// View is the form shown in the auth panel.
type View string

// Auth panel views.
const (
	ViewLogin    View = "login"
	ViewRegister View = "register"
	ViewReset    View = "reset"
)
