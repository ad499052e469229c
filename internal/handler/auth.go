package handler

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"clicky-game/internal/auth"
)

// AuthFactory builds a fresh Authenticator for a player.
type AuthFactory func() *auth.Authenticator

// AuthHandler handles the sign in commands. Each player gets their own
// Authenticator. A nil *AuthHandler means sign in is disabled.
type AuthHandler struct {
	factory AuthFactory
	changed func(playerID int64)
	timeout time.Duration
	now     func() time.Time

	mu      sync.Mutex
	players map[int64]*auth.Authenticator
}

// NewAuthHandler creates an AuthHandler. changed is called when a player's
// session changes; it must not be called while the player's lock is held.
func NewAuthHandler(factory AuthFactory, changed func(playerID int64)) *AuthHandler {
	if factory == nil {
		return nil
	}
	return &AuthHandler{
		factory: factory,
		changed: changed,
		timeout: DefaultTimeout,
		now:     time.Now,
		players: make(map[int64]*auth.Authenticator),
	}
}

// Enabled reports whether sign in is configured.
func (h *AuthHandler) Enabled() bool {
	return h != nil
}

// SetChanged replaces the session change callback.
func (h *AuthHandler) SetChanged(fn func(playerID int64)) {
	if h == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.changed = fn
}

func (h *AuthHandler) get(playerID int64) *auth.Authenticator {
	h.mu.Lock()
	defer h.mu.Unlock()
	if a, ok := h.players[playerID]; ok {
		return a
	}
	a := h.factory()
	a.Sessions().Subscribe(func(*auth.Session) {
		h.mu.Lock()
		changed := h.changed
		h.mu.Unlock()
		if changed != nil {
			changed(playerID)
		}
	})
	h.players[playerID] = a
	return a
}

// Status returns the auth panel view and the signed in email, if any. A
// session whose access token has expired counts as signed out.
func (h *AuthHandler) Status(playerID int64) (view, email string) {
	if h == nil {
		return "", ""
	}
	a := h.get(playerID)
	if s := a.Sessions().Current(); s != nil && !s.Expired(h.now()) {
		email = s.User.Email
		if email == "" {
			email = s.User.ID
		}
	}
	return string(a.View()), email
}

// SetView switches the player's auth panel form. Unknown views show login.
func (h *AuthHandler) SetView(playerID int64, view string) {
	if h == nil {
		return
	}
	v := auth.View(view)
	switch v {
	case auth.ViewLogin, auth.ViewRegister, auth.ViewReset:
	default:
		v = auth.ViewLogin
	}
	h.get(playerID).SetView(v)
}

// StartOAuth sends the player a button that opens the Google sign in page.
func (h *AuthHandler) StartOAuth(ctx context.Context, c tele.Context, playerID int64) error {
	if h == nil {
		return nil
	}
	res := h.get(playerID).SignInWithOAuth(ctx, "google")
	if !res.Success {
		return c.Send("❌ " + res.Error)
	}
	m := &tele.ReplyMarkup{}
	m.Inline(m.Row(m.URL("Continue with Google", res.Message)))
	return c.Send("Open the link, then send /oauth <code> with the code you are given.", m)
}

// HandleLogin handles /login <email> <password>.
func (h *AuthHandler) HandleLogin(c tele.Context) error {
	return h.run(c, func(ctx context.Context, a *auth.Authenticator, args []string) auth.Result {
		return a.SignInWithPassword(ctx, arg(args, 0), arg(args, 1))
	}, true)
}

// HandleRegister handles /register <email> <password> <confirm>.
func (h *AuthHandler) HandleRegister(c tele.Context) error {
	return h.run(c, func(ctx context.Context, a *auth.Authenticator, args []string) auth.Result {
		return a.Register(ctx, arg(args, 0), arg(args, 1), arg(args, 2))
	}, true)
}

// HandleResetPassword handles /reset_password <email>.
func (h *AuthHandler) HandleResetPassword(c tele.Context) error {
	return h.run(c, func(ctx context.Context, a *auth.Authenticator, args []string) auth.Result {
		return a.RequestPasswordReset(ctx, arg(args, 0))
	}, false)
}

// HandleChangePassword handles /password <new> <confirm>.
func (h *AuthHandler) HandleChangePassword(c tele.Context) error {
	return h.run(c, func(ctx context.Context, a *auth.Authenticator, args []string) auth.Result {
		return a.ChangePassword(ctx, arg(args, 0), arg(args, 1))
	}, true)
}

// HandleLogout handles /logout.
func (h *AuthHandler) HandleLogout(c tele.Context) error {
	return h.run(c, func(ctx context.Context, a *auth.Authenticator, _ []string) auth.Result {
		return a.SignOut(ctx)
	}, false)
}

// HandleGoogle handles /google.
func (h *AuthHandler) HandleGoogle(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	if h == nil {
		return c.Reply("Sign in is not available")
	}
	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()
	return h.StartOAuth(ctx, c, sender.ID)
}

// HandleOAuthCode handles /oauth <code>.
func (h *AuthHandler) HandleOAuthCode(c tele.Context) error {
	return h.run(c, func(ctx context.Context, a *auth.Authenticator, args []string) auth.Result {
		return a.CompleteOAuth(ctx, arg(args, 0))
	}, false)
}

// run executes op for the sender and replies with its result. Messages that
// carry a password are deleted from the chat first.
func (h *AuthHandler) run(c tele.Context, op func(context.Context, *auth.Authenticator, []string) auth.Result, secret bool) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	if h == nil {
		return c.Reply("Sign in is not available")
	}
	if secret {
		if err := c.Delete(); err != nil {
			log.Debug().Err(err).Int64("user_id", sender.ID).Msg("Could not delete credentials message")
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()
	res := op(ctx, h.get(sender.ID), c.Args())
	if !res.Success {
		return c.Send("❌ " + res.Error)
	}
	return c.Send("✅ " + res.Message)
}

func arg(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return ""
}
