package handler

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v3"

	"clicky-game/internal/auth"
	"clicky-game/internal/game"
	"clicky-game/internal/leaderboard"
	"clicky-game/internal/metrics"
	"clicky-game/internal/model"
	"clicky-game/internal/pkg/lock"
	"clicky-game/internal/storage"
)

// fakeContext implements the parts of tele.Context the handlers use.
type fakeContext struct {
	tele.Context
	sender   *tele.User
	callback *tele.Callback
	args     []string
	text     string

	sent      []string
	edits     []string
	responses []string
	deleted   bool
}

func (c *fakeContext) Sender() *tele.User        { return c.sender }
func (c *fakeContext) Recipient() tele.Recipient { return c.sender }
func (c *fakeContext) Callback() *tele.Callback  { return c.callback }
func (c *fakeContext) Args() []string            { return c.args }
func (c *fakeContext) Text() string              { return c.text }
func (c *fakeContext) Delete() error             { c.deleted = true; return nil }

func (c *fakeContext) Send(what interface{}, _ ...interface{}) error {
	c.sent = append(c.sent, what.(string))
	return nil
}

func (c *fakeContext) Reply(what interface{}, opts ...interface{}) error {
	return c.Send(what, opts...)
}

func (c *fakeContext) Edit(what interface{}, _ ...interface{}) error {
	c.edits = append(c.edits, what.(string))
	return nil
}

func (c *fakeContext) Respond(resp ...*tele.CallbackResponse) error {
	for _, r := range resp {
		c.responses = append(c.responses, r.Text)
	}
	return nil
}

type fakeMessenger struct {
	mu    sync.Mutex
	sent  []string
	edits []string
}

func (m *fakeMessenger) Send(to tele.Recipient, what interface{}, _ ...interface{}) (*tele.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, what.(string))
	return &tele.Message{ID: 100, Chat: &tele.Chat{ID: 1}}, nil
}

func (m *fakeMessenger) Edit(_ tele.Editable, what interface{}, _ ...interface{}) (*tele.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.edits = append(m.edits, what.(string))
	return &tele.Message{ID: 100}, nil
}

func newTestHandler(t *testing.T) (*GameHandler, *game.Registry, *fakeMessenger) {
	t.Helper()
	games := game.NewRegistry(func(int64) (*game.Game, error) {
		store := storage.NewMemoryStore()
		return game.New(game.Options{
			Store: store,
			Board: leaderboard.NewSynchronizer(nil, store, nil),
		}), nil
	})
	t.Cleanup(games.CloseAll)

	h := NewGameHandler(games, lock.NewPlayerLock(), metrics.New(), nil, 10)
	api := &fakeMessenger{}
	h.SetMessenger(api)
	return h, games, api
}

func press(h *GameHandler, userID int64, data string) *fakeContext {
	c := &fakeContext{
		sender:   &tele.User{ID: userID},
		callback: &tele.Callback{Data: data, Message: &tele.Message{ID: 100, Chat: &tele.Chat{ID: userID}}},
	}
	_ = h.HandleCallback(c)
	return c
}

func TestParseCallback(t *testing.T) {
	tests := []struct {
		data    string
		action  string
		payload string
	}{
		{"\fclick", "click", ""},
		{"click", "click", ""},
		{"\fhalf|left", "half", "left"},
		{"\fpanel|devSettings", "panel", "devSettings"},
		{"", "", ""},
	}
	for _, tt := range tests {
		action, payload := parseCallback(tt.data)
		assert.Equal(t, tt.action, action, tt.data)
		assert.Equal(t, tt.payload, payload, tt.data)
	}
}

func buttons(m *tele.ReplyMarkup) []string {
	var out []string
	for _, row := range m.InlineKeyboard {
		for _, b := range row {
			out = append(out, b.Text)
		}
	}
	return out
}

func TestRender_Presentations(t *testing.T) {
	_, m := Render(game.Snapshot{Presentation: game.Single{}, Theme: model.ThemeDefault}, View{})
	assert.Contains(t, buttons(m), "👆 Click me")
	assert.NotContains(t, buttons(m), "🏆 Leaderboard")
	assert.NotContains(t, buttons(m), "🔐 Account")

	_, m = Render(game.Snapshot{Presentation: game.TwoButtons{ThemeChoicePending: true}}, View{})
	assert.Contains(t, buttons(m), "🔥 Choose Fire")
	assert.Contains(t, buttons(m), "❄️ Choose Ice")

	_, m = Render(game.Snapshot{Presentation: game.TwoButtons{}}, View{AuthEnabled: true})
	assert.Contains(t, buttons(m), "🔥 Left")
	assert.Contains(t, buttons(m), "🔐 Account")
}

func TestRender_LeaderboardPanel(t *testing.T) {
	snap := game.Snapshot{
		Score:        30,
		Presentation: game.Single{},
		Features:     model.UnlockedFeatures{SimpleButton: true, Leaderboard: true},
		CurrentUser:  "bob",
		OpenPanels:   []game.Panel{game.PanelLeaderboard},
		Notifications: []game.Notification{
			{ID: 1, Kind: game.KindUnlock, Message: "🎉 Unlocked: Leaderboard Feature!"},
		},
	}
	entries := []model.LeaderboardEntry{{Name: "alice", Score: 90}, {Name: "bob", Score: 30}}

	text, m := Render(snap, View{Entries: entries, TopLimit: 10})
	assert.Contains(t, text, "Score: 30")
	assert.Contains(t, text, "Playing as bob (#2)")
	assert.Contains(t, text, "👉2. bob: 30")
	assert.Contains(t, text, "Unlocked: Leaderboard Feature!")
	assert.Contains(t, buttons(m), "✖️ Leaderboard")
	assert.NotContains(t, buttons(m), "✖️ All")
	assert.Contains(t, buttons(m), "🎊 OK")
	assert.Contains(t, buttons(m), "🏆 Leaderboard")
}

func TestRender_TopLimit(t *testing.T) {
	entries := leaderboard.Seed(leaderboard.DefaultRand, 20)
	text := renderLeaderboard(entries, "", 5, leaderboard.StatusDegraded)
	assert.Contains(t, text, "(offline)")
	assert.Contains(t, text, "5. ")
	assert.NotContains(t, text, "6. ")
}

func TestRender_PendingIsNotOffline(t *testing.T) {
	entries := leaderboard.Seed(leaderboard.DefaultRand, 3)
	assert.NotContains(t, renderLeaderboard(entries, "", 5, leaderboard.StatusPending), "(offline)")
}

func TestGameHandler_StartAndClick(t *testing.T) {
	h, games, api := newTestHandler(t)

	start := &fakeContext{sender: &tele.User{ID: 1}}
	require.NoError(t, h.HandleStart(start))
	require.Len(t, api.sent, 1)
	assert.Contains(t, api.sent[0], "Score: 0")
	assert.Equal(t, 1, games.Count())

	var c *fakeContext
	for i := 0; i < 10; i++ {
		c = press(h, 1, "\fclick")
	}
	require.NotEmpty(t, c.edits)
	last := c.edits[len(c.edits)-1]
	assert.Contains(t, last, "Score: 10")
	assert.Contains(t, last, "Gradient Button Theme")

	g, ok := games.Lookup(1)
	require.True(t, ok)
	assert.Equal(t, model.ThemeSimple, g.Snapshot().Theme)

	h.Refresh(1)
	assert.NotEmpty(t, api.edits)
}

func TestGameHandler_LockedLeaderboardPanel(t *testing.T) {
	h, _, _ := newTestHandler(t)
	c := press(h, 2, "\fpanel|leaderboard")
	require.Len(t, c.responses, 1)
	assert.Contains(t, c.responses[0], "25 clicks")
}

func TestGameHandler_SettingsActions(t *testing.T) {
	h, games, _ := newTestHandler(t)

	press(h, 3, "\fpanel|devSettings")
	g, _ := games.Lookup(3)
	assert.Equal(t, []game.Panel{game.PanelDevSettings}, g.Snapshot().OpenPanels)

	c := press(h, 3, "\fsplit")
	assert.Equal(t, []string{"Split button enabled"}, c.responses)
	assert.True(t, g.Snapshot().SplitEnabled)

	press(h, 3, "\ftheme|simple")
	assert.Equal(t, model.ThemeSimple, g.Snapshot().Theme)

	c = press(h, 3, "\ftheme|fire")
	assert.Contains(t, c.responses[0], "fire and ice")

	press(h, 3, "\flbreset")
	assert.Len(t, g.LeaderboardEntries(), 23)

	press(h, 3, "\fclick")
	c = press(h, 3, "\freset")
	require.Len(t, c.edits, 1)
	assert.Contains(t, c.edits[0], "Game reset")
	assert.Equal(t, int64(0), g.Snapshot().Score)
	assert.Empty(t, g.Snapshot().OpenPanels)

	press(h, 3, "\fpanel|devSettings")
	press(h, 3, "\fclose")
	assert.Empty(t, g.Snapshot().OpenPanels)
}

func TestGameHandler_ClosePanel(t *testing.T) {
	h, games, _ := newTestHandler(t)
	press(h, 6, "\fpanel|devSettings")
	g, _ := games.Lookup(6)
	require.NoError(t, g.OpenPanel(game.PanelAuth))

	_, markup := Render(g.Snapshot(), View{AuthEnabled: true})
	var closers []string
	for _, row := range markup.InlineKeyboard {
		for _, btn := range row {
			if strings.HasPrefix(btn.Text, "✖️") {
				closers = append(closers, btn.Text)
			}
		}
	}
	assert.Equal(t, []string{"✖️ Settings", "✖️ Account", "✖️ All"}, closers)

	press(h, 6, "\fclose|auth")
	assert.Equal(t, []game.Panel{game.PanelDevSettings}, g.Snapshot().OpenPanels)

	press(h, 6, "\fclose|devSettings")
	assert.Empty(t, g.Snapshot().OpenPanels)
}

func TestGameHandler_TextDismissesTopPanel(t *testing.T) {
	h, games, api := newTestHandler(t)
	press(h, 8, "\fpanel|devSettings")
	g, _ := games.Lookup(8)
	require.NoError(t, g.OpenPanel(game.PanelAuth))

	require.NoError(t, h.HandleText(&fakeContext{sender: &tele.User{ID: 8}, text: "/unknown"}))
	assert.Len(t, g.Snapshot().OpenPanels, 2)

	require.NoError(t, h.HandleText(&fakeContext{sender: &tele.User{ID: 8}, text: "hello"}))
	assert.Equal(t, []game.Panel{game.PanelDevSettings}, g.Snapshot().OpenPanels)
	assert.NotEmpty(t, api.edits)

	require.NoError(t, h.HandleText(&fakeContext{sender: &tele.User{ID: 9}, text: "hello"}))
	_, loaded := games.Lookup(9)
	assert.False(t, loaded)
}

func TestGameHandler_DismissNotification(t *testing.T) {
	h, games, _ := newTestHandler(t)
	press(h, 11, "\freset")
	g, _ := games.Lookup(11)
	notes := g.Notifications()
	require.Len(t, notes, 1)

	_, markup := Render(g.Snapshot(), View{})
	var data []string
	for _, row := range markup.InlineKeyboard {
		for _, btn := range row {
			if btn.Unique == "dismiss" {
				data = append(data, btn.Data)
			}
		}
	}
	assert.Equal(t, []string{strconv.FormatUint(notes[0].ID, 10)}, data)

	c := press(h, 11, "\fdismiss|"+strconv.FormatUint(notes[0].ID, 10))
	assert.Empty(t, g.Notifications())
	assert.NotContains(t, c.edits[0], "Game reset")

	press(h, 11, "\fdismiss|bogus")
}

func TestGameHandler_Account(t *testing.T) {
	h, games, _ := newTestHandler(t)

	c := &fakeContext{sender: &tele.User{ID: 4}}
	require.NoError(t, h.HandleAccount(c))
	require.Len(t, c.sent, 1)
	assert.Contains(t, c.sent[0], "Please enter a username")

	c = &fakeContext{sender: &tele.User{ID: 4}, args: []string{strings.Repeat("x", 21)}}
	require.NoError(t, h.HandleAccount(c))
	assert.Contains(t, c.sent[0], "20 characters or less")

	c = &fakeContext{sender: &tele.User{ID: 4}, args: []string{"Clicky", "McClickface"}}
	require.NoError(t, h.HandleAccount(c))
	assert.Contains(t, c.sent[0], "Clicky McClickface")

	g, _ := games.Lookup(4)
	name, ok := g.CurrentUser()
	require.True(t, ok)
	assert.Equal(t, "Clicky McClickface", name)

	c = &fakeContext{sender: &tele.User{ID: 4}}
	require.NoError(t, h.HandleRank(c))
	assert.Contains(t, c.sent[0], "Clicky McClickface is #")

	c = &fakeContext{sender: &tele.User{ID: 4}}
	require.NoError(t, h.HandleTop(c))
	assert.Contains(t, c.sent[0], "🏆 Leaderboard")
}

func TestGameHandler_RankWithoutAccount(t *testing.T) {
	h, _, _ := newTestHandler(t)
	c := &fakeContext{sender: &tele.User{ID: 5}}
	require.NoError(t, h.HandleRank(c))
	assert.Contains(t, c.sent[0], "/account")
}

func TestAuthHandler_Disabled(t *testing.T) {
	var h *AuthHandler
	assert.False(t, h.Enabled())

	c := &fakeContext{sender: &tele.User{ID: 1}, args: []string{"a@b.co", "password1"}}
	require.NoError(t, h.HandleLogin(c))
	assert.Equal(t, []string{"Sign in is not available"}, c.sent)
	assert.False(t, c.deleted)

	view, email := h.Status(1)
	assert.Empty(t, view)
	assert.Empty(t, email)
	require.NoError(t, h.StartOAuth(context.Background(), c, 1))
}

func TestAuthHandler_ExpiredSessionIsSignedOut(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	h := NewAuthHandler(func() *auth.Authenticator {
		return auth.NewAuthenticator(auth.NewGoTrue(auth.GoTrueConfig{URL: "http://localhost"}), nil, 0)
	}, nil)
	h.now = func() time.Time { return now }

	h.get(1).Sessions().Set(&auth.Session{
		AccessToken: "token",
		ExpiresAt:   now.Add(time.Minute),
		User:        auth.User{Email: "player@example.com"},
	})
	_, email := h.Status(1)
	assert.Equal(t, "player@example.com", email)

	now = now.Add(time.Minute)
	_, email = h.Status(1)
	assert.Empty(t, email)
}
