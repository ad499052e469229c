package handler

import (
	"fmt"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v3"

	"clicky-game/internal/game"
	"clicky-game/internal/leaderboard"
	"clicky-game/internal/model"
)

// Callback actions carried in inline button data.
const (
	actionClick   = "click"
	actionHalf    = "half"
	actionPanel   = "panel"
	actionClose   = "close"
	actionDismiss = "dismiss"
	actionTheme   = "theme"
	actionSplit   = "split"
	actionLBReset = "lbreset"
	actionReset   = "reset"
	actionView    = "view"
	actionGoogle  = "google"
)

// parseCallback splits telebot callback data into an action and payload.
// Telebot may prefix the data with \f.
func parseCallback(data string) (action, payload string) {
	data = strings.TrimPrefix(data, "\f")
	action, payload, _ = strings.Cut(data, "|")
	return action, payload
}

// View is what the board message needs besides the game snapshot.
type View struct {
	Entries  []model.LeaderboardEntry
	TopLimit int
	// AuthView and SignedIn describe the auth panel; AuthEnabled hides it
	// when no identity server is configured.
	AuthEnabled bool
	AuthView    string
	SignedIn    string
}

// Render draws the board message for snap.
func Render(snap game.Snapshot, v View) (string, *tele.ReplyMarkup) {
	var b strings.Builder
	fmt.Fprintf(&b, "%s Score: %d\n", themeIcon(snap.Theme), snap.Score)
	if snap.CurrentUser != "" {
		fmt.Fprintf(&b, "👤 Playing as %s", snap.CurrentUser)
		if idx := leaderboard.IndexOf(v.Entries, snap.CurrentUser); idx >= 0 {
			fmt.Fprintf(&b, " (#%d)", idx+1)
		}
		b.WriteString("\n")
	}
	for _, n := range snap.Notifications {
		fmt.Fprintf(&b, "\n%s %s", kindIcon(n.Kind), n.Message)
	}
	if len(snap.Notifications) > 0 {
		b.WriteString("\n")
	}

	open := make(map[game.Panel]bool, len(snap.OpenPanels))
	for _, p := range snap.OpenPanels {
		open[p] = true
	}
	if open[game.PanelLeaderboard] {
		b.WriteString("\n")
		b.WriteString(renderLeaderboard(v.Entries, snap.CurrentUser, v.TopLimit, snap.SyncStatus))
	}
	if open[game.PanelDevSettings] {
		fmt.Fprintf(&b, "\n⚙️ Developer settings\nSplit button: %s\n", onOff(snap.SplitEnabled))
	}
	if open[game.PanelAuth] && v.AuthEnabled {
		b.WriteString("\n")
		b.WriteString(renderAuth(v))
	}

	return b.String(), keyboard(snap, open, v)
}

func renderLeaderboard(entries []model.LeaderboardEntry, current string, limit int, status leaderboard.SyncStatus) string {
	var b strings.Builder
	b.WriteString("🏆 Leaderboard")
	if status == leaderboard.StatusDegraded {
		b.WriteString(" (offline)")
	}
	b.WriteString("\n")
	if limit <= 0 || limit > len(entries) {
		limit = len(entries)
	}
	for i, e := range entries[:limit] {
		marker := "  "
		if current != "" && e.Name == current {
			marker = "👉"
		}
		fmt.Fprintf(&b, "%s%d. %s: %d\n", marker, i+1, e.Name, e.Score)
	}
	if current == "" {
		b.WriteString("\nUse /account <name> to join the leaderboard.\n")
	}
	return b.String()
}

func renderAuth(v View) string {
	if v.SignedIn != "" {
		return fmt.Sprintf("🔐 Signed in as %s\n/logout to sign out, /password <new> <confirm> to change password.\n", v.SignedIn)
	}
	switch v.AuthView {
	case "register":
		return "🔐 Create an account\n/register <email> <password> <confirm>\n"
	case "reset":
		return "🔐 Reset password\n/reset_password <email>\n"
	default:
		return "🔐 Sign in\n/login <email> <password>\n"
	}
}

func keyboard(snap game.Snapshot, open map[game.Panel]bool, v View) *tele.ReplyMarkup {
	m := &tele.ReplyMarkup{}
	var rows []tele.Row

	switch p := snap.Presentation.(type) {
	case game.TwoButtons:
		left, right := "🔥 Left", "❄️ Right"
		if p.ThemeChoicePending {
			left, right = "🔥 Choose Fire", "❄️ Choose Ice"
		}
		rows = append(rows, m.Row(
			m.Data(left, actionHalf, "left"),
			m.Data(right, actionHalf, "right"),
		))
	case game.Splitting:
		rows = append(rows, m.Row(m.Data("✨ "+buttonLabel(snap.Theme), actionClick)))
	default:
		rows = append(rows, m.Row(m.Data(buttonLabel(snap.Theme), actionClick)))
	}

	var nav []tele.Btn
	if snap.Features.Leaderboard {
		nav = append(nav, m.Data("🏆 Leaderboard", actionPanel, string(game.PanelLeaderboard)))
	}
	nav = append(nav, m.Data("⚙️ Settings", actionPanel, string(game.PanelDevSettings)))
	if v.AuthEnabled {
		nav = append(nav, m.Data("🔐 Account", actionPanel, string(game.PanelAuth)))
	}
	rows = append(rows, m.Row(nav...))

	if open[game.PanelDevSettings] {
		rows = append(rows,
			m.Row(
				m.Data("Reset leaderboard", actionLBReset),
				m.Data("Split: "+onOff(snap.SplitEnabled), actionSplit),
			),
			m.Row(m.Data("Reset game", actionReset)),
		)
		themes := []tele.Btn{
			m.Data("Default", actionTheme, string(model.ThemeDefault)),
			m.Data("Simple", actionTheme, string(model.ThemeSimple)),
		}
		if snap.Features.FireIceTheme {
			themes = append(themes,
				m.Data("Fire", actionTheme, string(model.ThemeFire)),
				m.Data("Ice", actionTheme, string(model.ThemeIce)),
			)
		}
		rows = append(rows, m.Row(themes...))
	}
	if open[game.PanelAuth] && v.AuthEnabled && v.SignedIn == "" {
		rows = append(rows, m.Row(
			m.Data("Sign in", actionView, "login"),
			m.Data("Register", actionView, "register"),
			m.Data("Forgot password", actionView, "reset"),
		), m.Row(m.Data("Continue with Google", actionGoogle)))
	}
	if len(snap.Notifications) > 0 {
		var dismiss []tele.Btn
		for _, n := range snap.Notifications {
			dismiss = append(dismiss, m.Data(kindIcon(n.Kind)+" OK", actionDismiss, strconv.FormatUint(n.ID, 10)))
		}
		rows = append(rows, m.Row(dismiss...))
	}
	if len(snap.OpenPanels) > 0 {
		var closers []tele.Btn
		for _, p := range snap.OpenPanels {
			closers = append(closers, m.Data("✖️ "+panelTitle(p), actionClose, string(p)))
		}
		if len(closers) > 1 {
			closers = append(closers, m.Data("✖️ All", actionClose))
		}
		rows = append(rows, m.Row(closers...))
	}

	m.Inline(rows...)
	return m
}

func panelTitle(p game.Panel) string {
	switch p {
	case game.PanelLeaderboard:
		return "Leaderboard"
	case game.PanelDevSettings:
		return "Settings"
	case game.PanelAuth:
		return "Account"
	default:
		return string(p)
	}
}

func buttonLabel(theme model.ButtonTheme) string {
	switch theme {
	case model.ThemeSimple:
		return "✨ Click me"
	case model.ThemeFire:
		return "🔥 Click me"
	case model.ThemeIce:
		return "❄️ Click me"
	default:
		return "👆 Click me"
	}
}

func themeIcon(theme model.ButtonTheme) string {
	switch theme {
	case model.ThemeFire:
		return "🔥"
	case model.ThemeIce:
		return "❄️"
	case model.ThemeSimple:
		return "✨"
	default:
		return "🖱"
	}
}

func kindIcon(k game.NotificationKind) string {
	switch k {
	case game.KindError:
		return "❌"
	case game.KindSuccess:
		return "✅"
	default:
		return "🎊"
	}
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

// storedMessage converts a sent message into an editable reference.
func storedMessage(msg *tele.Message) tele.StoredMessage {
	return tele.StoredMessage{MessageID: strconv.Itoa(msg.ID), ChatID: msg.Chat.ID}
}
