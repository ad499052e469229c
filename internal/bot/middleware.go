package bot

import (
	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"clicky-game/internal/config"
	"clicky-game/internal/metrics"
)

// AdminMiddleware rejects updates from users not listed in admin.ids.
func AdminMiddleware(cfg *config.Config) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			sender := c.Sender()
			if sender == nil {
				return nil
			}
			if !cfg.IsAdmin(sender.ID) {
				log.Warn().
					Int64("user_id", sender.ID).
					Str("command", c.Text()).
					Msg("Non-admin attempted admin command")
				return c.Reply("❌ Permission denied: admin only")
			}
			return next(c)
		}
	}
}

// LoggingMiddleware logs every incoming update at debug level.
func LoggingMiddleware() tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			ev := log.Debug()
			if sender := c.Sender(); sender != nil {
				ev = ev.Int64("user_id", sender.ID).Str("username", sender.Username)
			}
			if chat := c.Chat(); chat != nil {
				ev = ev.Int64("chat_id", chat.ID).Str("chat_type", string(chat.Type))
			}
			if cb := c.Callback(); cb != nil {
				ev = ev.Str("callback", cb.Data)
			}
			ev.Str("text", c.Text()).Msg("Received update")
			return next(c)
		}
	}
}

// RecoveryMiddleware turns a handler panic into a logged error and a reply.
func RecoveryMiddleware(m *metrics.Metrics) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					m.BotUpdateError()
					log.Error().
						Interface("panic", r).
						Msg("Recovered from panic in handler")
					err = c.Reply("❌ Internal error, please try again later")
				}
			}()
			return next(c)
		}
	}
}
