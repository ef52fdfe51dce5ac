package telegram

import (
	config "github.com/wirefox/gramhook-server/internal/config"
	"github.com/wirefox/gramhook-server/internal/storage"

	tele "gopkg.in/telebot.v3"
)

// Check if the chat is allowed, an empty allowlist admits every chat.
func allowedChats(config *config.Config, chatID int64) bool {
	for _, id := range config.Telegram.Chats {
		if id == chatID {
			return true
		}
	}

	return len(config.Telegram.Chats) == 0
}

// allowedChatsMiddleware drops updates from chats outside the configured
// allowlist before they reach the forwarding handler.
func allowedChatsMiddleware(config *config.Config) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			chat := c.Chat()
			if chat == nil || !allowedChats(config, chat.ID) {
				return nil
			}

			return next(c)
		}
	}
}

// persistOffsetMiddleware stores the update offset after the handler
// finishes, so the next session resumes behind everything already
// processed. A message still in flight when the process dies is lost
// rather than replayed.
func persistOffsetMiddleware(db *storage.Storage, onError func(error)) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			err := next(c)

			if updateID := c.Update().ID; updateID > 0 {
				if storeErr := db.SetUpdateOffset(updateID); storeErr != nil {
					onError(storeErr)
				}
			}

			return err
		}
	}
}
