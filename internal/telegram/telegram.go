// Library repository: https://github.com/tucnak/telebot

package telegram

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	config "github.com/wirefox/gramhook-server/internal/config"
	"github.com/wirefox/gramhook-server/internal/converters"
	"github.com/wirefox/gramhook-server/internal/model"
	"github.com/wirefox/gramhook-server/internal/storage"

	log "github.com/wirefox/gramhook-server/internal/log"
	tele "gopkg.in/telebot.v3"
	mw "gopkg.in/telebot.v3/middleware"
)

// Handler consumes one inbound message. It may block while the forwarding
// queue is full; the poller buffers behind it.
type Handler func(msg *model.InboundMessage)

type Telegram struct {
	bot    *tele.Bot
	logger *slog.Logger
}

// New performs the platform handshake and wires every forwardable event
// into the handler. The long poller resumes from the offset persisted by
// the previous session so a restart does not replay old updates.
func New(db *storage.Storage, config *config.Config, logger *slog.Logger, client *http.Client, onMessage Handler) (*Telegram, error) {
	offset, err := db.UpdateOffset()
	if err != nil {
		return nil, err
	}

	pref := tele.Settings{
		Token: config.Telegram.Token,
		Poller: &tele.LongPoller{
			Timeout:      config.Telegram.Timeout,
			LastUpdateID: offset,
		},
		OnError: func(err error, _ tele.Context) {
			logger.Error("telegram error", slog.String("error", err.Error()))
		},
		Client: client,
	}

	bot, err := tele.NewBot(pref)
	if err != nil {
		return nil, err
	}

	// Global-scoped middleware:
	bot.Use(mw.Recover())
	bot.Use(mw.AutoRespond())
	bot.Use(mw.Logger(log.NewLogAdapter(logger)))
	bot.Use(allowedChatsMiddleware(config))
	bot.Use(persistOffsetMiddleware(db, func(err error) {
		logger.Error("offset persistence error", slog.String("error", err.Error()))
	}))

	forward := func(c tele.Context) error {
		msg := converters.InboundFromTG(c.Message(), bot.Me.ID)
		if msg == nil {
			return nil
		}

		onMessage(msg)

		return nil
	}

	// Every forwardable event funnels into the same handler; the
	// converters pull text and media off the message uniformly.
	for _, event := range []string{
		tele.OnText,
		tele.OnPhoto,
		tele.OnSticker,
		tele.OnVideo,
		tele.OnAnimation,
		tele.OnVideoNote,
		tele.OnVoice,
		tele.OnAudio,
		tele.OnDocument,
		tele.OnChannelPost,
	} {
		bot.Handle(event, forward)
	}

	return &Telegram{
		bot:    bot,
		logger: logger,
	}, nil
}

// Start blocks, polling for updates, until Stop is called.
func (t *Telegram) Start() {
	t.bot.Start()
}

func (t *Telegram) Stop() {
	t.bot.Stop()
}

// Me describes the authenticated session account.
func (t *Telegram) Me() *model.Sender {
	return converters.SenderFromTG(t.bot.Me)
}

// Healthy probes the session with a getMe round trip. The long poller
// swallows transport errors internally, so this probe is how the
// supervisor detects a dead session.
func (t *Telegram) Healthy(ctx context.Context) error {
	done := make(chan error, 1)

	go func() {
		_, err := t.bot.Raw("getMe", nil)
		done <- err
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Download materializes an attachment from the platform media store.
func (t *Telegram) Download(_ context.Context, ref model.AttachmentRef) (io.ReadCloser, error) {
	return t.bot.File(&tele.File{FileID: ref.FileID})
}

// ProfileOf fetches sender metadata by id, for events that carried none.
func (t *Telegram) ProfileOf(userID int64) (*model.Sender, error) {
	chat, err := t.bot.ChatByID(userID)
	if err != nil {
		return nil, err
	}

	return &model.Sender{
		ID:        chat.ID,
		FirstName: chat.FirstName,
		LastName:  chat.LastName,
		Username:  chat.Username,
	}, nil
}

// AvatarOf downloads the sender's current profile photo.
func (t *Telegram) AvatarOf(_ context.Context, userID int64) (io.ReadCloser, error) {
	photos, err := t.bot.ProfilePhotosOf(&tele.User{ID: userID})
	if err != nil {
		return nil, err
	}

	if len(photos) == 0 {
		return nil, fmt.Errorf("user %d has no profile photo", userID)
	}

	return t.bot.File(&photos[0].File)
}
