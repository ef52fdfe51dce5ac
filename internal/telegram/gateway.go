package telegram

import (
	"context"
	"io"
	"sync/atomic"

	errs "github.com/wirefox/gramhook-server/internal/err"
	"github.com/wirefox/gramhook-server/internal/model"
)

// Gateway is the stable handle pipeline stages hold onto while the
// supervisor replaces sessions underneath. Media download and identity
// lookups go through whichever session is currently live; between
// sessions they fail fast and the caller degrades.
type Gateway struct {
	current atomic.Pointer[Telegram]
}

func NewGateway() *Gateway {
	return &Gateway{}
}

// Swap points the gateway at a freshly dialed session.
func (g *Gateway) Swap(t *Telegram) {
	g.current.Store(t)
}

func (g *Gateway) session() (*Telegram, error) {
	t := g.current.Load()
	if t == nil {
		return nil, errs.ErrorSessionUnavailable
	}

	return t, nil
}

// Download implements the media pipeline's downloader over the live session.
func (g *Gateway) Download(ctx context.Context, ref model.AttachmentRef) (io.ReadCloser, error) {
	t, err := g.session()
	if err != nil {
		return nil, err
	}

	return t.Download(ctx, ref)
}

// ProfileOf implements the identity resolver's profile lookup.
func (g *Gateway) ProfileOf(userID int64) (*model.Sender, error) {
	t, err := g.session()
	if err != nil {
		return nil, err
	}

	return t.ProfileOf(userID)
}

// AvatarOf implements the identity resolver's avatar fetch.
func (g *Gateway) AvatarOf(ctx context.Context, userID int64) (io.ReadCloser, error) {
	t, err := g.session()
	if err != nil {
		return nil, err
	}

	return t.AvatarOf(ctx, userID)
}
