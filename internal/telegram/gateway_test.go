package telegram

import (
	"context"
	"testing"

	errs "github.com/wirefox/gramhook-server/internal/err"
	"github.com/wirefox/gramhook-server/internal/identity"
	"github.com/wirefox/gramhook-server/internal/media"
	"github.com/wirefox/gramhook-server/internal/model"

	"github.com/stretchr/testify/require"
)

// The session must be drivable by the supervisor and the gateway must
// satisfy the seams the pipeline stages accept.
var (
	_ Session               = (*Telegram)(nil)
	_ media.Downloader      = (*Gateway)(nil)
	_ identity.AvatarSource = (*Gateway)(nil)
)

func TestGatewayWithoutSession(t *testing.T) {
	g := NewGateway()

	_, err := g.Download(context.Background(), model.AttachmentRef{FileID: "x"})
	require.ErrorIs(t, err, errs.ErrorSessionUnavailable)

	_, err = g.ProfileOf(7)
	require.ErrorIs(t, err, errs.ErrorSessionUnavailable)

	_, err = g.AvatarOf(context.Background(), 7)
	require.ErrorIs(t, err, errs.ErrorSessionUnavailable)
}
