package converters

import (
	"testing"

	"github.com/wirefox/gramhook-server/internal/model"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v3"
)

func TestOriginFromTG(t *testing.T) {
	tests := []struct {
		name          string
		chat          *tele.Chat
		expectedGroup int64
	}{
		{"supergroup", &tele.Chat{ID: -1001234567890, Type: tele.ChatSuperGroup}, -1001234567890},
		{"channel", &tele.Chat{ID: -1009876543210, Type: tele.ChatChannel}, -1009876543210},
		{"basic group", &tele.Chat{ID: -987654, Type: tele.ChatGroup}, -987654},
		{"private", &tele.Chat{ID: 42, Type: tele.ChatPrivate}, 42},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			origin := OriginFromTG(tt.chat)

			// The derived routing group id must round-trip back to the
			// platform chat id.
			groupID, ok := origin.GroupID()
			require.True(t, ok)
			require.Equal(t, tt.expectedGroup, groupID)
		})
	}

	t.Run("nil chat", func(t *testing.T) {
		require.True(t, OriginFromTG(nil).IsZero())
	})

	t.Run("unknown chat type", func(t *testing.T) {
		require.True(t, OriginFromTG(&tele.Chat{ID: 1, Type: "something"}).IsZero())
	})
}

func TestInboundFromTGTopicGating(t *testing.T) {
	chat := &tele.Chat{ID: -1001234567890, Type: tele.ChatSuperGroup}
	sender := &tele.User{ID: 7, FirstName: "Ada"}

	t.Run("confirmed forum topic", func(t *testing.T) {
		msg := InboundFromTG(&tele.Message{
			ID: 1, Chat: chat, Sender: sender,
			ThreadID: 13, TopicMessage: true,
			Text: "hello",
		}, 0)
		require.Equal(t, int64(13), msg.TopicID)
	})

	t.Run("reply thread without forum confirmation", func(t *testing.T) {
		msg := InboundFromTG(&tele.Message{
			ID: 2, Chat: chat, Sender: sender,
			ThreadID: 13, TopicMessage: false,
			Text: "hello",
		}, 0)
		require.Equal(t, model.NoTopic, msg.TopicID)
	})
}

func TestInboundFromTG(t *testing.T) {
	chat := &tele.Chat{ID: -1001234567890, Type: tele.ChatSuperGroup}

	t.Run("caption replaces empty text", func(t *testing.T) {
		msg := InboundFromTG(&tele.Message{
			ID: 3, Chat: chat, Sender: &tele.User{ID: 7},
			Caption: "look at this",
			Photo:   &tele.Photo{File: tele.File{FileID: "f1", UniqueID: "u1"}},
		}, 0)
		require.Equal(t, "look at this", msg.Text)
		require.Len(t, msg.Attachments, 1)
	})

	t.Run("own messages are flagged outgoing", func(t *testing.T) {
		msg := InboundFromTG(&tele.Message{
			ID: 4, Chat: chat, Sender: &tele.User{ID: 99}, Text: "self",
		}, 99)
		require.True(t, msg.Outgoing)
	})

	t.Run("channel post renders under the channel title", func(t *testing.T) {
		msg := InboundFromTG(&tele.Message{
			ID: 5, Chat: chat,
			SenderChat: &tele.Chat{ID: -1001234567890, Title: "News Wire", Username: "newswire"},
			Text:       "breaking",
		}, 0)
		require.NotNil(t, msg.Sender)
		require.Equal(t, "News Wire", msg.Sender.FirstName)
		require.Equal(t, "newswire", msg.Sender.Username)
		require.False(t, msg.Outgoing)
	})

	t.Run("nil message", func(t *testing.T) {
		require.Nil(t, InboundFromTG(nil, 0))
	})
}

func TestAttachmentsFromTG(t *testing.T) {
	t.Run("photo gets a synthesized jpg name", func(t *testing.T) {
		refs := AttachmentsFromTG(&tele.Message{
			Photo: &tele.Photo{File: tele.File{FileID: "f1", UniqueID: "u1"}},
		})
		require.Len(t, refs, 1)
		require.Equal(t, model.KindImage, refs[0].Kind)
		require.Equal(t, "photo_u1.jpg", refs[0].Filename)
	})

	t.Run("document keeps its declared name", func(t *testing.T) {
		refs := AttachmentsFromTG(&tele.Message{
			Document: &tele.Document{File: tele.File{FileID: "f2", UniqueID: "u2"}, FileName: "report.pdf"},
		})
		require.Len(t, refs, 1)
		require.Equal(t, model.KindDocument, refs[0].Kind)
		require.Equal(t, "report.pdf", refs[0].Filename)
	})

	t.Run("voice is audio", func(t *testing.T) {
		refs := AttachmentsFromTG(&tele.Message{
			Voice: &tele.Voice{File: tele.File{FileID: "f3", UniqueID: "u3"}},
		})
		require.Len(t, refs, 1)
		require.Equal(t, model.KindAudio, refs[0].Kind)
		require.Equal(t, "voice_u3.ogg", refs[0].Filename)
	})

	t.Run("animation is video", func(t *testing.T) {
		refs := AttachmentsFromTG(&tele.Message{
			Animation: &tele.Animation{File: tele.File{FileID: "f4", UniqueID: "u4"}},
		})
		require.Len(t, refs, 1)
		require.Equal(t, model.KindVideo, refs[0].Kind)
	})

	t.Run("text only means no attachments", func(t *testing.T) {
		require.Empty(t, AttachmentsFromTG(&tele.Message{Text: "plain"}))
	})
}
