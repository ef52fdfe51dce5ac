package converters

import (
	"fmt"

	"github.com/wirefox/gramhook-server/internal/model"
	tele "gopkg.in/telebot.v3"
)

// Convert a telebot message to a pipeline inbound message.
func InboundFromTG(m *tele.Message, selfID int64) *model.InboundMessage {
	// If the message is nil then return nil
	if m == nil {
		return nil
	}

	// Topic derivation: trust the thread id only when the platform itself
	// flags the message as a forum topic message. A bare reply thread id
	// outside a forum never selects a topic route.
	topic := model.NoTopic
	if m.TopicMessage && m.ThreadID > 0 {
		topic = int64(m.ThreadID)
	}

	// Media captions take the place of the body for media messages.
	text := m.Text
	if text == "" {
		text = m.Caption
	}

	sender := SenderFromTG(m.Sender)
	if sender == nil && m.SenderChat != nil {
		// Channel posts arrive without a user sender; render them under
		// the channel's own title.
		sender = &model.Sender{
			ID:        m.SenderChat.ID,
			FirstName: m.SenderChat.Title,
			Username:  m.SenderChat.Username,
		}
	}

	var senderID int64
	if sender != nil {
		senderID = sender.ID
	}

	return &model.InboundMessage{
		MessageID:   int64(m.ID),
		Origin:      OriginFromTG(m.Chat),
		TopicID:     topic,
		Sender:      sender,
		SenderID:    senderID,
		Outgoing:    m.Sender != nil && m.Sender.ID == selfID,
		Text:        text,
		Attachments: AttachmentsFromTG(m),
		Unixtime:    m.Unixtime,
	}
}

// Convert a telebot chat to the raw origin descriptor. The ordered decision
// table lives in model.Origin; this only fills the one matching field.
func OriginFromTG(chat *tele.Chat) model.Origin {
	if chat == nil {
		return model.Origin{}
	}

	switch chat.Type {
	case tele.ChatChannel, tele.ChatChannelPrivate, tele.ChatSuperGroup:
		return model.Origin{ChannelID: model.ChannelIDFromGroup(chat.ID)}
	case tele.ChatGroup:
		return model.Origin{ChatID: -chat.ID}
	case tele.ChatPrivate:
		return model.Origin{UserID: chat.ID}
	default:
		return model.Origin{}
	}
}

// Convert a telebot user to the pipeline sender descriptor.
func SenderFromTG(u *tele.User) *model.Sender {
	if u == nil {
		return nil
	}

	return &model.Sender{
		ID:        u.ID,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Username:  u.Username,
	}
}

// Convert the media payload of a telebot message to attachment references.
// A single message carries at most one media object; order is preserved for
// the day that changes.
func AttachmentsFromTG(m *tele.Message) []model.AttachmentRef {
	var refs []model.AttachmentRef

	if m.Photo != nil {
		refs = append(refs, model.AttachmentRef{
			Kind:     model.KindImage,
			FileID:   m.Photo.FileID,
			Filename: fmt.Sprintf("photo_%s.jpg", m.Photo.UniqueID),
		})
	}

	if m.Sticker != nil {
		refs = append(refs, model.AttachmentRef{
			Kind:     model.KindImage,
			FileID:   m.Sticker.FileID,
			Filename: fmt.Sprintf("sticker_%s.webp", m.Sticker.UniqueID),
		})
	}

	if m.Video != nil {
		refs = append(refs, model.AttachmentRef{
			Kind:     model.KindVideo,
			FileID:   m.Video.FileID,
			Filename: fallbackName(m.Video.FileName, "video_%s.mp4", m.Video.UniqueID),
		})
	}

	if m.Animation != nil {
		refs = append(refs, model.AttachmentRef{
			Kind:     model.KindVideo,
			FileID:   m.Animation.FileID,
			Filename: fallbackName(m.Animation.FileName, "animation_%s.mp4", m.Animation.UniqueID),
		})
	}

	if m.VideoNote != nil {
		refs = append(refs, model.AttachmentRef{
			Kind:     model.KindVideo,
			FileID:   m.VideoNote.FileID,
			Filename: fmt.Sprintf("video_note_%s.mp4", m.VideoNote.UniqueID),
		})
	}

	if m.Audio != nil {
		refs = append(refs, model.AttachmentRef{
			Kind:     model.KindAudio,
			FileID:   m.Audio.FileID,
			Filename: fallbackName(m.Audio.FileName, "audio_%s.mp3", m.Audio.UniqueID),
		})
	}

	if m.Voice != nil {
		refs = append(refs, model.AttachmentRef{
			Kind:     model.KindAudio,
			FileID:   m.Voice.FileID,
			Filename: fmt.Sprintf("voice_%s.ogg", m.Voice.UniqueID),
		})
	}

	if m.Document != nil {
		refs = append(refs, model.AttachmentRef{
			Kind:     model.KindDocument,
			FileID:   m.Document.FileID,
			Filename: fallbackName(m.Document.FileName, "document_%s", m.Document.UniqueID),
		})
	}

	return refs
}

// fallbackName uses the declared filename when present, a synthesized one
// otherwise.
func fallbackName(declared, format, uniqueID string) string {
	if declared != "" {
		return declared
	}

	return fmt.Sprintf(format, uniqueID)
}
