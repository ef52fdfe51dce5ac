package model

// Sender is the platform-free sender descriptor carried by an inbound
// message. Nil on InboundMessage means the profile entity itself was
// unreachable and identity must be synthesized from the raw id.
type Sender struct {
	ID        int64  // Unique sender id.
	FirstName string // First name, may be empty.
	LastName  string // Last name, may be empty.
	Username  string // Handle without the leading @, may be empty.
}

// InboundMessage is one source-platform event normalized for the
// forwarding pipeline. It lives for a single forwarding cycle and is
// never persisted.
type InboundMessage struct {
	MessageID   int64           // Platform message id, used to namespace temp files.
	Origin      Origin          // Raw origin descriptor (decision table input).
	TopicID     int64           // Forum topic id, NoTopic when absent or unconfirmed.
	Sender      *Sender         // Sender profile, nil when unresolvable.
	SenderID    int64           // Raw sender id, kept even when Sender is nil.
	Outgoing    bool            // True for the session's own messages; those are skipped.
	Text        string          // Message text or media caption.
	Attachments []AttachmentRef // Media references in original order.
	Unixtime    int64           // Platform timestamp of the message.
}

// SenderIdentity is the rendered identity a forwarded message is
// delivered under.
type SenderIdentity struct {
	DisplayName string // Name shown at the destination.
	Handle      string // Source platform handle, informational.
	AvatarRef   string // http(s) URL or local file path; empty = no avatar.
}

// NormalizedMessage is the fully assembled outbound message. Built once
// per InboundMessage and consumed exactly once by the dispatcher.
type NormalizedMessage struct {
	Username    string                // Destination display name.
	AvatarRef   string                // URL passed through, local path inlined by the dispatcher.
	Content     string                // Body text, possibly truncated at delivery.
	Attachments []ProcessedAttachment // Upload artifacts, original order.
}

// HasPayload reports whether there is anything left worth delivering.
func (m *NormalizedMessage) HasPayload() bool {
	return m.Content != "" || len(m.Attachments) > 0
}

// ReleaseFiles deletes every local artifact owned by the message. It is
// called unconditionally after dispatch so a failed delivery never
// leaks temporary files; errors beyond "already gone" are returned for
// logging but do not affect the delivery outcome.
func (m *NormalizedMessage) ReleaseFiles() []error {
	var errs []error

	for i := range m.Attachments {
		if err := m.Attachments[i].Discard(); err != nil {
			errs = append(errs, err)
		}
	}

	return errs
}
