package model

// channelIDOffset is the large negative offset broadcast- and
// supergroup-style origins are mapped under, matching the id space the
// platform itself exposes for those containers.
const channelIDOffset int64 = -1_000_000_000_000

// Origin describes where a message came from, as raw positive platform
// ids. Exactly one field is expected to be set; derivation follows an
// ordered decision table instead of chasing optional event fields.
type Origin struct {
	ChannelID int64 // Broadcast channel or supergroup container id.
	ChatID    int64 // Basic group chat id.
	UserID    int64 // Direct conversation peer id.
}

// GroupID derives the signed routing group id for the origin:
// channel/supergroup -> offset minus the channel id, basic group ->
// negated chat id, direct -> the positive user id. Returns false when
// no id can be derived (malformed event, dropped by the coordinator).
func (o Origin) GroupID() (int64, bool) {
	switch {
	case o.ChannelID > 0:
		return channelIDOffset - o.ChannelID, true
	case o.ChatID > 0:
		return -o.ChatID, true
	case o.UserID > 0:
		return o.UserID, true
	default:
		return 0, false
	}
}

// IsZero reports whether the origin carries no id at all.
func (o Origin) IsZero() bool {
	return o.ChannelID == 0 && o.ChatID == 0 && o.UserID == 0
}

// ChannelIDFromGroup recovers the raw channel id from a broadcast-style
// group id. The mapping is its own inverse: offset - (offset - x) = x.
func ChannelIDFromGroup(groupID int64) int64 {
	return channelIDOffset - groupID
}
