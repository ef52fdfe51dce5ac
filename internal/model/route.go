package model

import (
	"strconv"
	"time"

	"github.com/wirefox/gramhook-server/internal/utility"
)

// NoTopic is the TopicID value for routes and lookups that apply only to
// messages outside any forum topic. Telegram thread ids are positive, so
// zero can never collide with a real topic.
const NoTopic int64 = 0

// Route maps a source origin (chat id + optional forum topic) to a
// destination webhook endpoint. At most one route is authoritative per
// (chat_id, topic_id) pair; the composite unique index enforces it.
// Routes are written by the administrative API and read-only for the
// forwarding pipeline.
type Route struct {
	ID         uint64 `gorm:"primaryKey"                             json:"id"`
	ChatID     int64  `gorm:"uniqueIndex:idx_routes_origin;not null" hash:"x" json:"chat_id"`             // Signed origin id: negative = broadcast/supergroup, positive = direct.
	TopicID    int64  `gorm:"uniqueIndex:idx_routes_origin;not null" hash:"x" json:"topic_id"`            // Forum topic id, NoTopic for topic-less routes.
	WebhookURL string `gorm:"not null"                               hash:"x" json:"webhook_url"`         // Destination endpoint URL.
	Note       string `hash:"x" json:"note,omitempty"`                                                    // Optional operator note.

	// Meta fields
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"` // Time when the route was created.
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"` // Time when the route was last updated.
}

// TableName - set the table name.
func (Route) TableName() string {
	return "routes"
}

// GetID - get the route ID.
func (obj *Route) GetID() int64 {
	return int64(obj.ID)
}

// HasTopic reports whether the route is bound to a concrete forum topic.
func (obj *Route) HasTopic() bool {
	return obj.TopicID != NoTopic
}

// OriginKey - stable cache key for the (chat, topic) pair.
func (obj *Route) OriginKey() string {
	return OriginKey(obj.ChatID, obj.TopicID)
}

// Hash - calculate the hash of the object.
func (obj *Route) Hash() (string, error) {
	return utility.Hash(obj)
}

// OriginKey builds the lookup key for a (chat, topic) pair. Topic-less
// lookups use NoTopic and therefore never collide with topic routes.
func OriginKey(chatID, topicID int64) string {
	return strconv.FormatInt(chatID, 10) + ":" + strconv.FormatInt(topicID, 10)
}
