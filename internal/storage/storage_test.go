package storage

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	config "github.com/wirefox/gramhook-server/internal/config"
	errs "github.com/wirefox/gramhook-server/internal/err"
	"github.com/wirefox/gramhook-server/internal/model"
	"github.com/stretchr/testify/require"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()

	cfg := &config.Config{
		Database: config.DatabaseConfig{
			Driver:     "sqlite3",
			Connection: filepath.Join(t.TempDir(), "test.db"),
		},
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	db, err := New(cfg, logger)
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, db.Close())
	})

	return db
}

func TestRouteForStrictTopicMatch(t *testing.T) {
	db := newTestStorage(t)

	topicRoute := &model.Route{ChatID: -1001234567890, TopicID: 7, WebhookURL: "https://example.com/hooks/topic"}
	plainRoute := &model.Route{ChatID: -1001234567890, TopicID: model.NoTopic, WebhookURL: "https://example.com/hooks/plain"}
	require.NoError(t, db.UpsertRoute(topicRoute))
	require.NoError(t, db.UpsertRoute(plainRoute))

	// Topic lookups hit only the topic-bound route.
	found, err := db.RouteFor(-1001234567890, 7)
	require.NoError(t, err)
	require.Equal(t, topicRoute.WebhookURL, found.WebhookURL)

	// Topic-less lookups never match a topic route.
	found, err = db.RouteFor(-1001234567890, model.NoTopic)
	require.NoError(t, err)
	require.Equal(t, plainRoute.WebhookURL, found.WebhookURL)

	// Unknown topics match nothing, not the topic-less entry.
	_, err = db.RouteFor(-1001234567890, 9)
	require.ErrorIs(t, err, errs.ErrorNoRoute)

	// Unknown chats match nothing.
	_, err = db.RouteFor(-1009876543210, model.NoTopic)
	require.ErrorIs(t, err, errs.ErrorNoRoute)
}

func TestUpsertRouteReplacesEndpoint(t *testing.T) {
	db := newTestStorage(t)

	require.NoError(t, db.UpsertRoute(&model.Route{ChatID: -42, TopicID: model.NoTopic, WebhookURL: "https://example.com/old"}))

	// Warm the cache.
	found, err := db.RouteFor(-42, model.NoTopic)
	require.NoError(t, err)
	require.Equal(t, "https://example.com/old", found.WebhookURL)

	// Same origin pair, new endpoint. Must update in place, not duplicate.
	require.NoError(t, db.UpsertRoute(&model.Route{ChatID: -42, TopicID: model.NoTopic, WebhookURL: "https://example.com/new"}))

	routes, err := db.Routes()
	require.NoError(t, err)
	require.Len(t, routes, 1)

	// The stale cached entry must not survive the write.
	found, err = db.RouteFor(-42, model.NoTopic)
	require.NoError(t, err)
	require.Equal(t, "https://example.com/new", found.WebhookURL)
}

func TestUpsertRouteSkipsNoopWrites(t *testing.T) {
	db := newTestStorage(t)

	original := &model.Route{ChatID: -42, TopicID: model.NoTopic, WebhookURL: "https://example.com/hook", Note: "ops"}
	require.NoError(t, db.UpsertRoute(original))
	require.NotZero(t, original.ID)

	before, err := db.Routes()
	require.NoError(t, err)
	require.Len(t, before, 1)

	// Identical content is a no-op write that still reports the stored id.
	replay := &model.Route{ChatID: -42, TopicID: model.NoTopic, WebhookURL: "https://example.com/hook", Note: "ops"}
	require.NoError(t, db.UpsertRoute(replay))
	require.Equal(t, original.ID, replay.ID)

	after, err := db.Routes()
	require.NoError(t, err)
	require.Len(t, after, 1)
	require.Equal(t, before[0].UpdatedAt, after[0].UpdatedAt)
}

func TestDeleteRoute(t *testing.T) {
	db := newTestStorage(t)

	route := &model.Route{ChatID: 100, TopicID: model.NoTopic, WebhookURL: "https://example.com/hooks/direct"}
	require.NoError(t, db.UpsertRoute(route))

	// Warm the cache before deleting.
	_, err := db.RouteFor(100, model.NoTopic)
	require.NoError(t, err)

	require.NoError(t, db.DeleteRoute(route.ID))

	_, err = db.RouteFor(100, model.NoTopic)
	require.ErrorIs(t, err, errs.ErrorNoRoute)

	routes, err := db.Routes()
	require.NoError(t, err)
	require.Empty(t, routes)
}

func TestUpdateOffsetRoundTrip(t *testing.T) {
	db := newTestStorage(t)

	// Unset offset reads as zero, not as an error.
	offset, err := db.UpdateOffset()
	require.NoError(t, err)
	require.Zero(t, offset)

	require.NoError(t, db.SetUpdateOffset(42))

	offset, err = db.UpdateOffset()
	require.NoError(t, err)
	require.Equal(t, 42, offset)

	// Overwrites keep the latest value.
	require.NoError(t, db.SetUpdateOffset(99))

	offset, err = db.UpdateOffset()
	require.NoError(t, err)
	require.Equal(t, 99, offset)
}

func TestUnsupportedDriver(t *testing.T) {
	cfg := &config.Config{
		Database: config.DatabaseConfig{
			Driver:     "oracle",
			Connection: "unused",
		},
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	_, err := New(cfg, logger)
	require.ErrorIs(t, err, errs.ErrorUnsupportedDriver)
}
