package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/wirefox/gramhook-server/internal/config"
	errs "github.com/wirefox/gramhook-server/internal/err"
	"github.com/wirefox/gramhook-server/internal/model"
	"github.com/stretchr/testify/require"
)

func newTestDispatcher(cfg config.WebhookConfig) *Dispatcher {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	return New(&cfg, 0, nil, logger)
}

func writeTempFile(t *testing.T, name string, data []byte) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	return path
}

func TestDeliverTextOnly(t *testing.T) {
	var (
		gotContentType string
		gotBody        map[string]any
	)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	dispatcher := newTestDispatcher(config.WebhookConfig{})

	err := dispatcher.Deliver(context.Background(), server.URL, &model.NormalizedMessage{
		Username: "Ada Lovelace",
		Content:  "hello",
	})
	require.NoError(t, err)
	require.Equal(t, "application/json", gotContentType)
	require.Equal(t, "Ada Lovelace", gotBody["username"])
	require.Equal(t, "hello", gotBody["content"])

	// Empty avatars are omitted from the wire format entirely.
	_, present := gotBody["avatar_url"]
	require.False(t, present)
}

func TestDeliverMultipart(t *testing.T) {
	filePath := writeTempFile(t, "photo.jpg", []byte("jpeg-bytes"))

	var (
		gotPayload  payload
		gotFilename string
		gotFile     []byte
	)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(32<<20))
		require.NoError(t, json.Unmarshal([]byte(r.FormValue("payload_json")), &gotPayload))

		headers := r.MultipartForm.File["files[0]"]
		require.Len(t, headers, 1)
		gotFilename = headers[0].Filename

		f, err := headers[0].Open()
		require.NoError(t, err)
		defer f.Close()

		gotFile, err = io.ReadAll(f)
		require.NoError(t, err)

		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	dispatcher := newTestDispatcher(config.WebhookConfig{})

	err := dispatcher.Deliver(context.Background(), server.URL, &model.NormalizedMessage{
		Username: "Ada Lovelace",
		Content:  "hello",
		Attachments: []model.ProcessedAttachment{
			{Kind: model.KindImage, LocalPath: filePath, Filename: "photo.jpg", Size: 10},
		},
	})
	require.NoError(t, err)
	require.Equal(t, "Ada Lovelace", gotPayload.Username)
	require.Equal(t, "hello", gotPayload.Content)
	require.Equal(t, "photo.jpg", gotFilename)
	require.Equal(t, []byte("jpeg-bytes"), gotFile)
}

func TestDeliverStatusErrors(t *testing.T) {
	status := http.StatusInternalServerError

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte("boom"))
	}))
	defer server.Close()

	dispatcher := newTestDispatcher(config.WebhookConfig{})
	msg := &model.NormalizedMessage{Username: "u", Content: "c"}

	err := dispatcher.Deliver(context.Background(), server.URL, msg)

	var delivery *errs.DeliveryError
	require.True(t, errors.As(err, &delivery))
	require.Equal(t, http.StatusInternalServerError, delivery.StatusCode)
	require.Equal(t, "boom", delivery.Body)
	require.True(t, errs.Retryable(err), "5xx responses are worth retrying")

	// Client errors are terminal rejections.
	status = http.StatusBadRequest

	err = dispatcher.Deliver(context.Background(), server.URL, msg)
	require.True(t, errors.As(err, &delivery))
	require.Equal(t, http.StatusBadRequest, delivery.StatusCode)
	require.False(t, errs.Retryable(err))
}

func TestDeliverPacesRequests(t *testing.T) {
	var (
		mu    sync.Mutex
		times []time.Time
	)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		mu.Lock()
		times = append(times, time.Now())
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	const interval = 60 * time.Millisecond

	dispatcher := newTestDispatcher(config.WebhookConfig{MinInterval: interval})
	msg := &model.NormalizedMessage{Username: "u", Content: "c"}

	require.NoError(t, dispatcher.Deliver(context.Background(), server.URL, msg))
	require.NoError(t, dispatcher.Deliver(context.Background(), server.URL+"/other", msg))

	require.Len(t, times, 2)

	// Pacing is global across endpoints, measured end of one request to
	// start of the next. Allow a little scheduler slack.
	require.GreaterOrEqual(t, times[1].Sub(times[0]), interval-10*time.Millisecond)
}

func TestAvatarRepresentation(t *testing.T) {
	var gotBody map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	dispatcher := newTestDispatcher(config.WebhookConfig{})

	t.Run("local file becomes a data URI", func(t *testing.T) {
		avatarPath := writeTempFile(t, "avatar.png", []byte("png-bytes"))

		err := dispatcher.Deliver(context.Background(), server.URL, &model.NormalizedMessage{
			Username:  "u",
			AvatarRef: avatarPath,
			Content:   "c",
		})
		require.NoError(t, err)
		require.True(t, strings.HasPrefix(gotBody["avatar_url"].(string), "data:image/png;base64,"))
	})

	t.Run("remote URL passes through", func(t *testing.T) {
		err := dispatcher.Deliver(context.Background(), server.URL, &model.NormalizedMessage{
			Username:  "u",
			AvatarRef: "https://cdn.example.com/a.jpg",
			Content:   "c",
		})
		require.NoError(t, err)
		require.Equal(t, "https://cdn.example.com/a.jpg", gotBody["avatar_url"])
	})

	t.Run("unreadable file drops only the avatar", func(t *testing.T) {
		err := dispatcher.Deliver(context.Background(), server.URL, &model.NormalizedMessage{
			Username:  "u",
			AvatarRef: filepath.Join(t.TempDir(), "missing.jpg"),
			Content:   "c",
		})
		require.NoError(t, err)

		_, present := gotBody["avatar_url"]
		require.False(t, present)
	})
}

func TestOversizedAttachmentSkippedAtUpload(t *testing.T) {
	var gotContentType string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	dispatcher := newTestDispatcher(config.WebhookConfig{})

	// The size ceiling is enforced again at upload time, independent of
	// what the media pipeline produced.
	err := dispatcher.Deliver(context.Background(), server.URL, &model.NormalizedMessage{
		Username: "u",
		Content:  "text still goes out",
		Attachments: []model.ProcessedAttachment{
			{Kind: model.KindVideo, LocalPath: "/nonexistent", Filename: "huge.mp4", Size: defaultUploadLimit + 1},
		},
	})
	require.NoError(t, err)
	require.Equal(t, "application/json", gotContentType)
}

func TestDeliverSkipsEmptyMessage(t *testing.T) {
	calls := 0

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	dispatcher := newTestDispatcher(config.WebhookConfig{})

	err := dispatcher.Deliver(context.Background(), server.URL, &model.NormalizedMessage{Username: "u"})
	require.NoError(t, err)
	require.Zero(t, calls)
}

func TestTruncateContent(t *testing.T) {
	const limit = 2000

	t.Run("short content unchanged", func(t *testing.T) {
		require.Equal(t, "hello", truncateContent("hello", limit))
	})

	t.Run("exact limit unchanged", func(t *testing.T) {
		content := strings.Repeat("x", limit)
		require.Equal(t, content, truncateContent(content, limit))
	})

	t.Run("over limit cut to exactly the limit with marker", func(t *testing.T) {
		got := truncateContent(strings.Repeat("x", limit+500), limit)
		require.Equal(t, limit, len([]rune(got)))
		require.True(t, strings.HasSuffix(got, truncationMarker))
	})

	t.Run("limits count runes, not bytes", func(t *testing.T) {
		got := truncateContent(strings.Repeat("я", limit+1), limit)
		require.Equal(t, limit, len([]rune(got)))
		require.True(t, strings.HasSuffix(got, truncationMarker))
	})
}
