package webhook

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/wirefox/gramhook-server/internal/config"
	errs "github.com/wirefox/gramhook-server/internal/err"
	"github.com/wirefox/gramhook-server/internal/model"
)

// truncationMarker is appended to content cut at the destination's length
// limit; truncation is always visible, never silent.
const truncationMarker = "[truncated]"

const (
	defaultMaxContentLength = 2000
	defaultUploadLimit      = 25 << 20
	errorBodyLimit          = 2048
)

// payload is the destination wire format. The same shape is used as the
// JSON body of text-only posts and as the payload_json part of multipart
// uploads.
type payload struct {
	Username  string `json:"username"`
	AvatarURL string `json:"avatar_url,omitempty"`
	Content   string `json:"content"`
}

// Dispatcher posts normalized messages to destination webhook endpoints.
// One instance paces all deliveries globally: the configured minimum
// interval is measured from the end of one request to the start of the
// next, across every endpoint, to stay under the destination platform's
// abuse thresholds.
type Dispatcher struct {
	client           *http.Client
	logger           *slog.Logger
	minInterval      time.Duration
	textTimeout      time.Duration
	uploadTimeout    time.Duration
	maxContentLength int
	uploadLimit      int64

	mu          sync.Mutex
	lastRequest time.Time
}

func New(cfg *config.WebhookConfig, uploadLimit int64, client *http.Client, logger *slog.Logger) *Dispatcher {
	if client == nil {
		client = &http.Client{}
	}

	maxContentLength := cfg.MaxContentLength
	if maxContentLength <= 0 {
		maxContentLength = defaultMaxContentLength
	}

	if uploadLimit <= 0 {
		uploadLimit = defaultUploadLimit
	}

	textTimeout := cfg.TextTimeout
	if textTimeout <= 0 {
		textTimeout = 10 * time.Second
	}

	uploadTimeout := cfg.UploadTimeout
	if uploadTimeout <= 0 {
		uploadTimeout = 2 * time.Minute
	}

	return &Dispatcher{
		client:           client,
		logger:           logger,
		minInterval:      cfg.MinInterval,
		textTimeout:      textTimeout,
		uploadTimeout:    uploadTimeout,
		maxContentLength: maxContentLength,
		uploadLimit:      uploadLimit,
	}
}

// Deliver makes exactly one paced attempt to post the message to the
// endpoint. A non-success status raises *errs.DeliveryError; retry-or-drop
// policy belongs to the caller. Local files referenced by the message are
// left in place so the caller can retry and release them afterwards.
func (d *Dispatcher) Deliver(ctx context.Context, endpoint string, msg *model.NormalizedMessage) error {
	body, contentType, timeout, err := d.buildRequest(msg)
	if err != nil {
		return err
	}

	if body == nil {
		d.logger.Debug("nothing deliverable in message, skipping", slog.String("endpoint", endpoint))

		return nil
	}

	// The lock covers both the pacing check and the request so two
	// deliveries can never both measure a stale last-request time and
	// proceed without waiting.
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.pace(ctx); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := d.client.Do(req)
	d.lastRequest = time.Now()
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))

		return &errs.DeliveryError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	return nil
}

// pace waits out the remainder of the inter-request interval, honoring
// context cancellation. Caller holds the mutex.
func (d *Dispatcher) pace(ctx context.Context) error {
	if d.lastRequest.IsZero() || d.minInterval <= 0 {
		return nil
	}

	wait := d.minInterval - time.Since(d.lastRequest)
	if wait <= 0 {
		return nil
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// buildRequest serializes the message: plain JSON for text-only, multipart
// with a payload_json part plus one files[<index>] part per attachment
// otherwise. A nil body means nothing usable remained.
func (d *Dispatcher) buildRequest(msg *model.NormalizedMessage) (io.Reader, string, time.Duration, error) {
	encoded, err := json.Marshal(payload{
		Username:  msg.Username,
		AvatarURL: d.avatarValue(msg.AvatarRef),
		Content:   truncateContent(msg.Content, d.maxContentLength),
	})
	if err != nil {
		return nil, "", 0, err
	}

	files := d.uploadable(msg.Attachments)
	if len(files) == 0 {
		if strings.TrimSpace(msg.Content) == "" {
			return nil, "", 0, nil
		}

		return bytes.NewReader(encoded), "application/json", d.textTimeout, nil
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormField("payload_json")
	if err != nil {
		return nil, "", 0, err
	}

	if _, err := part.Write(encoded); err != nil {
		return nil, "", 0, err
	}

	for i, attachment := range files {
		part, err := writer.CreateFormFile(fmt.Sprintf("files[%d]", i), attachment.Filename)
		if err != nil {
			return nil, "", 0, err
		}

		f, err := os.Open(attachment.LocalPath)
		if err != nil {
			return nil, "", 0, err
		}

		_, err = io.Copy(part, f)
		f.Close()
		if err != nil {
			return nil, "", 0, err
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", 0, err
	}

	return &body, writer.FormDataContentType(), d.uploadTimeout, nil
}

// uploadable re-checks the absolute size ceiling right before upload,
// independent of whatever the media pipeline produced. Oversized files are
// skipped with a log line; the message still goes out.
func (d *Dispatcher) uploadable(attachments []model.ProcessedAttachment) []model.ProcessedAttachment {
	files := make([]model.ProcessedAttachment, 0, len(attachments))
	for _, attachment := range attachments {
		if attachment.Size > d.uploadLimit {
			d.logger.Warn("attachment exceeds upload ceiling, skipping",
				slog.String("file", attachment.Filename),
				slog.Int64("size", attachment.Size),
				slog.Int64("limit", d.uploadLimit),
			)

			continue
		}

		files = append(files, attachment)
	}

	return files
}

// avatarValue converts the avatar reference into what the destination
// accepts: remote URLs pass through, local files become base64 data URIs.
// An unreadable file drops the avatar, never the message.
func (d *Dispatcher) avatarValue(ref string) string {
	if ref == "" {
		return ""
	}

	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref
	}

	raw, err := os.ReadFile(ref)
	if err != nil {
		d.logger.Warn("avatar file unreadable, sending without avatar",
			slog.String("path", ref),
			slog.Any("err", err),
		)

		return ""
	}

	return fmt.Sprintf("data:%s;base64,%s", avatarMIME(ref), base64.StdEncoding.EncodeToString(raw))
}

// avatarMIME guesses the image MIME type from the file extension.
func avatarMIME(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	default:
		return "image/jpeg"
	}
}

// truncateContent cuts content to the destination's length limit, replacing
// the tail with the truncation marker. Limits are counted in runes; output
// length is exactly the limit for over-long input.
func truncateContent(content string, limit int) string {
	runes := []rune(content)
	if len(runes) <= limit {
		return content
	}

	return string(runes[:limit-len([]rune(truncationMarker))]) + truncationMarker
}
