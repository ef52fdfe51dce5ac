package identity

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/wirefox/gramhook-server/internal/config"
	"github.com/wirefox/gramhook-server/internal/model"
)

// AvatarSource fetches sender metadata and profile photos from the source
// platform. The session layer implements it; tests substitute fakes.
type AvatarSource interface {
	ProfileOf(userID int64) (*model.Sender, error)
	AvatarOf(ctx context.Context, userID int64) (io.ReadCloser, error)
}

// Resolver derives a display identity for each inbound sender. Avatars are
// cached on disk keyed by sender id so repeated messages from the same sender
// reuse the cached image instead of re-downloading. Resolution never fails:
// it degrades from a fresh profile to cached data to a synthesized identity.
type Resolver struct {
	source        AvatarSource
	logger        *slog.Logger
	avatarDir     string
	defaultAvatar string
	publicBaseURL string
	fetchTimeout  time.Duration
	refreshTTL    time.Duration
}

func New(cfg *config.IdentityConfig, source AvatarSource, logger *slog.Logger) (*Resolver, error) {
	if err := os.MkdirAll(cfg.AvatarDir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create avatar cache directory: %w", err)
	}

	// A configured default avatar pointing at a missing file is an operator
	// mistake; surface it at startup instead of on the first unresolvable sender.
	if cfg.DefaultAvatar != "" {
		if _, err := os.Stat(cfg.DefaultAvatar); err != nil {
			return nil, fmt.Errorf("default avatar is not readable: %w", err)
		}
	}

	fetchTimeout := cfg.FetchTimeout
	if fetchTimeout <= 0 {
		fetchTimeout = 5 * time.Second
	}

	return &Resolver{
		source:        source,
		logger:        logger,
		avatarDir:     cfg.AvatarDir,
		defaultAvatar: cfg.DefaultAvatar,
		publicBaseURL: strings.TrimRight(cfg.PublicBaseURL, "/"),
		fetchTimeout:  fetchTimeout,
		refreshTTL:    cfg.RefreshTTL,
	}, nil
}

// Resolve builds the sender identity for one message. The sender profile
// usually arrives with the event; when it is missing, one lookup by id is
// attempted before synthesizing a placeholder identity.
func (r *Resolver) Resolve(ctx context.Context, sender *model.Sender, senderID int64) model.SenderIdentity {
	if sender == nil && senderID != 0 && r.source != nil {
		fetched, err := r.source.ProfileOf(senderID)
		if err != nil {
			r.logger.Warn("sender profile lookup failed",
				slog.Int64("user_id", senderID),
				slog.Any("err", err),
			)
		} else {
			sender = fetched
		}
	}

	if sender == nil {
		// The profile entity itself is unreachable. Synthesize a stable
		// identity from the raw id so downstream rendering stays consistent
		// across repeated messages from the same sender.
		name := fmt.Sprintf("user_%d", senderID)

		return model.SenderIdentity{
			DisplayName: name,
			Handle:      name,
			AvatarRef:   r.materializeDefault(senderID),
		}
	}

	return model.SenderIdentity{
		DisplayName: displayName(sender),
		Handle:      sender.Username,
		AvatarRef:   r.avatarFor(ctx, senderID),
	}
}

// avatarFor returns a reference to the sender's avatar, preferring the disk
// cache while it is fresh. A fetch failure falls back to the stale cached
// file, then to the default avatar. One bounded attempt, no retries: avatar
// loss must never stall message delivery.
func (r *Resolver) avatarFor(ctx context.Context, userID int64) string {
	path := r.cachePath(userID)

	if fresh, exists := r.cacheState(path); fresh {
		return r.ref(userID)
	} else if r.source == nil {
		if exists {
			return r.ref(userID)
		}

		return r.materializeDefault(userID)
	}

	ctx, cancel := context.WithTimeout(ctx, r.fetchTimeout)
	defer cancel()

	body, err := r.source.AvatarOf(ctx, userID)
	if err != nil {
		r.logger.Debug("avatar fetch failed",
			slog.Int64("user_id", userID),
			slog.Any("err", err),
		)

		if _, exists := r.cacheState(path); exists {
			return r.ref(userID)
		}

		return r.materializeDefault(userID)
	}
	defer body.Close()

	if err := r.writeAtomic(path, body); err != nil {
		r.logger.Warn("avatar cache write failed",
			slog.Int64("user_id", userID),
			slog.Any("err", err),
		)

		return r.materializeDefault(userID)
	}

	return r.ref(userID)
}

// materializeDefault copies the default avatar under the sender's own cache
// key, giving unresolvable senders a stable per-user reference. Returns an
// empty reference when no default avatar is configured.
func (r *Resolver) materializeDefault(userID int64) string {
	if r.defaultAvatar == "" {
		return ""
	}

	path := r.cachePath(userID)
	if _, exists := r.cacheState(path); exists {
		return r.ref(userID)
	}

	src, err := os.Open(r.defaultAvatar)
	if err != nil {
		r.logger.Warn("default avatar unreadable", slog.Any("err", err))

		return ""
	}
	defer src.Close()

	if err := r.writeAtomic(path, src); err != nil {
		r.logger.Warn("default avatar copy failed",
			slog.Int64("user_id", userID),
			slog.Any("err", err),
		)

		return ""
	}

	return r.ref(userID)
}

// cachePath is the on-disk location for one sender's avatar.
func (r *Resolver) cachePath(userID int64) string {
	return filepath.Join(r.avatarDir, fmt.Sprintf("%d.jpg", userID))
}

// cacheState reports whether the cached file is fresh enough to reuse and
// whether it exists at all. A non-positive TTL never expires.
func (r *Resolver) cacheState(path string) (fresh, exists bool) {
	info, err := os.Stat(path)
	if err != nil {
		return false, false
	}

	if r.refreshTTL > 0 && time.Since(info.ModTime()) > r.refreshTTL {
		return false, true
	}

	return true, true
}

// ref converts a cached avatar into the reference handed to the dispatcher:
// a public URL when an avatar host is configured, the local path otherwise.
func (r *Resolver) ref(userID int64) string {
	if r.publicBaseURL != "" {
		return fmt.Sprintf("%s/%d.jpg", r.publicBaseURL, userID)
	}

	return r.cachePath(userID)
}

// writeAtomic stages the avatar to a temp file and renames it into place so
// a concurrent reader never observes a partial image.
func (r *Resolver) writeAtomic(path string, body io.Reader) error {
	tmp, err := os.CreateTemp(r.avatarDir, "avatar-*.tmp")
	if err != nil {
		return err
	}

	if _, err := io.Copy(tmp, body); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())

		return err
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())

		return err
	}

	return os.Rename(tmp.Name(), path)
}

// displayName joins the sender's first and last name, falling back to the
// username and finally to a raw id placeholder.
func displayName(sender *model.Sender) string {
	name := strings.TrimSpace(strings.TrimSpace(sender.FirstName) + " " + strings.TrimSpace(sender.LastName))
	if name != "" {
		return name
	}

	if sender.Username != "" {
		return sender.Username
	}

	return fmt.Sprintf("user_%d", sender.ID)
}
