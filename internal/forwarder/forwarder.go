package forwarder

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	config "github.com/wirefox/gramhook-server/internal/config"
	errs "github.com/wirefox/gramhook-server/internal/err"
	"github.com/wirefox/gramhook-server/internal/identity"
	"github.com/wirefox/gramhook-server/internal/media"
	"github.com/wirefox/gramhook-server/internal/metrics"
	"github.com/wirefox/gramhook-server/internal/model"
	"github.com/wirefox/gramhook-server/internal/storage"
	"github.com/wirefox/gramhook-server/internal/webhook"

	"github.com/google/uuid"
)

const (
	queueCapacity = 64

	defaultMaxRetries   = 3
	defaultRetryBackoff = 2 * time.Second
)

// Forwarder owns the message queue between the platform session and the
// destination webhooks. A single worker consumes it, so messages are
// processed strictly in arrival order and the dispatcher's pacing is
// never contended.
type Forwarder struct {
	db         *storage.Storage
	identity   *identity.Resolver
	media      *media.Pipeline
	dispatcher *webhook.Dispatcher
	metrics    metrics.Metrics
	logger     *slog.Logger

	maxRetries int
	backoff    time.Duration

	queue chan *model.InboundMessage
	done  chan struct{}
	once  sync.Once
}

// New wires the forwarding pipeline and starts its worker.
func New(
	db *storage.Storage,
	resolver *identity.Resolver,
	pipeline *media.Pipeline,
	dispatcher *webhook.Dispatcher,
	m metrics.Metrics,
	config *config.WebhookConfig,
	logger *slog.Logger,
) *Forwarder {
	maxRetries := config.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}

	backoff := config.RetryBackoff
	if backoff <= 0 {
		backoff = defaultRetryBackoff
	}

	f := &Forwarder{
		db:         db,
		identity:   resolver,
		media:      pipeline,
		dispatcher: dispatcher,
		metrics:    m,
		logger:     logger,
		maxRetries: maxRetries,
		backoff:    backoff,
		queue:      make(chan *model.InboundMessage, queueCapacity),
		done:       make(chan struct{}),
	}

	go f.worker()

	return f
}

// Enqueue hands a message to the worker. It blocks while the queue is
// full, which stalls the poller and throttles intake instead of growing
// memory without bound.
func (f *Forwarder) Enqueue(msg *model.InboundMessage) {
	f.queue <- msg
}

// QueueDepth reports how many messages are waiting for the worker.
func (f *Forwarder) QueueDepth() int {
	return len(f.queue)
}

// Close stops intake and waits for the worker to drain what was already
// queued. The producer must be stopped first; Enqueue after Close panics.
func (f *Forwarder) Close() {
	f.once.Do(func() {
		close(f.queue)
		<-f.done
	})
}

func (f *Forwarder) worker() {
	defer close(f.done)

	for msg := range f.queue {
		f.process(msg)
	}
}

// process runs one message through the full cycle: origin decision,
// route lookup, identity, media, delivery. Temp artifacts are released
// unconditionally on the way out, whatever the delivery outcome.
func (f *Forwarder) process(msg *model.InboundMessage) {
	if msg.Outgoing {
		return
	}

	ctx := context.Background()
	logger := f.logger.With(
		slog.String("event_id", uuid.NewString()),
		slog.Int64("message_id", msg.MessageID),
	)

	groupID, ok := msg.Origin.GroupID()
	if !ok {
		logger.Warn("malformed origin, message dropped")
		f.metrics.ForwardEvent(metrics.OutcomeMalformedOrigin, 0, nil)

		return
	}

	logger = logger.With(slog.Int64("chat_id", groupID))

	route, err := f.db.RouteFor(groupID, msg.TopicID)
	if err != nil {
		if errors.Is(err, errs.ErrorNoRoute) {
			logger.Debug("no route for origin, message dropped",
				slog.Int64("topic_id", msg.TopicID))
			f.metrics.ForwardEvent(metrics.OutcomeNoRoute, groupID, nil)
		} else {
			logger.Error("route lookup failed, message dropped",
				slog.String("error", err.Error()))
		}

		return
	}

	ident := f.identity.Resolve(ctx, msg.Sender, msg.SenderID)

	out := &model.NormalizedMessage{
		Username:  ident.DisplayName,
		AvatarRef: ident.AvatarRef,
		Content:   msg.Text,
	}

	defer func() {
		for _, relErr := range out.ReleaseFiles() {
			logger.Warn("temp file cleanup failed", slog.String("error", relErr.Error()))
		}
	}()

	for _, ref := range msg.Attachments {
		artifact, err := f.media.Process(ctx, int(msg.MessageID), ref)
		if err != nil {
			logger.Warn("attachment dropped",
				slog.String("kind", ref.Kind.String()),
				slog.String("file_id", ref.FileID),
				slog.String("error", err.Error()))
			f.metrics.ForwardEvent(metrics.OutcomeAttachmentDropped, groupID, map[string]interface{}{
				"kind": ref.Kind.String(),
			})

			continue
		}

		out.Attachments = append(out.Attachments, *artifact)
	}

	if !out.HasPayload() {
		logger.Debug("nothing left to deliver, message dropped")

		return
	}

	if err := f.deliver(ctx, route.WebhookURL, out, logger); err != nil {
		logger.Error("delivery failed",
			slog.String("error", err.Error()),
			slog.Int("attachments", len(out.Attachments)))
		f.metrics.ForwardEvent(metrics.OutcomeDeliveryFailed, groupID, map[string]interface{}{
			"attachments": len(out.Attachments),
		})

		return
	}

	f.metrics.ForwardEvent(metrics.OutcomeDelivered, groupID, map[string]interface{}{
		"attachments": len(out.Attachments),
	})
	logger.Info("message forwarded", slog.Int("attachments", len(out.Attachments)))
}

// deliver makes up to maxRetries attempts with a linearly growing pause
// between them. Only transient failures are retried; a terminal
// destination response fails the message immediately.
func (f *Forwarder) deliver(ctx context.Context, endpoint string, msg *model.NormalizedMessage, logger *slog.Logger) error {
	var lastErr error

	for attempt := 1; attempt <= f.maxRetries; attempt++ {
		lastErr = f.dispatcher.Deliver(ctx, endpoint, msg)
		if lastErr == nil {
			return nil
		}

		if !errs.Retryable(lastErr) {
			return lastErr
		}

		if attempt < f.maxRetries {
			wait := time.Duration(attempt) * f.backoff
			logger.Warn("delivery attempt failed, retrying",
				slog.Int("attempt", attempt),
				slog.Duration("wait", wait),
				slog.String("error", lastErr.Error()))

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}
	}

	return lastErr
}
