package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/sous-os/sous-core/internal/core"
	"github.com/sous-os/sous-core/internal/domain/model"
)

const hardwareChannelPrefix = "hardware:"

// relayEnvelope wraps a relayed event with the publishing process identity
// so a process can skip its own messages coming back off the wire.
type relayEnvelope struct {
	Origin string                  `json:"origin"`
	Event  model.PresentationEvent `json:"event"`
}

// BridgeOptions configures the Redis fan-out bridge.
type BridgeOptions struct {
	Client redis.UniversalClient // Required: Redis connection
	Hub    *Hub                  // Required: local hub to re-inject remote events into
	Logger *slog.Logger          // Optional: structured logger
}

// Bridge extends the local hub across processes. Publish delivers locally
// and PUBLISHes the event on the hardware's Redis channel; Run subscribes to
// every hardware channel and re-injects events published by other processes
// into the local hub. Events are ephemeral in transit; nothing is persisted
// or replayed.
type Bridge struct {
	client redis.UniversalClient
	hub    *Hub
	logger *slog.Logger
	origin string
}

var _ core.Publisher = (*Bridge)(nil)

// NewBridge constructs a Redis fan-out bridge.
func NewBridge(opts BridgeOptions) (*Bridge, error) {
	if opts.Client == nil {
		return nil, errors.New("redis client is required")
	}
	if opts.Hub == nil {
		return nil, errors.New("hub is required")
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "realtime_bridge")
	}

	return &Bridge{
		client: opts.Client,
		hub:    opts.Hub,
		logger: logger,
		origin: uuid.NewString(),
	}, nil
}

// Publish delivers the event to local subscribers, then relays it to other
// processes over Redis. A relay failure does not undo local delivery.
func (b *Bridge) Publish(ctx context.Context, event model.PresentationEvent) error {
	if err := b.hub.Publish(ctx, event); err != nil {
		return err
	}

	data, err := json.Marshal(relayEnvelope{Origin: b.origin, Event: event})
	if err != nil {
		return fmt.Errorf("marshal presentation event: %w", err)
	}

	channel := hardwareChannelPrefix + event.HardwareID
	if err := b.client.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("relay presentation event: %w", err)
	}

	return nil
}

// Run subscribes to all hardware channels and re-injects remote events into
// the local hub until the context is cancelled.
func (b *Bridge) Run(ctx context.Context) error {
	pubsub := b.client.PSubscribe(ctx, hardwareChannelPrefix+"*")
	defer func() {
		if err := pubsub.Close(); err != nil && b.logger != nil {
			b.logger.Warn("close redis pubsub", "error", err)
		}
	}()

	if b.logger != nil {
		b.logger.InfoContext(ctx, "realtime bridge subscribed",
			"pattern", hardwareChannelPrefix+"*")
	}

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return errors.New("redis pubsub channel closed")
			}
			b.injectRemoteEvent(ctx, msg)
		}
	}
}

func (b *Bridge) injectRemoteEvent(ctx context.Context, msg *redis.Message) {
	var envelope relayEnvelope
	if err := json.Unmarshal([]byte(msg.Payload), &envelope); err != nil {
		if b.logger != nil {
			b.logger.WarnContext(ctx, "dropping malformed relayed event",
				"channel", msg.Channel, "error", err)
		}
		return
	}

	// Skip our own messages; local delivery already happened in Publish.
	if envelope.Origin == b.origin {
		return
	}

	event := envelope.Event
	if event.HardwareID == "" {
		event.HardwareID = strings.TrimPrefix(msg.Channel, hardwareChannelPrefix)
	}

	if err := b.hub.Publish(ctx, event); err != nil && b.logger != nil {
		b.logger.WarnContext(ctx, "local delivery of relayed event failed",
			"hardware_id", event.HardwareID, "error", err)
	}
}
