// Package realtime provides the presentation event broadcaster: an in-process
// pub/sub hub keyed by hardware identity plus an optional Redis bridge for
// multi-process fan-out.
package realtime

import (
	"context"
	"errors"
	"hash/fnv"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sous-os/sous-core/internal/core"
	"github.com/sous-os/sous-core/internal/domain/model"
	apperrors "github.com/sous-os/sous-core/internal/errors"
)

// SubscriptionState tracks a subscription through its lifecycle. The state
// only moves forward; Closed is terminal.
type SubscriptionState int32

const (
	// StateRequesting is the initial state before authorization.
	StateRequesting SubscriptionState = iota
	// StateAuthorized means the hardware's owning organization matched.
	StateAuthorized
	// StateLive means the subscription receives events.
	StateLive
	// StateClosed is terminal; the events channel is closed.
	StateClosed
)

func (s SubscriptionState) String() string {
	switch s {
	case StateRequesting:
		return "requesting"
	case StateAuthorized:
		return "authorized"
	case StateLive:
		return "live"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// SubscribeRequest identifies who is subscribing and which display they want.
type SubscribeRequest struct {
	ConnectionID   string
	HardwareID     string
	OrganizationID string
}

// SubscriptionHandle is a live attachment to a hardware channel. Events
// arrive on Events until the handle is unsubscribed or the hub shuts down.
type SubscriptionHandle struct {
	ConnectionID   string
	HardwareID     string
	OrganizationID string
	SubscribedAt   time.Time

	events chan model.PresentationEvent

	mu    sync.Mutex
	state SubscriptionState
}

// Events returns the subscriber's delivery channel. It is closed when the
// subscription ends.
func (h *SubscriptionHandle) Events() <-chan model.PresentationEvent {
	return h.events
}

// State returns the subscription's current lifecycle state.
func (h *SubscriptionHandle) State() SubscriptionState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

func (h *SubscriptionHandle) setState(s SubscriptionState) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state == StateClosed {
		return
	}
	h.state = s
}

// trySend delivers an event if the handle is live with buffer room. The
// state check and send happen under the handle lock so a concurrent close
// cannot slip between them. delivered is false when the event was not sent;
// live distinguishes a full buffer from a handle that is not receiving.
func (h *SubscriptionHandle) trySend(event model.PresentationEvent) (delivered, live bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state != StateLive {
		return false, false
	}
	select {
	case h.events <- event:
		return true, true
	default:
		return false, true
	}
}

func (h *SubscriptionHandle) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state == StateClosed {
		return
	}
	h.state = StateClosed
	close(h.events)
}

const (
	defaultShardCount  = 16
	defaultEventBuffer = 16
)

// HubOptions configures the broadcaster hub.
type HubOptions struct {
	Displays core.DisplayRepository // Required: hardware ownership lookups
	Logger   *slog.Logger           // Optional: structured logger

	ShardCount  int // subscriber registry shards; defaults to 16
	EventBuffer int // per-subscriber channel buffer; defaults to 16
}

type hubShard struct {
	mu   sync.RWMutex
	subs map[string]map[*SubscriptionHandle]struct{} // hardwareID -> handles
}

// Hub is the in-process broadcaster. Subscriptions are registered per
// hardware identity; Publish fans an event out to every live subscriber of
// that hardware with a non-blocking send, so one slow consumer never stalls
// the others.
type Hub struct {
	displays core.DisplayRepository
	logger   *slog.Logger
	shards   []*hubShard
	buffer   int

	closedMu sync.RWMutex
	closed   bool
}

var _ core.Publisher = (*Hub)(nil)

// NewHub constructs a broadcaster hub.
func NewHub(opts HubOptions) (*Hub, error) {
	if opts.Displays == nil {
		return nil, errors.New("DisplayRepository is required")
	}

	shardCount := opts.ShardCount
	if shardCount <= 0 {
		shardCount = defaultShardCount
	}
	buffer := opts.EventBuffer
	if buffer <= 0 {
		buffer = defaultEventBuffer
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "realtime_hub")
	}

	shards := make([]*hubShard, shardCount)
	for i := range shards {
		shards[i] = &hubShard{subs: make(map[string]map[*SubscriptionHandle]struct{})}
	}

	return &Hub{
		displays: opts.Displays,
		logger:   logger,
		shards:   shards,
		buffer:   buffer,
	}, nil
}

func (h *Hub) shardFor(hardwareID string) *hubShard {
	f := fnv.New32a()
	_, _ = f.Write([]byte(hardwareID))
	return h.shards[f.Sum32()%uint32(len(h.shards))]
}

// Subscribe attaches a connection to a hardware channel. The hardware's
// owning organization must match the request's organization; a mismatch is
// rejected with Unauthorized and the subscription never goes live.
//
// A request with an empty OrganizationID (transport identity not yet
// established) is admitted in a quarantined state: it is registered but not
// live, and receives no events until the caller re-subscribes with a
// resolved organization.
func (h *Hub) Subscribe(ctx context.Context, req SubscribeRequest) (*SubscriptionHandle, error) {
	if req.HardwareID == "" {
		return nil, apperrors.Validation("hardware id is required")
	}
	if h.isClosed() {
		return nil, errors.New("hub is shut down")
	}

	connectionID := req.ConnectionID
	if connectionID == "" {
		connectionID = uuid.NewString()
	}

	handle := &SubscriptionHandle{
		ConnectionID:   connectionID,
		HardwareID:     req.HardwareID,
		OrganizationID: req.OrganizationID,
		SubscribedAt:   time.Now().UTC(),
		events:         make(chan model.PresentationEvent, h.buffer),
		state:          StateRequesting,
	}

	if req.OrganizationID == "" {
		h.register(handle)
		if h.logger != nil {
			h.logger.DebugContext(ctx, "subscription quarantined pending identity",
				"connection_id", connectionID,
				"hardware_id", req.HardwareID,
			)
		}
		return handle, nil
	}

	display, err := h.displays.GetByHardwareID(ctx, req.HardwareID)
	if err == nil && display.OrganizationID != req.OrganizationID {
		return nil, apperrors.Unauthorized(
			"hardware " + req.HardwareID + " does not belong to organization " + req.OrganizationID)
	}
	if err != nil {
		// Unknown hardware is admitted quarantined rather than rejected so a
		// display can connect before its registration row lands.
		h.register(handle)
		if h.logger != nil {
			h.logger.DebugContext(ctx, "subscription quarantined, hardware not registered",
				"connection_id", connectionID,
				"hardware_id", req.HardwareID,
				"error", err,
			)
		}
		return handle, nil
	}

	handle.setState(StateAuthorized)
	h.register(handle)
	handle.setState(StateLive)

	if h.logger != nil {
		h.logger.DebugContext(ctx, "subscription live",
			"connection_id", connectionID,
			"hardware_id", req.HardwareID,
			"organization_id", req.OrganizationID,
		)
	}

	return handle, nil
}

func (h *Hub) register(handle *SubscriptionHandle) {
	shard := h.shardFor(handle.HardwareID)
	shard.mu.Lock()
	defer shard.mu.Unlock()
	set, ok := shard.subs[handle.HardwareID]
	if !ok {
		set = make(map[*SubscriptionHandle]struct{})
		shard.subs[handle.HardwareID] = set
	}
	set[handle] = struct{}{}
}

// Unsubscribe detaches a handle and closes its events channel. Safe to call
// more than once.
func (h *Hub) Unsubscribe(handle *SubscriptionHandle) {
	if handle == nil {
		return
	}

	shard := h.shardFor(handle.HardwareID)
	shard.mu.Lock()
	if set, ok := shard.subs[handle.HardwareID]; ok {
		delete(set, handle)
		if len(set) == 0 {
			delete(shard.subs, handle.HardwareID)
		}
	}
	shard.mu.Unlock()

	handle.close()
}

// Publish fans an event out to every live subscriber of its hardware
// channel. Delivery is fire-and-forget: a subscriber whose buffer is full
// misses the event and catches up on its next state pull.
func (h *Hub) Publish(ctx context.Context, event model.PresentationEvent) error {
	if event.HardwareID == "" {
		return apperrors.Validation("presentation event requires a hardware id")
	}

	shard := h.shardFor(event.HardwareID)
	shard.mu.RLock()
	handles := make([]*SubscriptionHandle, 0, len(shard.subs[event.HardwareID]))
	for handle := range shard.subs[event.HardwareID] {
		handles = append(handles, handle)
	}
	shard.mu.RUnlock()

	dropped := 0
	for _, handle := range handles {
		if delivered, live := handle.trySend(event); !delivered && live {
			dropped++
		}
	}

	if dropped > 0 && h.logger != nil {
		h.logger.DebugContext(ctx, "dropped events for slow subscribers",
			"hardware_id", event.HardwareID,
			"dropped", dropped,
		)
	}

	return nil
}

// SubscriberCount returns the number of registered handles for a hardware
// identity, live or quarantined.
func (h *Hub) SubscriberCount(hardwareID string) int {
	shard := h.shardFor(hardwareID)
	shard.mu.RLock()
	defer shard.mu.RUnlock()
	return len(shard.subs[hardwareID])
}

func (h *Hub) isClosed() bool {
	h.closedMu.RLock()
	defer h.closedMu.RUnlock()
	return h.closed
}

// Shutdown closes every subscription. New Subscribe calls fail afterwards.
func (h *Hub) Shutdown() {
	h.closedMu.Lock()
	h.closed = true
	h.closedMu.Unlock()

	for _, shard := range h.shards {
		shard.mu.Lock()
		for hardwareID, set := range shard.subs {
			for handle := range set {
				handle.close()
			}
			delete(shard.subs, hardwareID)
		}
		shard.mu.Unlock()
	}
}
