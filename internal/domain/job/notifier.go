package job

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sous-os/sous-core/internal/domain/model"
)

// ErrWaiterRequired indicates a notifier cannot be constructed without a waiter.
var ErrWaiterRequired = errors.New("notifier waiter is required")

// Waiter waits for job availability notifications.
type Waiter interface {
	WaitForNotification(ctx context.Context, queue model.QueueName) error
}

// Notifier manages subscriptions for job availability notifications.
type Notifier interface {
	Subscribe(queue model.QueueName) (func(), <-chan struct{})
	StopAll()
}

// NotifierOptions configure the behaviour of the default notifier implementation.
type NotifierOptions struct {
	Waiter     Waiter
	WaitWindow time.Duration
	Backoff    time.Duration
}

// DefaultNotifier is the default implementation of Notifier.
type DefaultNotifier struct {
	waiter     Waiter
	waitWindow time.Duration
	backoff    time.Duration

	mu        sync.Mutex
	subs      map[model.QueueName]map[chan struct{}]struct{}
	listeners map[model.QueueName]context.CancelFunc
}

// NewNotifier constructs the default notifier implementation.
func NewNotifier(opts NotifierOptions) (*DefaultNotifier, error) {
	if opts.Waiter == nil {
		return nil, ErrWaiterRequired
	}

	waitWindow := opts.WaitWindow
	if waitWindow <= 0 {
		waitWindow = time.Minute
	}

	backoff := opts.Backoff
	if backoff <= 0 {
		backoff = 250 * time.Millisecond
	}

	notifier := &DefaultNotifier{
		waiter:     opts.Waiter,
		waitWindow: waitWindow,
		backoff:    backoff,
		subs:       make(map[model.QueueName]map[chan struct{}]struct{}),
		listeners:  make(map[model.QueueName]context.CancelFunc),
	}
	return notifier, nil
}

func (n *DefaultNotifier) Subscribe(queue model.QueueName) (func(), <-chan struct{}) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if _, ok := n.listeners[queue]; !ok {
		ctx, cancel := context.WithCancel(context.Background())
		n.listeners[queue] = cancel
		go n.listenLoop(ctx, queue)
	}

	ch := make(chan struct{}, 1)
	if n.subs[queue] == nil {
		n.subs[queue] = make(map[chan struct{}]struct{})
	}
	n.subs[queue][ch] = struct{}{}

	unsub := func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		subscribers := n.subs[queue]
		if subscribers == nil {
			return
		}

		if _, ok := subscribers[ch]; !ok {
			return
		}
		delete(subscribers, ch)
		drainAndClose(ch)
		if len(subscribers) == 0 {
			n.stopListener(queue)
			delete(n.subs, queue)
		}
	}

	return unsub, ch
}

func (n *DefaultNotifier) StopAll() {
	n.mu.Lock()
	defer n.mu.Unlock()

	for queue, cancel := range n.listeners {
		cancel()
		delete(n.listeners, queue)
	}
	for queue, subscribers := range n.subs {
		for ch := range subscribers {
			drainAndClose(ch)
		}
		delete(n.subs, queue)
	}
}

func (n *DefaultNotifier) stopListener(queue model.QueueName) {
	cancel, ok := n.listeners[queue]
	if !ok {
		return
	}
	cancel()
	delete(n.listeners, queue)
}

func (n *DefaultNotifier) listenLoop(ctx context.Context, queue model.QueueName) {
	for ctx.Err() == nil {
		waitCtx, cancel := context.WithTimeout(ctx, n.waitWindow)
		err := n.waiter.WaitForNotification(waitCtx, queue)
		cancel()

		n.broadcast(queue)

		if err != nil && ctx.Err() == nil {
			timer := time.NewTimer(n.backoff)
			select {
			case <-ctx.Done():
				if !timer.Stop() {
					<-timer.C
				}
				return
			case <-timer.C:
			}
		}
	}
}

func (n *DefaultNotifier) broadcast(queue model.QueueName) {
	n.mu.Lock()
	defer n.mu.Unlock()

	subscribers := n.subs[queue]
	for ch := range subscribers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// drainAndClose removes any buffered notifications before closing the channel so
// receivers observe a closed channel immediately.
func drainAndClose(ch chan struct{}) {
	for {
		select {
		case <-ch:
		default:
			close(ch)
			return
		}
	}
}

var _ Notifier = (*DefaultNotifier)(nil)
