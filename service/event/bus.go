package event

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// Handler handles a published event.
type Handler[T any] func(*Event[T])

type subscription[T any] struct {
	id      uint64
	once    bool
	handler Handler[T]
}

// Bus is a synchronous publish/subscribe registry keyed by entity id
// (for example a token id). Handlers run on the publishing goroutine.
type Bus[T any] struct {
	mu            sync.Mutex
	subscriptions map[string][]*subscription[T]
	nextID        atomic.Uint64
	logger        *zap.Logger
}

// Option configures a Bus.
type Option func(*options)

type options struct {
	logger *zap.Logger
}

// WithLogger sets the logger reporting recovered handler panics.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// NewBus creates an empty bus.
func NewBus[T any](opts ...Option) *Bus[T] {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	return &Bus[T]{subscriptions: make(map[string][]*subscription[T]), logger: o.logger}
}

// Subscribe registers handler for every event published under key.
// The returned function detaches the handler; it is safe to call more than once.
func (b *Bus[T]) Subscribe(key string, handler Handler[T]) (unsubscribe func()) {
	return b.subscribe(key, handler, false)
}

// Once registers handler for the next event published under key only.
// The handler is detached before it runs.
func (b *Bus[T]) Once(key string, handler Handler[T]) (unsubscribe func()) {
	return b.subscribe(key, handler, true)
}

func (b *Bus[T]) subscribe(key string, handler Handler[T], once bool) func() {
	sub := &subscription[T]{id: b.nextID.Add(1), once: once, handler: handler}
	b.mu.Lock()
	b.subscriptions[key] = append(b.subscriptions[key], sub)
	b.mu.Unlock()
	return func() { b.remove(key, sub.id) }
}

func (b *Bus[T]) remove(key string, id uint64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subscriptions[key]
	for i, sub := range subs {
		if sub.id != id {
			continue
		}
		subs = append(subs[:i:i], subs[i+1:]...)
		if len(subs) == 0 {
			delete(b.subscriptions, key)
		} else {
			b.subscriptions[key] = subs
		}
		return true
	}
	return false
}

// Publish dispatches event to handlers subscribed under event.Key in
// registration order. One-shot handlers are detached before dispatch, so a
// handler that publishes again never sees itself twice.
func (b *Bus[T]) Publish(event *Event[T]) {
	b.mu.Lock()
	subs := b.subscriptions[event.Key]
	targets := make([]*subscription[T], len(subs))
	copy(targets, subs)
	kept := subs[:0:0]
	for _, sub := range subs {
		if !sub.once {
			kept = append(kept, sub)
		}
	}
	if len(kept) == 0 {
		delete(b.subscriptions, event.Key)
	} else {
		b.subscriptions[event.Key] = kept
	}
	b.mu.Unlock()

	for _, sub := range targets {
		b.safeCall(sub.handler, event)
	}
}

// Len returns the number of handlers registered under key.
func (b *Bus[T]) Len(key string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subscriptions[key])
}

func (b *Bus[T]) safeCall(handler Handler[T], event *Event[T]) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked",
				zap.String("topic", event.Topic),
				zap.String("key", event.Key),
				zap.Any("panic", r),
				zap.Stack("stack"))
		}
	}()
	handler(event)
}
