// Package events provides the pre/post mutation notification points other
// subsystems (mail notification, audit log) subscribe to. Pre-hooks may veto
// the pending mutation; post-hooks observe an immutable event record.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Name string

const (
	PreShared           Name = "pre_shared"
	PostShared          Name = "post_shared"
	PreUnshare          Name = "pre_unshare"
	PostUnshare         Name = "post_unshare"
	FederatedShareAdded Name = "federated_share_added"
)

// Event is the record handed to hooks. Payload is owned by the publisher
// and must not be mutated by subscribers.
type Event struct {
	ID      uuid.UUID
	Name    Name
	Time    time.Time
	Payload any
}

// VetoError is returned by a pre-hook to deny the pending mutation.
type VetoError struct {
	Reason string
}

func (e *VetoError) Error() string {
	return e.Reason
}

// Deny builds the structured denial a pre-hook returns. A nil return
// means allow.
func Deny(reason string) error {
	return &VetoError{Reason: reason}
}

// PreHook runs before a mutation. A non-nil error aborts the mutation
// before any row is written.
type PreHook func(ctx context.Context, ev Event) error

// PostHook runs after a mutation committed.
type PostHook func(ctx context.Context, ev Event)

type Bus struct {
	mu     sync.RWMutex
	pre    map[Name][]PreHook
	post   map[Name][]PostHook
	logger *zap.Logger
}

func NewBus(logger *zap.Logger) *Bus {
	return &Bus{
		pre:    make(map[Name][]PreHook),
		post:   make(map[Name][]PostHook),
		logger: logger.Named("events"),
	}
}

func (b *Bus) SubscribePre(name Name, h PreHook) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pre[name] = append(b.pre[name], h)
}

func (b *Bus) SubscribePost(name Name, h PostHook) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.post[name] = append(b.post[name], h)
}

// PublishPre runs all pre-hooks for name in subscription order and stops
// at the first denial.
func (b *Bus) PublishPre(ctx context.Context, name Name, payload any) error {
	b.mu.RLock()
	hooks := b.pre[name]
	b.mu.RUnlock()

	ev := newEvent(name, payload)
	for _, h := range hooks {
		if err := h(ctx, ev); err != nil {
			b.logger.Debug("mutation vetoed",
				zap.String("event", string(name)),
				zap.Error(err))
			return err
		}
	}
	return nil
}

// Publish delivers a post event to all subscribers. Subscriber panics are
// recovered and logged so one listener cannot take down the request.
func (b *Bus) Publish(ctx context.Context, name Name, payload any) {
	b.mu.RLock()
	hooks := b.post[name]
	b.mu.RUnlock()

	ev := newEvent(name, payload)
	for _, h := range hooks {
		func() {
			defer func() {
				if r := recover(); r != nil {
					b.logger.Error("post hook panicked",
						zap.String("event", string(name)),
						zap.Any("panic", r))
				}
			}()
			h(ctx, ev)
		}()
	}
}

func newEvent(name Name, payload any) Event {
	return Event{
		ID:      uuid.New(),
		Name:    name,
		Time:    time.Now().UTC(),
		Payload: payload,
	}
}
