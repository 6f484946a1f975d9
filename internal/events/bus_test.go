package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestPublishPreStopsAtFirstDenial(t *testing.T) {
	bus := NewBus(zap.NewNop())
	ctx := context.Background()

	var order []string
	bus.SubscribePre(PreShared, func(_ context.Context, _ Event) error {
		order = append(order, "first")
		return nil
	})
	bus.SubscribePre(PreShared, func(_ context.Context, _ Event) error {
		order = append(order, "second")
		return Deny("nope")
	})
	bus.SubscribePre(PreShared, func(_ context.Context, _ Event) error {
		order = append(order, "third")
		return nil
	})

	err := bus.PublishPre(ctx, PreShared, nil)
	require.Error(t, err)

	var veto *VetoError
	require.True(t, errors.As(err, &veto))
	assert.Equal(t, "nope", veto.Reason)
	assert.Equal(t, []string{"first", "second"}, order)
}

func TestPublishPreAllowsByDefault(t *testing.T) {
	bus := NewBus(zap.NewNop())
	assert.NoError(t, bus.PublishPre(context.Background(), PreUnshare, nil))
}

func TestPostEventRecord(t *testing.T) {
	bus := NewBus(zap.NewNop())

	var got Event
	bus.SubscribePost(PostShared, func(_ context.Context, ev Event) {
		got = ev
	})
	bus.Publish(context.Background(), PostShared, "payload")

	assert.Equal(t, PostShared, got.Name)
	assert.Equal(t, "payload", got.Payload)
	assert.False(t, got.Time.IsZero())
	assert.NotEqual(t, [16]byte{}, [16]byte(got.ID))
}

func TestPostHookPanicIsContained(t *testing.T) {
	bus := NewBus(zap.NewNop())

	delivered := false
	bus.SubscribePost(PostUnshare, func(_ context.Context, _ Event) {
		panic("boom")
	})
	bus.SubscribePost(PostUnshare, func(_ context.Context, _ Event) {
		delivered = true
	})

	bus.Publish(context.Background(), PostUnshare, nil)
	assert.True(t, delivered)
}
