package share

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryRegisterAndResolve(t *testing.T) {
	r := NewRegistry()
	b := newFakeBackend("calendar")
	require.NoError(t, r.Register("calendar", b))

	got, err := r.Resolve("calendar")
	require.NoError(t, err)
	assert.Equal(t, b, got)

	_, err = r.Resolve("contact")
	assert.ErrorIs(t, err, ErrUnknownBackend)
}

func TestRegistryDuplicateRejected(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("calendar", newFakeBackend("calendar")))
	err := r.Register("calendar", newFakeBackend("calendar"))
	assert.ErrorIs(t, err, ErrInvalidBackend)
}

func TestRegistryInvalidBackends(t *testing.T) {
	r := NewRegistry()
	assert.ErrorIs(t, r.Register("", newFakeBackend("")), ErrInvalidBackend)
	assert.ErrorIs(t, r.Register("calendar", nil), ErrInvalidBackend)
	// Reported item type must match the registration name.
	assert.ErrorIs(t, r.Register("calendar", newFakeBackend("event")), ErrInvalidBackend)
	// Collections must enumerate children.
	assert.ErrorIs(t, r.Register("calendar", newFakeBackend("calendar"), "event"), ErrInvalidBackend)
}

func TestRegistryCollectionForest(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("event", newFakeBackend("event")))
	require.NoError(t, r.Register("calendar", newFakeCollection("calendar"), "event"))

	assert.Equal(t, []string{"calendar"}, r.CollectionsOf("event"))
	assert.Equal(t, []string{"event"}, r.ChildTypesOf("calendar"))
	assert.Empty(t, r.CollectionsOf("calendar"))
}

func TestRegistryFirstRegistrationHook(t *testing.T) {
	calls := 0
	r := NewRegistry(WithFirstRegistration(func() { calls++ }))
	require.NoError(t, r.Register("event", newFakeBackend("event")))
	require.NoError(t, r.Register("calendar", newFakeCollection("calendar"), "event"))
	assert.Equal(t, 1, calls)
}
