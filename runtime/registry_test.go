package runtime

import (
	"chat-pipeline/domain"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegistry_Subscribe_Multiple_Participants(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(NewStaticPermissions(nil, nil))
	steve, alex := newInbox("Steve"), newInbox("Alex")

	// Given no participant is connected
	req.Zero(registry.Len())
	req.Empty(registry.AllConnected())

	// When participants connect
	registry.Subscribe(steve)
	registry.Subscribe(alex)

	// Then they are listed in connection order
	req.Equal(2, registry.Len())
	req.Len(registry.AllConnected(), 2)
	req.Equal(steve, registry.AllConnected()[0])
	req.Equal(alex, registry.AllConnected()[1])

	got, ok := registry.Get(alex.ID())
	req.True(ok)
	req.Equal(alex, got)
}

func TestRegistry_Reconnect_Replaces_Session(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(NewStaticPermissions(nil, nil))
	first := newInbox("Steve")
	second := &inbox{id: first.ID(), name: "Steve"}

	// Given a participant connected twice
	registry.Subscribe(first)
	registry.Subscribe(second)

	// Then only the newest session is kept
	req.Equal(1, registry.Len())
	got, _ := registry.Get(first.ID())
	req.Same(second, got)

	// When the stale connection closes late
	registry.Unsubscribe(first)

	// Then the replacement is still connected
	req.Equal(1, registry.Len())
	got, ok := registry.Get(first.ID())
	req.True(ok)
	req.Same(second, got)
}

func TestRegistry_Unsubscribe_Keeps_Others(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(NewStaticPermissions(nil, nil))
	steve, alex, mod := newInbox("Steve"), newInbox("Alex"), newInbox("Mod")
	registry.Subscribe(steve)
	registry.Subscribe(alex)
	registry.Subscribe(mod)

	// When a participant leaves
	registry.Unsubscribe(steve)

	// Then only the others remain, still reachable by id
	req.Equal(2, registry.Len())
	_, ok := registry.Get(steve.ID())
	req.False(ok)
	got, ok := registry.Get(mod.ID())
	req.True(ok)
	req.Same(mod, got)
}

func TestRegistry_ConnectedWithCapability(t *testing.T) {
	req := require.New(t)
	permissions := NewStaticPermissions(nil, map[string][]string{"Mod": {domain.CapabilityOversight}})
	registry := NewRegistry(permissions)
	steve, mod := newInbox("Steve"), newInbox("mod")
	registry.Subscribe(steve)
	registry.Subscribe(mod)

	holders := registry.ConnectedWithCapability(domain.CapabilityOversight)

	req.Len(holders, 1)
	req.Same(mod, holders[0])
	req.Empty(registry.ConnectedWithCapability("nobody.has.this"))
}
