package runtime

import (
	"chat-pipeline/contract"
	"chat-pipeline/domain"
	"maps"
	"strings"
	"sync/atomic"
)

var _ contract.PermissionChecker = StaticPermissions{}

// StaticPermissions grants capabilities by participant name, on top of defaults
// granted to everyone. Names are case-insensitive.
type StaticPermissions struct {
	defaults domain.CapabilitySet
	players  map[string]domain.CapabilitySet
}

func NewStaticPermissions(defaults []string, players map[string][]string) StaticPermissions {
	byName := make(map[string]domain.CapabilitySet, len(players))
	for name, caps := range players {
		byName[strings.ToLower(name)] = domain.NewCapabilitySet(caps...)
	}
	return StaticPermissions{defaults: domain.NewCapabilitySet(defaults...), players: byName}
}

func (s StaticPermissions) HasCapability(p domain.Participant, name string) bool {
	return s.defaults.Has(name) || s.players[strings.ToLower(p.Name)].Has(name)
}

// Capabilities returns the full set held by a participant.
func (s StaticPermissions) Capabilities(p domain.Participant) domain.CapabilitySet {
	set := maps.Clone(s.defaults)
	if set == nil {
		set = domain.CapabilitySet{}
	}
	maps.Copy(set, s.players[strings.ToLower(p.Name)])
	return set
}

var _ contract.PermissionChecker = (*LivePermissions)(nil)

// LivePermissions follows configuration reloads, checks always use the latest grants.
type LivePermissions struct {
	current atomic.Pointer[StaticPermissions]
}

func NewLivePermissions(initial StaticPermissions) *LivePermissions {
	l := &LivePermissions{}
	l.Store(initial)
	return l
}

func (l *LivePermissions) Store(permissions StaticPermissions) {
	l.current.Store(&permissions)
}

func (l *LivePermissions) HasCapability(p domain.Participant, name string) bool {
	return l.current.Load().HasCapability(p, name)
}

func (l *LivePermissions) Capabilities(p domain.Participant) domain.CapabilitySet {
	return l.current.Load().Capabilities(p)
}
