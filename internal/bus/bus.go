// internal/bus/bus.go
package bus

import (
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/palace-game/palace/internal/protocol"
)

// Bus is the in-process publish/subscribe layer. Connections register an
// outbound channel and receive a channel id; sessions address them either
// directly by id or through a named group. Sends never block: a full or
// stale channel drops the message rather than stalling game logic.
type Bus struct {
	mu       sync.Mutex
	channels map[uuid.UUID]chan protocol.Message
	groups   map[string]map[uuid.UUID]struct{}
}

// New returns an empty Bus.
func New() *Bus {
	return &Bus{
		channels: make(map[uuid.UUID]chan protocol.Message),
		groups:   make(map[string]map[uuid.UUID]struct{}),
	}
}

// Register allocates a channel id with a buffered outbound queue. The caller
// owns draining the returned channel (the gateway's write pump).
func (b *Bus) Register(buffer int) (uuid.UUID, <-chan protocol.Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := uuid.New()
	ch := make(chan protocol.Message, buffer)
	b.channels[id] = ch
	return id, ch
}

// Unregister drops the channel from the bus and every group, then closes its
// outbound queue so the write pump exits.
func (b *Bus) Unregister(id uuid.UUID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch, ok := b.channels[id]
	if !ok {
		return
	}
	delete(b.channels, id)
	for name, members := range b.groups {
		delete(members, id)
		if len(members) == 0 {
			delete(b.groups, name)
		}
	}
	close(ch)
}

// Subscribe adds the channel to a named group.
func (b *Bus) Subscribe(group string, id uuid.UUID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.channels[id]; !ok {
		log.Printf("bus: subscribe for unknown channel %s to group %q", id, group)
		return
	}
	members, ok := b.groups[group]
	if !ok {
		members = make(map[uuid.UUID]struct{})
		b.groups[group] = members
	}
	members[id] = struct{}{}
}

// Unsubscribe removes the channel from a named group. Unknown memberships
// are a no-op.
func (b *Bus) Unsubscribe(group string, id uuid.UUID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	members, ok := b.groups[group]
	if !ok {
		return
	}
	delete(members, id)
	if len(members) == 0 {
		delete(b.groups, group)
	}
}

// SendDirect delivers msg to exactly one channel. Delivery is at-most-once;
// a missing or saturated channel drops the message.
func (b *Bus) SendDirect(id uuid.UUID, msg protocol.Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.push(id, msg)
}

// SendGroup delivers msg to every current member of the group. Calls made by
// one session are queued in order, so per-session ordering holds end to end.
func (b *Bus) SendGroup(group string, msg protocol.Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id := range b.groups[group] {
		b.push(id, msg)
	}
}

// push assumes the bus lock is held.
func (b *Bus) push(id uuid.UUID, msg protocol.Message) {
	ch, ok := b.channels[id]
	if !ok {
		return
	}
	select {
	case ch <- msg:
	default:
		log.Printf("bus: channel %s full, dropped %s message", id, msg.Kind)
	}
}
