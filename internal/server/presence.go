package server

import (
	"context"
	"log"
	"sort"
	"sync"

	"github.com/redis/go-redis/v9"
)

const presenceSetKey = "chatserver:online"

// PresenceRegistry maps a user identity to its current live connection.
// Each identity has at most one handle; a re-registration supersedes the
// previous connection (last write wins). When a redis client is supplied,
// the set of online identities is mirrored there for external consumers.
type PresenceRegistry struct {
	mu    sync.RWMutex
	conns map[string]*Client
	rdb   *redis.Client
	log   *log.Logger
}

func NewPresenceRegistry(logger *log.Logger, rdb *redis.Client) *PresenceRegistry {
	return &PresenceRegistry{
		conns: make(map[string]*Client),
		rdb:   rdb,
		log:   logger,
	}
}

func (p *PresenceRegistry) Register(identity string, c *Client) {
	p.mu.Lock()
	p.conns[identity] = c
	p.mu.Unlock()

	p.mirrorAdd(identity)
}

func (p *PresenceRegistry) Lookup(identity string) (*Client, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	c, ok := p.conns[identity]
	return c, ok
}

// Clear removes the identity's handle only if it still is c. A clear from a
// superseded connection must not evict the newer handle.
func (p *PresenceRegistry) Clear(identity string, c *Client) bool {
	p.mu.Lock()
	cur, ok := p.conns[identity]
	if !ok || cur != c {
		p.mu.Unlock()
		return false
	}
	delete(p.conns, identity)
	p.mu.Unlock()

	p.mirrorRemove(identity)
	return true
}

// Online returns a sorted snapshot of currently connected identities.
func (p *PresenceRegistry) Online() []string {
	p.mu.RLock()
	identities := make([]string, 0, len(p.conns))
	for id := range p.conns {
		identities = append(identities, id)
	}
	p.mu.RUnlock()

	sort.Strings(identities)
	return identities
}

func (p *PresenceRegistry) mirrorAdd(identity string) {
	if p.rdb == nil {
		return
	}

	if err := p.rdb.SAdd(context.Background(), presenceSetKey, identity).Err(); err != nil {
		p.log.Printf("failed to mirror presence for %q: %v", identity, err)
	}
}

func (p *PresenceRegistry) mirrorRemove(identity string) {
	if p.rdb == nil {
		return
	}

	if err := p.rdb.SRem(context.Background(), presenceSetKey, identity).Err(); err != nil {
		p.log.Printf("failed to remove mirrored presence for %q: %v", identity, err)
	}
}
