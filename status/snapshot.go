// Package status builds and caches point-in-time views of the relay's
// connected clients.
package status

import (
	"context"
	"time"

	"github.com/cyberinferno/chatrelay/idgenerator"
	"github.com/cyberinferno/chatrelay/registry"
)

// Snapshot describes the relay at GeneratedAt.
type Snapshot struct {
	Instance    string    `json:"instance"`
	Clients     []uint64  `json:"clients"`
	Connected   int       `json:"connected"`
	LastIssued  uint64    `json:"last_issued"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Key is the cache key a relay instance publishes its snapshot under.
func Key(prefix, instance string) string {
	return prefix + ":status:" + instance
}

// Provider builds snapshots from live relay state.
type Provider struct {
	instance string
	clients  *registry.Registry
	ids      *idgenerator.IdGenerator
	now      func() time.Time
}

// NewProvider returns a Provider reading clients and ids.
func NewProvider(instance string, clients *registry.Registry, ids *idgenerator.IdGenerator) *Provider {
	return &Provider{instance: instance, clients: clients, ids: ids, now: time.Now}
}

// Build takes a snapshot. Clients are in ascending identity order.
func (p *Provider) Build(ctx context.Context) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}

	ids := p.clients.IDs()
	if ids == nil {
		ids = []uint64{}
	}

	return Snapshot{
		Instance:    p.instance,
		Clients:     ids,
		Connected:   len(ids),
		LastIssued:  p.ids.Last(),
		GeneratedAt: p.now().UTC(),
	}, nil
}
