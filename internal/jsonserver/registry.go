// Package jsonserver streams motion samples as JSON datagrams to UDP
// clients. A client registers by sending any datagram to the server port and
// stays registered while it keeps sending; idle clients age out.
package jsonserver

import (
	"net"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/itsOwen/SteamDeckMotion/internal/monitoring"
)

// DefaultClientTimeout is how long a client stays registered after its last
// datagram.
const DefaultClientTimeout = 30 * time.Second

// Registry is the set of registered clients keyed by address:port, each with
// a last-seen TTL. Reads and writes may come from different goroutines; the
// backing cache serializes them. Expired entries never appear in Snapshot
// even before a Sweep removes them.
type Registry struct {
	peers *cache.Cache
}

// NewRegistry creates a registry with the given idle timeout. Zero selects
// DefaultClientTimeout.
func NewRegistry(ttl time.Duration) *Registry {
	if ttl <= 0 {
		ttl = DefaultClientTimeout
	}
	// No janitor goroutine: the receive loop sweeps after every datagram.
	return &Registry{peers: cache.New(ttl, 0)}
}

// Touch registers addr or refreshes its TTL. Only genuine insertions are
// logged; refreshes stay quiet.
func (r *Registry) Touch(addr *net.UDPAddr) {
	key := addr.String()
	_, known := r.peers.Get(key)
	r.peers.SetDefault(key, addr)
	if !known {
		monitoring.Logf("JsonServer: New client registered: %s", key)
	}
}

// Sweep drops every client whose TTL has lapsed.
func (r *Registry) Sweep() {
	r.peers.DeleteExpired()
}

// Snapshot returns a point-in-time copy of the live client addresses.
func (r *Registry) Snapshot() []*net.UDPAddr {
	items := r.peers.Items()
	addrs := make([]*net.UDPAddr, 0, len(items))
	for _, item := range items {
		addrs = append(addrs, item.Object.(*net.UDPAddr))
	}
	return addrs
}

// Len reports how many clients are currently registered.
func (r *Registry) Len() int {
	return len(r.peers.Items())
}
