// Package registry implements the peer registry: identity -> (role,
// last-heartbeat) tracking, the server-slot singleton, liveness-based
// pruning, and broadcast-set enumeration, as specified in spec §3/§4.3.
package registry

import (
	"sync"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"go.uber.org/zap"

	"github.com/NadimGhaznavi/hydra-router/internal/envelope"
)

// Peer is a registry entry: the transport identity's role and the time of
// its last observed heartbeat (or any other envelope — every inbound
// envelope touches the registry, not only heartbeats).
type Peer struct {
	Identity      string
	Role          envelope.Role
	LastHeartbeat time.Time
	// Displaced is true for a former server-slot occupant that has been
	// superseded by a more recent server registration (invariant S1). A
	// displaced peer is tracked like any other non-server peer until it
	// times out or re-registers.
	Displaced bool
}

// Registry tracks connected peers under a single lock, per spec §9's
// "single owned value behind a mutual-exclusion primitive" guidance. A
// ristretto cache mirrors the set of registered identities (entries are
// written without a TTL and are never read back); the map is the source of
// truth, and Prune enforces invariant R3 by scanning it directly.
type Registry struct {
	mu     sync.RWMutex
	peers  map[string]*Peer
	server string // identity of the active server slot, "" if none

	ttl   *ristretto.Cache[string, struct{}]
	log   *zap.SugaredLogger
	sizeG func(int) // optional metrics hook, set by callers that want gauge updates
}

// New constructs an empty Registry. log may be nil (a no-op logger is used).
func New(log *zap.SugaredLogger) *Registry {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	cache, err := ristretto.NewCache(&ristretto.Config[string, struct{}]{
		NumCounters: 1e4,
		MaxCost:     1 << 20,
		BufferItems: 64,
	})
	if err != nil {
		// Nothing reads the ristretto cache; the map-based Prune scan
		// remains correct without it.
		log.Warnw("registry: ristretto cache unavailable, continuing with map-only pruning", "error", err)
		cache = nil
	}
	return &Registry{
		peers: make(map[string]*Peer),
		ttl:   cache,
		log:   log,
	}
}

// SetSizeGauge installs a callback invoked with the current peer count after
// every mutating operation, used by internal/metrics to expose a gauge.
func (r *Registry) SetSizeGauge(f func(int)) {
	r.mu.Lock()
	r.sizeG = f
	r.mu.Unlock()
}

func (r *Registry) reportSizeLocked() {
	if r.sizeG != nil {
		r.sizeG(len(r.peers))
	}
}

// Register is idempotent on identity: a duplicate registration updates role
// and heartbeat rather than erroring. If role is a server-role, the server
// slot is set to identity, displacing any prior occupant (S1,
// last-writer-wins per spec §4.3/§9).
func (r *Registry) Register(identity string, role envelope.Role) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	if p, ok := r.peers[identity]; ok {
		p.Role = role
		p.LastHeartbeat = now
		p.Displaced = false
	} else {
		r.peers[identity] = &Peer{Identity: identity, Role: role, LastHeartbeat: now}
	}

	if role.IsServerRole() {
		if r.server != "" && r.server != identity {
			if prev, ok := r.peers[r.server]; ok {
				prev.Displaced = true
				r.log.Infow("registry: server slot displaced", "previous", r.server, "new", identity)
			}
		}
		r.server = identity
	}

	r.touchTTL(identity)
	r.reportSizeLocked()
}

// Touch refreshes identity's last-heartbeat to now. No-op if identity is not
// registered (spec §4.3).
func (r *Registry) Touch(identity string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.peers[identity]; ok {
		p.LastHeartbeat = time.Now()
		r.touchTTL(identity)
	}
}

func (r *Registry) touchTTL(identity string) {
	if r.ttl != nil {
		r.ttl.SetWithTTL(identity, struct{}{}, 1, 0)
	}
}

// Remove drops identity's entry. If it held the server slot, the slot is
// cleared.
func (r *Registry) Remove(identity string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.peers, identity)
	if r.server == identity {
		r.server = ""
	}
	if r.ttl != nil {
		r.ttl.Del(identity)
	}
	r.reportSizeLocked()
}

// Prune removes every entry whose last heartbeat is older than tDead and
// returns their identities, for logging (spec §4.3/R3). Pruning the server
// slot implicitly clears server routing for subsequent client traffic.
func (r *Registry) Prune(tDead time.Duration) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	var removed []string
	for id, p := range r.peers {
		if now.Sub(p.LastHeartbeat) > tDead {
			removed = append(removed, id)
			delete(r.peers, id)
			if r.ttl != nil {
				r.ttl.Del(id)
			}
			if r.server == id {
				r.server = ""
			}
		}
	}
	if len(removed) > 0 {
		r.reportSizeLocked()
	}
	return removed
}

// ClientsToBroadcast enumerates identities with a client-role, excluding
// exclude (normally the broadcasting server itself).
func (r *Registry) ClientsToBroadcast(exclude string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []string
	for id, p := range r.peers {
		if id == exclude {
			continue
		}
		if p.Role.IsClientRole() {
			out = append(out, id)
		}
	}
	return out
}

// ServerIdentity returns the active server slot's identity, or "" if none.
func (r *Registry) ServerIdentity() (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.server == "" {
		return "", false
	}
	return r.server, true
}

// Lookup returns a copy of identity's Peer record, if present.
func (r *Registry) Lookup(identity string) (Peer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.peers[identity]
	if !ok {
		return Peer{}, false
	}
	return *p, true
}

// SnapshotEntry is one row of Registry.Snapshot(), matching the
// registry-query response shape in spec §6.
type SnapshotEntry struct {
	Role          string  `json:"role"`
	LastHeartbeat float64 `json:"last_heartbeat"`
	IsServer      bool    `json:"is_server"`
}

// Snapshot returns a read-only copy of the registry keyed by transport
// identity, for status/registry-query responses (spec §4.3/§6).
func (r *Registry) Snapshot() map[string]SnapshotEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]SnapshotEntry, len(r.peers))
	for id, p := range r.peers {
		out[id] = SnapshotEntry{
			Role:          string(p.Role),
			LastHeartbeat: float64(p.LastHeartbeat.Unix()),
			IsServer:      id == r.server,
		}
	}
	return out
}

// Len reports the current number of registered peers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.peers)
}
