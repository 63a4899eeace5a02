package registry

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"conduit/internal/mcpclient"
	"conduit/internal/mcperr"
	"conduit/pkg/logging"

	"github.com/mark3labs/mcp-go/mcp"
	"golang.org/x/sync/errgroup"
)

// Separator is the character that joins a server identifier and a tool name
// into a qualified tool name. It is reserved: identifiers containing it are
// rejected at Connect time, which is what makes splitting a qualified name
// on the first occurrence unambiguous (tool names may legally contain it,
// identifiers may not).
const Separator = "."

// DefaultDiscoveryTimeout bounds each of the three capability list calls
// issued during connect.
const DefaultDiscoveryTimeout = 10 * time.Second

// Snapshot is the cached capability view of one connected server. It is
// captured once when the connection is established and never refreshed
// automatically; reconnecting replaces it. Callers receive copies and must
// not mutate the slices.
type Snapshot struct {
	Name        string
	Tools       []mcp.Tool
	Resources   []mcp.Resource
	Prompts     []mcp.Prompt
	ConnectedAt time.Time
}

// entry pairs a live client with its capability snapshot. The registry is
// the exclusive owner of both.
type entry struct {
	client   mcpclient.MCPClient
	snapshot Snapshot
}

// ClientFactory builds a protocol client for a server identifier and
// transport descriptor. Injectable for testing.
type ClientFactory func(server string, descriptor mcpclient.TransportDescriptor) (mcpclient.MCPClient, error)

// Registry owns the mapping from server identifiers to their live protocol
// sessions and capability snapshots. It is the single source of truth for
// what is connected and what each server can do.
//
// Connect and Disconnect are mutually exclusive per identifier; operations
// on distinct identifiers proceed fully concurrently. The registry never
// reconnects on its own: a dropped connection surfaces on the next
// dispatched call and stays broken until an explicit reconnect.
type Registry struct {
	mu      sync.RWMutex
	servers map[string]*entry
	order   []string // connect order, walked in reverse on DisconnectAll

	lockMu  sync.Mutex
	idLocks map[string]*sync.Mutex

	factory          ClientFactory
	discoveryTimeout time.Duration
}

// Option configures a Registry.
type Option func(*Registry)

// WithClientFactory overrides how protocol clients are constructed.
func WithClientFactory(factory ClientFactory) Option {
	return func(r *Registry) {
		r.factory = factory
	}
}

// WithDiscoveryTimeout overrides the per-list-call timeout used during
// capability discovery.
func WithDiscoveryTimeout(d time.Duration) Option {
	return func(r *Registry) {
		r.discoveryTimeout = d
	}
}

// New creates an empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		servers:          make(map[string]*entry),
		idLocks:          make(map[string]*sync.Mutex),
		factory:          mcpclient.New,
		discoveryTimeout: DefaultDiscoveryTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ValidateIdentifier checks that id is usable as a server identifier:
// non-empty, no surrounding whitespace, and free of the reserved separator.
func ValidateIdentifier(id string) error {
	if id == "" {
		return &mcperr.ValidationError{Field: "id", Reason: "server identifier must not be empty"}
	}
	if strings.TrimSpace(id) != id {
		return &mcperr.ValidationError{Field: "id", Reason: fmt.Sprintf("server identifier %q must not contain surrounding whitespace", id)}
	}
	if strings.Contains(id, Separator) {
		return &mcperr.ValidationError{Field: "id", Reason: fmt.Sprintf("server identifier %q must not contain the reserved separator %q", id, Separator)}
	}
	return nil
}

// idLock returns the mutex serializing connect/disconnect for one
// identifier.
func (r *Registry) idLock(id string) *sync.Mutex {
	r.lockMu.Lock()
	defer r.lockMu.Unlock()

	l, ok := r.idLocks[id]
	if !ok {
		l = &sync.Mutex{}
		r.idLocks[id] = l
	}
	return l
}

// Connect establishes a connection to the server described by descriptor
// and registers it under id. The identifier is validated before any
// connection attempt; a descriptor or identifier violation surfaces as a
// *mcperr.ValidationError with no handle created.
//
// Capability discovery runs to completion before Connect returns: the
// three list calls are issued concurrently, each independently fallible —
// a server lacking a capability (or timing out on one list call) yields an
// empty list for that capability, never a connect failure. Immediately
// after a successful Connect, Get(id) is a synchronous cache read.
//
// Connecting an already-connected id replaces the prior handle; the old
// one is closed first.
func (r *Registry) Connect(ctx context.Context, id string, descriptor mcpclient.TransportDescriptor) error {
	if err := ValidateIdentifier(id); err != nil {
		return err
	}

	client, err := r.factory(id, descriptor)
	if err != nil {
		return err
	}

	lock := r.idLock(id)
	lock.Lock()
	defer lock.Unlock()

	// Replace semantics: close the previous handle before connecting anew.
	r.mu.Lock()
	if old, exists := r.servers[id]; exists {
		if closeErr := old.client.Close(); closeErr != nil {
			logging.Warn("Registry", "Error closing previous handle for %s: %v", id, closeErr)
		}
		delete(r.servers, id)
		r.removeFromOrder(id)
	}
	r.mu.Unlock()

	if err := client.Initialize(ctx); err != nil {
		if closeErr := client.Close(); closeErr != nil {
			logging.Debug("Registry", "Error closing failed handle for %s: %v", id, closeErr)
		}
		return err
	}

	snapshot := r.discover(ctx, id, client)

	r.mu.Lock()
	r.servers[id] = &entry{client: client, snapshot: snapshot}
	r.order = append(r.order, id)
	r.mu.Unlock()

	logging.Info("Registry", "Connected server %s with %d tools, %d resources, %d prompts",
		id, len(snapshot.Tools), len(snapshot.Resources), len(snapshot.Prompts))
	return nil
}

// discover issues the three capability list calls concurrently and collects
// whatever succeeded. Failures are swallowed into empty lists: discovery is
// best-effort and a missing capability is indistinguishable from an empty
// one.
func (r *Registry) discover(ctx context.Context, id string, client mcpclient.MCPClient) Snapshot {
	snapshot := Snapshot{
		Name:        id,
		ConnectedAt: time.Now(),
	}

	g := &errgroup.Group{}

	g.Go(func() error {
		listCtx, cancel := context.WithTimeout(ctx, r.discoveryTimeout)
		defer cancel()
		tools, err := client.ListTools(listCtx)
		if err != nil {
			logging.Debug("Registry", "Tool discovery for %s yielded nothing: %v", id, err)
			return nil
		}
		snapshot.Tools = tools
		return nil
	})

	g.Go(func() error {
		listCtx, cancel := context.WithTimeout(ctx, r.discoveryTimeout)
		defer cancel()
		resources, err := client.ListResources(listCtx)
		if err != nil {
			logging.Debug("Registry", "Resource discovery for %s yielded nothing: %v", id, err)
			return nil
		}
		snapshot.Resources = resources
		return nil
	})

	g.Go(func() error {
		listCtx, cancel := context.WithTimeout(ctx, r.discoveryTimeout)
		defer cancel()
		prompts, err := client.ListPrompts(listCtx)
		if err != nil {
			logging.Debug("Registry", "Prompt discovery for %s yielded nothing: %v", id, err)
			return nil
		}
		snapshot.Prompts = prompts
		return nil
	})

	// Tasks never return errors; Wait is a join point.
	_ = g.Wait()

	return snapshot
}

// Disconnect closes the handle registered under id and purges its
// snapshot. Disconnecting an unknown identifier is a no-op, not an error.
func (r *Registry) Disconnect(id string) error {
	lock := r.idLock(id)
	lock.Lock()
	defer lock.Unlock()

	r.mu.Lock()
	e, exists := r.servers[id]
	if !exists {
		r.mu.Unlock()
		return nil
	}
	delete(r.servers, id)
	r.removeFromOrder(id)
	r.mu.Unlock()

	if err := e.client.Close(); err != nil {
		logging.Warn("Registry", "Error closing client for %s: %v", id, err)
	}

	logging.Info("Registry", "Disconnected server %s", id)
	return nil
}

// DisconnectAll closes every handle in reverse connect order and purges all
// snapshots.
func (r *Registry) DisconnectAll() {
	r.mu.RLock()
	ids := make([]string, len(r.order))
	copy(ids, r.order)
	r.mu.RUnlock()

	for i := len(ids) - 1; i >= 0; i-- {
		if err := r.Disconnect(ids[i]); err != nil {
			logging.Warn("Registry", "Error disconnecting %s: %v", ids[i], err)
		}
	}
}

// removeFromOrder drops id from the connect-order list. Caller holds mu.
func (r *Registry) removeFromOrder(id string) {
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			return
		}
	}
}

// Get returns a copy of the capability snapshot for id. The second return
// value is false when id is not connected. No I/O happens here; snapshots
// are pure cache reads after Connect.
func (r *Registry) Get(id string) (Snapshot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, exists := r.servers[id]
	if !exists {
		return Snapshot{}, false
	}
	return copySnapshot(e.snapshot), true
}

// GetAll returns copies of all capability snapshots keyed by identifier.
func (r *Registry) GetAll() map[string]Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make(map[string]Snapshot, len(r.servers))
	for id, e := range r.servers {
		result[id] = copySnapshot(e.snapshot)
	}
	return result
}

// IsConnected reports whether id has a live handle.
func (r *Registry) IsConnected(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.servers[id]
	return exists
}

// ListIDs returns the identifiers of all connected servers, sorted.
func (r *Registry) ListIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.servers))
	for id := range r.servers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Client returns the live protocol session for id, or a
// *mcperr.NotConnectedError when no handle exists. Callers must not hold
// the returned client beyond the duration of one dispatched call.
func (r *Registry) Client(id string) (mcpclient.MCPClient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, exists := r.servers[id]
	if !exists {
		return nil, &mcperr.NotConnectedError{Server: id}
	}
	return e.client, nil
}

func copySnapshot(s Snapshot) Snapshot {
	out := s
	out.Tools = append([]mcp.Tool(nil), s.Tools...)
	out.Resources = append([]mcp.Resource(nil), s.Resources...)
	out.Prompts = append([]mcp.Prompt(nil), s.Prompts...)
	return out
}
