package ledger

import (
	"context"
	"sync"

	"github.com/orgball2608/insta-stories-viewer/internal/repositories/kv"
	"github.com/orgball2608/insta-stories-viewer/pkg/config"
	"github.com/orgball2608/insta-stories-viewer/pkg/logger"
)

// Registry hands out one ledger per client. Each client gets its own slot,
// "<base>:<client>"; the empty client id maps to the base key itself.
// A ledger stays cached only while somebody holds it.
type Registry struct {
	store   kv.Store
	baseKey string
	logger  logger.Logger

	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	ledger *Ledger
	refs   int
}

func NewRegistry(store kv.Store, cfg *config.Config, log logger.Logger) *Registry {
	key := cfg.Ledger.Key
	if key == "" {
		key = DefaultKey
	}
	return &Registry{
		store:   store,
		baseKey: key,
		logger:  log,
		entries: make(map[string]*entry),
	}
}

func (r *Registry) KeyFor(clientID string) string {
	if clientID == "" {
		return r.baseKey
	}
	return r.baseKey + ":" + clientID
}

// Acquire returns the client's ledger and a release func. Concurrent holders
// share one ledger; the last release evicts it, and the next Acquire reloads
// it from the store.
func (r *Registry) Acquire(ctx context.Context, clientID string) (*Ledger, func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[clientID]
	if !ok {
		e = &entry{ledger: Load(ctx, r.store, r.KeyFor(clientID), r.logger)}
		r.entries[clientID] = e
	}
	e.refs++

	var once sync.Once
	return e.ledger, func() {
		once.Do(func() { r.release(clientID, e) })
	}
}

func (r *Registry) release(clientID string, e *entry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e.refs--
	if e.refs <= 0 && r.entries[clientID] == e {
		delete(r.entries, clientID)
	}
}

// Len is the number of ledgers currently held.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
