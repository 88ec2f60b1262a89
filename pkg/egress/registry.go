package egress

import (
	"sync"

	"github.com/downfa11-org/go-relay/pkg/config"
	"github.com/downfa11-org/go-relay/pkg/types"
	"github.com/downfa11-org/go-relay/util"
)

// Registry maps (database, shard) to its live actor. Actors are created
// lazily on first reference and live until Close.
type Registry struct {
	cfg     *config.Config
	writer  types.StorageWriter
	discard DiscardHook

	mu     sync.Mutex
	actors map[shardKey]*Actor
	closed bool
}

func NewRegistry(cfg *config.Config, writer types.StorageWriter) *Registry {
	return &Registry{
		cfg:    cfg,
		writer: writer,
		actors: make(map[shardKey]*Actor),
	}
}

// SetDiscardHook installs an auditing hook for dropped batches. Must be
// called before the first actor is created.
func (r *Registry) SetDiscardHook(h DiscardHook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.discard = h
}

// Actor returns the live actor for the shard, starting one if needed.
func (r *Registry) Actor(database string, shard int) (*Actor, error) {
	key := shardKey{database: database, shard: shard}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, Unrecoverable("registry closed")
	}
	if a, ok := r.actors[key]; ok {
		return a, nil
	}

	a := newActor(database, shard, r.cfg, r.writer, r.discard)
	r.actors[key] = a
	util.Debug("started shard actor %s/%d", database, shard)
	return a, nil
}

// Close stops every actor and rejects further lookups.
func (r *Registry) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	actors := make([]*Actor, 0, len(r.actors))
	for _, a := range r.actors {
		actors = append(actors, a)
	}
	r.mu.Unlock()

	for _, a := range actors {
		a.Close()
	}
}
