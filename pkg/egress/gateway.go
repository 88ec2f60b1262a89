package egress

import (
	"sort"
	"sync"

	"github.com/downfa11-org/go-relay/pkg/routing"
	"github.com/downfa11-org/go-relay/pkg/types"
)

// SubmitOptions selects the durability mode and atomicity of a request.
type SubmitOptions struct {
	Sync   bool
	Atomic bool
}

// Gateway is the entry point for producers. It partitions a request by
// shard and forwards it to the owning actors.
type Gateway struct {
	registry *Registry
	router   *routing.Router
}

func NewGateway(registry *Registry, router *routing.Router) *Gateway {
	return &Gateway{registry: registry, router: router}
}

// Submit enqueues messages for the database. nil means success; the
// error is otherwise a RecoverableError or UnrecoverableError.
func (g *Gateway) Submit(database string, msgs []types.Message, opts SubmitOptions) error {
	if len(msgs) == 0 {
		return nil
	}

	groups := g.router.Partition(database, msgs)

	// Common path: every message routes to a single shard. The group
	// slice from the partition step is forwarded as-is.
	if len(groups) == 1 {
		for shard, group := range groups {
			return g.submitShard(database, shard, group, opts.Sync)
		}
	}

	if opts.Atomic {
		return ErrAtomicCrossShard
	}

	return g.fanOut(database, groups, opts)
}

func (g *Gateway) submitShard(database string, shard int, group []types.Message, syncMode bool) error {
	actor, err := g.registry.Actor(database, shard)
	if err != nil {
		return err
	}
	return actor.Enqueue(group, syncMode, len(group), types.BatchSize(group))
}

// fanOut submits each per-shard group independently and composes one
// outcome. Composition inspects shards in ascending order so the
// representative failure is deterministic for identical inputs.
func (g *Gateway) fanOut(database string, groups map[int][]types.Message, opts SubmitOptions) error {
	shards := make([]int, 0, len(groups))
	for shard := range groups {
		shards = append(shards, shard)
	}
	sort.Ints(shards)

	errs := make([]error, len(shards))
	var wg sync.WaitGroup
	for i, shard := range shards {
		wg.Add(1)
		go func(i, shard int) {
			defer wg.Done()
			errs[i] = g.submitShard(database, shard, groups[shard], opts.Sync)
		}(i, shard)
	}
	wg.Wait()

	for _, err := range errs {
		if IsUnrecoverable(err) {
			return err
		}
	}
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
