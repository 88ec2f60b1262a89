package routing

import (
	"github.com/downfa11-org/go-relay/pkg/types"
	"github.com/downfa11-org/go-relay/util"
)

// Strategy maps a message to a shard. Implementations must be pure and
// deterministic for identical inputs.
type Strategy func(database string, msg types.Message, shardCount int) int

// KeyHash is the default strategy: FNV-1a over the routing key, falling
// back to the topic when no key is set.
func KeyHash(database string, msg types.Message, shardCount int) int {
	key := msg.Key
	if key == "" {
		key = msg.Topic
	}
	return util.Hash(database+"/"+key) % shardCount
}

// Router assigns messages to shards of a database.
type Router struct {
	strategy   Strategy
	shardCount int
}

func NewRouter(shardCount int, strategy Strategy) *Router {
	if shardCount <= 0 {
		shardCount = 1
	}
	if strategy == nil {
		strategy = KeyHash
	}
	return &Router{strategy: strategy, shardCount: shardCount}
}

func (r *Router) ShardCount() int {
	return r.shardCount
}

func (r *Router) ShardOf(database string, msg types.Message) int {
	return r.strategy(database, msg, r.shardCount)
}

// Partition splits msgs into per-shard groups, preserving the submission
// order within each group.
func (r *Router) Partition(database string, msgs []types.Message) map[int][]types.Message {
	groups := make(map[int][]types.Message)
	for _, m := range msgs {
		shard := r.ShardOf(database, m)
		groups[shard] = append(groups[shard], m)
	}
	return groups
}
