package routing_test

import (
	"testing"

	"github.com/downfa11-org/go-relay/pkg/routing"
	"github.com/downfa11-org/go-relay/pkg/types"
)

func TestShardOfDeterministic(t *testing.T) {
	r := routing.NewRouter(8, nil)
	msg := types.Message{Topic: "orders", Key: "user-42", Payload: []byte("x")}

	first := r.ShardOf("db1", msg)
	for i := 0; i < 10; i++ {
		if got := r.ShardOf("db1", msg); got != first {
			t.Fatalf("ShardOf not deterministic: got %d, want %d", got, first)
		}
	}

	if first < 0 || first >= 8 {
		t.Fatalf("shard out of range: %d", first)
	}
}

func TestShardOfFallsBackToTopic(t *testing.T) {
	r := routing.NewRouter(8, nil)
	a := types.Message{Topic: "orders", Payload: []byte("a")}
	b := types.Message{Topic: "orders", Payload: []byte("b")}

	if r.ShardOf("db1", a) != r.ShardOf("db1", b) {
		t.Errorf("keyless messages on the same topic should share a shard")
	}
}

func TestPartitionPreservesOrder(t *testing.T) {
	r := routing.NewRouter(4, nil)
	msgs := []types.Message{
		{Topic: "t", Key: "a", Payload: []byte("1")},
		{Topic: "t", Key: "b", Payload: []byte("2")},
		{Topic: "t", Key: "a", Payload: []byte("3")},
		{Topic: "t", Key: "b", Payload: []byte("4")},
	}

	groups := r.Partition("db1", msgs)

	total := 0
	for shard, group := range groups {
		total += len(group)
		var last int
		for _, m := range group {
			idx := int(m.Payload[0] - '0')
			if idx <= last {
				t.Errorf("shard %d: order not preserved, %d after %d", shard, idx, last)
			}
			last = idx
		}
	}
	if total != len(msgs) {
		t.Fatalf("partition lost messages: got %d, want %d", total, len(msgs))
	}
}

func TestCustomStrategy(t *testing.T) {
	fixed := func(database string, msg types.Message, shardCount int) int { return 2 }
	r := routing.NewRouter(4, fixed)

	groups := r.Partition("db1", []types.Message{
		{Topic: "t", Key: "a"},
		{Topic: "t", Key: "b"},
	})

	if len(groups) != 1 || len(groups[2]) != 2 {
		t.Fatalf("expected all messages on shard 2, got %+v", groups)
	}
}
