package server_test

import (
	"strings"
	"sync"
	"testing"

	"github.com/downfa11-org/go-relay/pkg/config"
	"github.com/downfa11-org/go-relay/pkg/egress"
	"github.com/downfa11-org/go-relay/pkg/routing"
	"github.com/downfa11-org/go-relay/pkg/server"
	"github.com/downfa11-org/go-relay/pkg/types"
	"github.com/downfa11-org/go-relay/util"
)

type memoryWriter struct {
	mu       sync.Mutex
	messages map[string]uint64
	bytes    map[string]uint64
}

func newMemoryWriter() *memoryWriter {
	return &memoryWriter{
		messages: make(map[string]uint64),
		bytes:    make(map[string]uint64),
	}
}

func (w *memoryWriter) key(database string, shard int) string {
	return database + "/" + string(rune('0'+shard))
}

func (w *memoryWriter) WriteBatch(database string, shard int, msgs []types.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	k := w.key(database, shard)
	w.messages[k] += uint64(len(msgs))
	w.bytes[k] += uint64(types.BatchSize(msgs))
	return nil
}

func (w *memoryWriter) ShardState(database string, shard int) (uint64, uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	k := w.key(database, shard)
	return w.messages[k], w.bytes[k]
}

func newTestHandler(t *testing.T) (*server.CommandHandler, *memoryWriter) {
	t.Helper()
	cfg := &config.Config{
		MaxBatchCount:   1, // flush on every accepted batch
		FlushIntervalMS: 50,
		CooldownMinMS:   10,
		CooldownMaxMS:   20,
	}
	writer := newMemoryWriter()
	reg := egress.NewRegistry(cfg, writer)
	t.Cleanup(reg.Close)

	gw := egress.NewGateway(reg, routing.NewRouter(1, nil))
	return server.NewCommandHandler(gw, writer), writer
}

func TestHandlePing(t *testing.T) {
	h, _ := newTestHandler(t)
	if got := h.HandleCommand("PING"); got != "PONG" {
		t.Fatalf("PING: got %q", got)
	}
}

func TestHandleTextSubmit(t *testing.T) {
	h, writer := newTestHandler(t)

	resp := h.HandleCommand("SUBMIT database=db1 sync=true topic=orders key=u1 message=hello world")
	if resp != "OK" {
		t.Fatalf("SUBMIT: got %q", resp)
	}

	count, _ := writer.ShardState("db1", 0)
	if count != 1 {
		t.Fatalf("expected 1 stored message, got %d", count)
	}
}

func TestHandleSubmitMissingDatabase(t *testing.T) {
	h, _ := newTestHandler(t)
	resp := h.HandleCommand("SUBMIT topic=orders message=x")
	if !strings.HasPrefix(resp, "ERROR:") {
		t.Fatalf("expected error response, got %q", resp)
	}
}

func TestHandleBinaryBatchFrame(t *testing.T) {
	h, writer := newTestHandler(t)

	frame, err := util.EncodeBatch(&types.Batch{
		Database: "db1",
		Sync:     true,
		Messages: []types.Message{
			{Topic: "orders", Key: "a", Payload: []byte("m1")},
			{Topic: "orders", Key: "b", Payload: []byte("m2")},
		},
	})
	if err != nil {
		t.Fatalf("EncodeBatch failed: %v", err)
	}

	if resp := h.HandleFrame(frame); resp != "OK" {
		t.Fatalf("batch frame: got %q", resp)
	}

	count, _ := writer.ShardState("db1", 0)
	if count != 2 {
		t.Fatalf("expected 2 stored messages, got %d", count)
	}
}

func TestHandleAsyncSubmitAccepted(t *testing.T) {
	h, _ := newTestHandler(t)
	resp := h.HandleCommand("SUBMIT database=db1 sync=false message=later")
	if resp != "ACCEPTED" {
		t.Fatalf("async SUBMIT: got %q", resp)
	}
}

func TestHandleStats(t *testing.T) {
	h, _ := newTestHandler(t)

	if resp := h.HandleCommand("SUBMIT database=db1 sync=true topic=t message=x"); resp != "OK" {
		t.Fatalf("SUBMIT: got %q", resp)
	}
	resp := h.HandleCommand("STATS database=db1 shard=0")
	if !strings.HasPrefix(resp, "messages=1 ") {
		t.Fatalf("STATS: got %q", resp)
	}
}

func TestHandleStatsInvalidShard(t *testing.T) {
	h, _ := newTestHandler(t)

	for _, cmd := range []string{
		"STATS database=db1 shard=abc",
		"STATS database=db1 shard=-1",
	} {
		if resp := h.HandleCommand(cmd); resp != "ERROR: invalid shard ID" {
			t.Errorf("%q: got %q", cmd, resp)
		}
	}
}

func TestHandleUnknownCommand(t *testing.T) {
	h, _ := newTestHandler(t)
	if resp := h.HandleCommand("NONSENSE"); resp != "ERROR: unknown command" {
		t.Fatalf("unknown command: got %q", resp)
	}
}
