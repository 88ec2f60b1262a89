package raftstore

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/downfa11-org/go-relay/pkg/egress"
	"github.com/downfa11-org/go-relay/pkg/types"
	"github.com/downfa11-org/go-relay/util"
	"github.com/hashicorp/raft"
)

// batchCommand is the replicated log entry: one egress batch bound for
// one shard.
type batchCommand struct {
	Database string          `json:"database"`
	Shard    int             `json:"shard"`
	Messages []types.Message `json:"messages"`
}

// RelayFSM applies committed batches to the node-local store.
type RelayFSM struct {
	mu      sync.RWMutex
	local   types.StorageWriter
	applied uint64
}

func NewRelayFSM(local types.StorageWriter) *RelayFSM {
	return &RelayFSM{local: local}
}

func (f *RelayFSM) Apply(entry *raft.Log) interface{} {
	var cmd batchCommand
	if err := json.Unmarshal(entry.Data, &cmd); err != nil {
		util.Error("failed to unmarshal replication entry at index %d: %v", entry.Index, err)
		return egress.Unrecoverable("malformed replication entry: %v", err)
	}

	if err := f.local.WriteBatch(cmd.Database, cmd.Shard, cmd.Messages); err != nil {
		util.Error("local apply failed for %s/%d at index %d: %v", cmd.Database, cmd.Shard, entry.Index, err)
		return err
	}

	f.mu.Lock()
	f.applied = entry.Index
	f.mu.Unlock()

	util.Debug("applied batch of %d messages for %s/%d at index %d",
		len(cmd.Messages), cmd.Database, cmd.Shard, entry.Index)
	return nil
}

// AppliedIndex returns the last applied raft log index.
func (f *RelayFSM) AppliedIndex() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.applied
}

func (f *RelayFSM) Snapshot() (raft.FSMSnapshot, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return &fsmSnapshot{applied: f.applied}, nil
}

func (f *RelayFSM) Restore(rc io.ReadCloser) error {
	defer func() {
		if err := rc.Close(); err != nil {
			util.Error("failed to close snapshot reader: %v", err)
		}
	}()

	var state struct {
		Applied uint64 `json:"applied"`
	}
	if err := json.NewDecoder(rc).Decode(&state); err != nil {
		return fmt.Errorf("decode snapshot: %w", err)
	}

	f.mu.Lock()
	f.applied = state.Applied
	f.mu.Unlock()
	return nil
}

type fsmSnapshot struct {
	applied uint64
}

func (s *fsmSnapshot) Persist(sink raft.SnapshotSink) error {
	state := struct {
		Applied uint64 `json:"applied"`
	}{Applied: s.applied}

	if err := json.NewEncoder(sink).Encode(state); err != nil {
		if cerr := sink.Cancel(); cerr != nil {
			util.Error("failed to cancel snapshot sink: %v", cerr)
		}
		return err
	}
	return sink.Close()
}

func (s *fsmSnapshot) Release() {}
