package raftstore

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/downfa11-org/go-relay/pkg/egress"
	"github.com/downfa11-org/go-relay/pkg/types"
	"github.com/hashicorp/raft"
)

type recordingWriter struct {
	calls [][]types.Message
	err   error
}

func (w *recordingWriter) WriteBatch(database string, shard int, msgs []types.Message) error {
	w.calls = append(w.calls, msgs)
	return w.err
}

type fakeApplyFuture struct {
	err      error
	response interface{}
}

func (f *fakeApplyFuture) Error() error          { return f.err }
func (f *fakeApplyFuture) Response() interface{} { return f.response }
func (f *fakeApplyFuture) Index() uint64         { return 1 }

type fakeRaft struct {
	state   raft.RaftState
	applied [][]byte
	future  *fakeApplyFuture
}

func (r *fakeRaft) Apply(data []byte, timeout time.Duration) raft.ApplyFuture {
	r.applied = append(r.applied, data)
	return r.future
}

func (r *fakeRaft) State() raft.RaftState     { return r.state }
func (r *fakeRaft) Leader() raft.ServerAddress { return "127.0.0.1:9200" }
func (r *fakeRaft) Shutdown() raft.Future      { return &fakeApplyFuture{} }

func testStore(r RaftInterface, local types.StorageWriter) *Store {
	return &Store{raft: r, fsm: NewRelayFSM(local), timeout: time.Second}
}

func TestWriteBatchNotLeaderIsRecoverable(t *testing.T) {
	s := testStore(&fakeRaft{state: raft.Follower, future: &fakeApplyFuture{}}, &recordingWriter{})

	err := s.WriteBatch("db1", 0, []types.Message{{Topic: "t", Payload: []byte("x")}})
	if !egress.IsRecoverable(err) {
		t.Fatalf("expected recoverable not-leader error, got %v", err)
	}
}

func TestWriteBatchAppliesCommand(t *testing.T) {
	r := &fakeRaft{state: raft.Leader, future: &fakeApplyFuture{}}
	s := testStore(r, &recordingWriter{})

	msgs := []types.Message{{Topic: "t", Key: "k", Payload: []byte("x")}}
	if err := s.WriteBatch("db1", 3, msgs); err != nil {
		t.Fatalf("WriteBatch failed: %v", err)
	}

	if len(r.applied) != 1 {
		t.Fatalf("expected 1 apply, got %d", len(r.applied))
	}
	var cmd batchCommand
	if err := json.Unmarshal(r.applied[0], &cmd); err != nil {
		t.Fatalf("applied entry not decodable: %v", err)
	}
	if cmd.Database != "db1" || cmd.Shard != 3 || len(cmd.Messages) != 1 {
		t.Fatalf("unexpected command: %+v", cmd)
	}
}

func TestWriteBatchPropagatesFSMRejection(t *testing.T) {
	rejection := egress.Unrecoverable("record exceeds segment size")
	r := &fakeRaft{state: raft.Leader, future: &fakeApplyFuture{response: rejection}}
	s := testStore(r, &recordingWriter{})

	err := s.WriteBatch("db1", 0, []types.Message{{Topic: "t", Payload: []byte("x")}})
	if !egress.IsUnrecoverable(err) {
		t.Fatalf("expected unrecoverable FSM rejection, got %v", err)
	}
}

func TestFSMApply(t *testing.T) {
	local := &recordingWriter{}
	fsm := NewRelayFSM(local)

	data, _ := json.Marshal(batchCommand{
		Database: "db1",
		Shard:    2,
		Messages: []types.Message{{Topic: "t", Payload: []byte("x")}},
	})

	resp := fsm.Apply(&raft.Log{Index: 7, Data: data})
	if resp != nil {
		t.Fatalf("expected nil apply response, got %v", resp)
	}
	if len(local.calls) != 1 {
		t.Fatalf("expected 1 local write, got %d", len(local.calls))
	}
	if fsm.AppliedIndex() != 7 {
		t.Fatalf("expected applied index 7, got %d", fsm.AppliedIndex())
	}
}

func TestFSMApplyMalformedEntry(t *testing.T) {
	fsm := NewRelayFSM(&recordingWriter{})

	resp := fsm.Apply(&raft.Log{Index: 1, Data: []byte("not json")})
	err, ok := resp.(error)
	if !ok || !egress.IsUnrecoverable(err) {
		t.Fatalf("expected unrecoverable response, got %v", resp)
	}
}

func TestParseStaticMembers(t *testing.T) {
	servers, err := ParseStaticMembers([]string{"node1@10.0.0.1:9200", "10.0.0.2:9200", " "})
	if err != nil {
		t.Fatalf("ParseStaticMembers failed: %v", err)
	}
	if len(servers) != 2 {
		t.Fatalf("expected 2 servers, got %d", len(servers))
	}
	if servers[0].ID != "node1" || servers[1].ID != "10.0.0.2" {
		t.Fatalf("unexpected server IDs: %+v", servers)
	}

	if _, err := ParseStaticMembers(nil); err == nil {
		t.Fatal("expected error for empty member list")
	}
}
