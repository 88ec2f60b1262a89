package raftstore

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/downfa11-org/go-relay/pkg/config"
	"github.com/downfa11-org/go-relay/pkg/egress"
	"github.com/downfa11-org/go-relay/pkg/types"
	"github.com/downfa11-org/go-relay/util"
	"github.com/hashicorp/raft"
)

// RaftInterface is the slice of raft.Raft the store depends on.
type RaftInterface interface {
	Apply([]byte, time.Duration) raft.ApplyFuture
	State() raft.RaftState
	Leader() raft.ServerAddress
	Shutdown() raft.Future
}

// Store replicates every batch through raft before acknowledging it.
// Implements types.StorageWriter.
type Store struct {
	raft    RaftInterface
	fsm     *RelayFSM
	timeout time.Duration
}

// NewStore builds the raft node and wires the FSM over the local store.
func NewStore(cfg *config.Config, local types.StorageWriter) (*Store, error) {
	fsm := NewRelayFSM(local)

	localAddr := fmt.Sprintf("%s:%d", cfg.AdvertisedHost, cfg.RaftPort)
	raftCfg := raft.DefaultConfig()
	raftCfg.LocalID = raft.ServerID(cfg.NodeID)
	raftCfg.HeartbeatTimeout = 500 * time.Millisecond
	raftCfg.ElectionTimeout = 1500 * time.Millisecond
	raftCfg.CommitTimeout = 100 * time.Millisecond

	dataDir := filepath.Join(cfg.DataDir, "raft")
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create raft data directory: %w", err)
	}

	logStore := raft.NewInmemStore()
	stableStore := raft.NewInmemStore()

	snapshots, err := raft.NewFileSnapshotStore(dataDir, 3, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("failed to create snapshot store: %w", err)
	}

	advertiseAddr, err := net.ResolveTCPAddr("tcp", localAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve advertised address %s: %w", localAddr, err)
	}

	bindAddr := fmt.Sprintf("0.0.0.0:%d", cfg.RaftPort)
	transport, err := raft.NewTCPTransport(bindAddr, advertiseAddr, 3, 10*time.Second, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("failed to create raft transport: %w", err)
	}

	r, err := raft.NewRaft(raftCfg, fsm, logStore, stableStore, snapshots, transport)
	if err != nil {
		return nil, fmt.Errorf("failed to create raft: %w", err)
	}

	if cfg.BootstrapCluster {
		servers, err := ParseStaticMembers(cfg.StaticClusterMembers)
		if err != nil {
			return nil, err
		}
		future := r.BootstrapCluster(raft.Configuration{Servers: servers})
		if err := future.Error(); err != nil && err != raft.ErrCantBootstrap {
			return nil, fmt.Errorf("failed to bootstrap cluster: %w", err)
		}
		util.Info("🚀 raft cluster bootstrap requested with %d members", len(servers))
	}

	return &Store{
		raft:    r,
		fsm:     fsm,
		timeout: 10 * time.Second,
	}, nil
}

// ParseStaticMembers parses "id@host:port" (or bare "host:port") member
// entries into a raft server list.
func ParseStaticMembers(members []string) ([]raft.Server, error) {
	var servers []raft.Server
	for _, member := range members {
		member = strings.TrimSpace(member)
		if member == "" {
			continue
		}

		var memberID, memberAddr string
		if strings.Contains(member, "@") {
			parts := strings.SplitN(member, "@", 2)
			memberID = parts[0]
			memberAddr = parts[1]
		} else {
			memberAddr = member
			memberID = strings.Split(memberAddr, ":")[0]
		}
		if memberID == "" || memberAddr == "" {
			return nil, fmt.Errorf("invalid cluster member %q", member)
		}

		servers = append(servers, raft.Server{
			ID:       raft.ServerID(memberID),
			Address:  raft.ServerAddress(memberAddr),
			Suffrage: raft.Voter,
		})
	}

	if len(servers) == 0 {
		return nil, fmt.Errorf("static cluster members are required for bootstrap")
	}
	return servers, nil
}

// WriteBatch replicates the batch. Not being leader or losing the apply
// is transient; the shard actor retries after its cooldown. A rejection
// from the FSM passes through with its own classification.
func (s *Store) WriteBatch(database string, shard int, msgs []types.Message) error {
	if s.raft.State() != raft.Leader {
		return egress.Recoverable("not the raft leader (leader: %s)", s.raft.Leader())
	}

	data, err := json.Marshal(batchCommand{
		Database: database,
		Shard:    shard,
		Messages: msgs,
	})
	if err != nil {
		return egress.Unrecoverable("encode replication entry: %v", err)
	}

	future := s.raft.Apply(data, s.timeout)
	if err := future.Error(); err != nil {
		return egress.Recoverable("raft apply: %v", err)
	}

	if resp := future.Response(); resp != nil {
		if applyErr, ok := resp.(error); ok {
			return applyErr
		}
	}
	return nil
}

// IsLeader reports whether this node currently leads the cluster.
func (s *Store) IsLeader() bool {
	return s.raft.State() == raft.Leader
}

// AppliedIndex exposes replication progress for monitoring.
func (s *Store) AppliedIndex() uint64 {
	return s.fsm.AppliedIndex()
}

func (s *Store) Close() error {
	return s.raft.Shutdown().Error()
}
