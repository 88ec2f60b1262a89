package disk

import (
	"fmt"
	"sync"

	"github.com/downfa11-org/go-relay/pkg/config"
	"github.com/downfa11-org/go-relay/pkg/egress"
	"github.com/downfa11-org/go-relay/pkg/types"
	"github.com/downfa11-org/go-relay/util"
)

// Store is the default single-node storage backend: one append-only
// segment log per (database, shard), opened lazily.
type Store struct {
	cfg *config.Config

	mu     sync.Mutex
	shards map[string]*shardLog
	closed bool
}

func NewStore(cfg *config.Config) *Store {
	return &Store{
		cfg:    cfg,
		shards: make(map[string]*shardLog),
	}
}

// WriteBatch appends the batch to the shard's segment log and syncs it.
// I/O errors are recoverable; a record larger than a whole segment can
// never be written and is unrecoverable.
func (s *Store) WriteBatch(database string, shard int, msgs []types.Message) error {
	log, err := s.shardLog(database, shard)
	if err != nil {
		return egress.Recoverable("open shard log %s/%d: %v", database, shard, err)
	}

	if err := log.append(msgs); err != nil {
		switch err {
		case errRecordTooLarge:
			return egress.Unrecoverable("record exceeds segment size for %s/%d", database, shard)
		case errFieldTooLong:
			return egress.Unrecoverable("topic or key too long for %s/%d", database, shard)
		}
		return egress.Recoverable("append to %s/%d: %v", database, shard, err)
	}
	return nil
}

// ShardState reports the number of messages and payload bytes appended.
func (s *Store) ShardState(database string, shard int) (uint64, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if log, ok := s.shards[shardKey(database, shard)]; ok {
		return log.state()
	}
	return 0, 0
}

func (s *Store) shardLog(database string, shard int) (*shardLog, error) {
	key := shardKey(database, shard)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, fmt.Errorf("store closed")
	}
	if log, ok := s.shards[key]; ok {
		return log, nil
	}

	log, err := openShardLog(s.cfg.DataDir, database, shard, s.cfg.SegmentSize)
	if err != nil {
		return nil, err
	}
	s.shards[key] = log
	util.Debug("opened shard log %s", key)
	return log, nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	var firstErr error
	for key, log := range s.shards {
		if err := log.close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close shard log %s: %w", key, err)
		}
	}
	return firstErr
}

func shardKey(database string, shard int) string {
	return fmt.Sprintf("%s/shard_%d", database, shard)
}
