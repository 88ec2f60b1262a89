package types

// StorageWriter is the single write primitive the egress layer requires
// from the durable storage backend. A nil return means the batch is
// durable. Transient and terminal failures are distinguished with the
// egress error types (see pkg/egress).
type StorageWriter interface {
	WriteBatch(database string, shard int, msgs []Message) error
}

// ShardStater is optionally implemented by storage backends that can
// report per-shard state for the STATS command.
type ShardStater interface {
	ShardState(database string, shard int) (messages uint64, bytes uint64)
}
