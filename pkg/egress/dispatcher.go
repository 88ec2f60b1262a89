package egress

import (
	"math/rand"
	"time"

	"github.com/downfa11-org/go-relay/pkg/metrics"
	"github.com/downfa11-org/go-relay/pkg/types"
	"github.com/downfa11-org/go-relay/util"
)

// DiscardHook observes batches dropped on unrecoverable failure or
// actor shutdown. Intended for auditing; nil disables it.
type DiscardHook func(database string, shard int, msgs []types.Message, reason error)

// dispatcher drives the storage write for one shard actor: invoke the
// write primitive, interpret the three-way outcome, retry with cooldown
// on recoverable failures.
type dispatcher struct {
	writer      types.StorageWriter
	cooldownMin time.Duration
	cooldownMax time.Duration
	rng         *rand.Rand
	discard     DiscardHook
}

func newDispatcher(writer types.StorageWriter, cooldownMin, cooldownMax time.Duration, discard DiscardHook) *dispatcher {
	if cooldownMax < cooldownMin {
		cooldownMax = cooldownMin
	}
	return &dispatcher{
		writer:      writer,
		cooldownMin: cooldownMin,
		cooldownMax: cooldownMax,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
		discard:     discard,
	}
}

// dispatch writes the batch, blocking through recoverable failures until
// the outcome is terminal or stop closes. Waiters are released exactly
// once, all with the same outcome.
func (d *dispatcher) dispatch(database string, shard int, batch []types.Message, waiters []chan error, stop <-chan struct{}) {
	bytes := types.BatchSize(batch)

	for attempt := 1; ; attempt++ {
		start := time.Now()
		err := d.writer.WriteBatch(database, shard, batch)
		elapsed := time.Since(start)

		if err == nil {
			metrics.ObserveFlushSuccess(database, shard, len(batch), bytes, elapsed.Seconds())
			releaseWaiters(waiters, nil)
			util.Debug("flushed %d messages (%d bytes) for %s/%d in %v",
				len(batch), bytes, database, shard, elapsed)
			return
		}

		if IsUnrecoverable(err) {
			metrics.ObserveFlushFailure(database, shard)
			util.Error("dropping batch of %d messages for %s/%d: %v", len(batch), database, shard, err)
			releaseWaiters(waiters, err)
			if d.discard != nil {
				d.discard(database, shard, batch, err)
			}
			return
		}

		// Recoverable, or unclassified: keep the batch and retry. An
		// unclassified error is treated as transient so data is never
		// silently dropped.
		metrics.ObserveFlushRetry(database, shard)
		delay := d.cooldown()
		util.Warn("write attempt %d for %s/%d failed, retrying in %v: %v",
			attempt, database, shard, delay, err)

		select {
		case <-time.After(delay):
		case <-stop:
			term := Unrecoverable("shard actor %s/%d shut down", database, shard)
			releaseWaiters(waiters, term)
			if d.discard != nil {
				d.discard(database, shard, batch, term)
			}
			return
		}
	}
}

// cooldown draws a uniform random delay from [cooldownMin, cooldownMax].
func (d *dispatcher) cooldown() time.Duration {
	span := int64(d.cooldownMax - d.cooldownMin)
	if span <= 0 {
		return d.cooldownMin
	}
	return d.cooldownMin + time.Duration(d.rng.Int63n(span+1))
}

func releaseWaiters(waiters []chan error, outcome error) {
	for _, ch := range waiters {
		ch <- outcome
	}
}
