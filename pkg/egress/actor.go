package egress

import (
	"sync"
	"time"

	"github.com/downfa11-org/go-relay/pkg/config"
	"github.com/downfa11-org/go-relay/pkg/types"
	"github.com/downfa11-org/go-relay/util"
)

type shardKey struct {
	database string
	shard    int
}

type enqueueRequest struct {
	msgs   []types.Message
	sync   bool
	count  int
	bytes  int
	respCh chan error
}

// Actor is the per-shard execution unit. One goroutine owns the buffer,
// the flush timer and the dispatcher; enqueue and flush on the same
// shard are serialized by construction.
type Actor struct {
	key  shardKey
	disp *dispatcher

	maxCount int
	maxBytes int // 0 = unbounded
	interval time.Duration

	reqCh chan *enqueueRequest
	done  chan struct{}

	closeOnce sync.Once
	stopped   sync.WaitGroup

	// owned exclusively by the run goroutine
	buf     []types.Message
	count   int
	bytes   int
	waiters []chan error
	timer   *time.Timer
}

func newActor(database string, shard int, cfg *config.Config, writer types.StorageWriter, discard DiscardHook) *Actor {
	a := &Actor{
		key: shardKey{database: database, shard: shard},
		disp: newDispatcher(writer,
			time.Duration(cfg.CooldownMinMS)*time.Millisecond,
			time.Duration(cfg.CooldownMaxMS)*time.Millisecond,
			discard),
		maxCount: cfg.MaxBatchCount,
		maxBytes: cfg.MaxBatchBytes,
		interval: time.Duration(cfg.FlushIntervalMS) * time.Millisecond,
		reqCh:    make(chan *enqueueRequest),
		done:     make(chan struct{}),
	}

	a.stopped.Add(1)
	go a.run()
	return a
}

// Enqueue submits messages to this shard's buffer. Synchronous callers
// block until their batch's flush resolves; asynchronous callers are
// acknowledged as soon as the batch is accepted.
func (a *Actor) Enqueue(msgs []types.Message, syncMode bool, count, bytes int) error {
	req := &enqueueRequest{
		msgs:   msgs,
		sync:   syncMode,
		count:  count,
		bytes:  bytes,
		respCh: make(chan error, 1),
	}

	// reqCh is unbuffered: a successful send means the run goroutine has
	// taken ownership and will always reply, even during shutdown.
	select {
	case a.reqCh <- req:
	case <-a.done:
		return Unrecoverable("shard actor %s/%d shut down", a.key.database, a.key.shard)
	}

	return <-req.respCh
}

func (a *Actor) run() {
	defer a.stopped.Done()

	a.timer = time.NewTimer(a.interval)
	defer a.timer.Stop()

	for {
		select {
		case req := <-a.reqCh:
			a.handleEnqueue(req)
		case <-a.timer.C:
			a.flush()
			a.timer.Reset(a.interval)
		case <-a.done:
			a.abort()
			return
		}
	}
}

func (a *Actor) handleEnqueue(req *enqueueRequest) {
	// Evict existing content first if the incoming batch would push the
	// buffer past a threshold. No batch is ever rejected for being too
	// large relative to what is already buffered.
	if a.count > 0 && a.wouldExceed(req.count, req.bytes) {
		a.flush()
		a.rearmTimer()
	}

	a.buf = append(a.buf, req.msgs...)
	a.count += req.count
	a.bytes += req.bytes

	if req.sync {
		a.waiters = append(a.waiters, req.respCh)
	} else {
		req.respCh <- nil // accepted; durability is not revisited
	}

	if a.atThreshold() {
		a.flush()
		a.rearmTimer()
	}
}

func (a *Actor) wouldExceed(count, bytes int) bool {
	if a.count+count > a.maxCount {
		return true
	}
	return a.maxBytes > 0 && a.bytes+bytes > a.maxBytes
}

func (a *Actor) atThreshold() bool {
	if a.count >= a.maxCount {
		return true
	}
	return a.maxBytes > 0 && a.bytes >= a.maxBytes
}

// flush hands the buffered batch to the dispatcher and blocks until the
// outcome is terminal. An empty buffer is a no-op.
func (a *Actor) flush() {
	if a.count == 0 {
		return
	}

	a.disp.dispatch(a.key.database, a.key.shard, a.buf, a.waiters, a.done)

	a.buf = nil
	a.count = 0
	a.bytes = 0
	a.waiters = nil
}

// rearmTimer resets the single flush timer after an out-of-band flush so
// at most one live timer exists.
func (a *Actor) rearmTimer() {
	if !a.timer.Stop() {
		select {
		case <-a.timer.C:
		default:
		}
	}
	a.timer.Reset(a.interval)
}

// abort fails everything still pending at shutdown: queued requests,
// registered waiters and buffered messages. Callers never hang on a
// dead actor.
func (a *Actor) abort() {
	term := Unrecoverable("shard actor %s/%d shut down", a.key.database, a.key.shard)

	for {
		select {
		case req := <-a.reqCh:
			req.respCh <- term
		default:
			if a.count > 0 {
				util.Warn("⚠️ shard actor %s/%d shut down with %d buffered messages",
					a.key.database, a.key.shard, a.count)
				releaseWaiters(a.waiters, term)
				if a.disp.discard != nil {
					a.disp.discard(a.key.database, a.key.shard, a.buf, term)
				}
			}
			return
		}
	}
}

// Close stops the actor and waits for the run goroutine to exit.
func (a *Actor) Close() {
	a.closeOnce.Do(func() {
		close(a.done)
	})
	a.stopped.Wait()
}
