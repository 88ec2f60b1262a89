package egress

import (
	"errors"
	"fmt"
)

// RecoverableError is a transient storage failure. The owning shard
// actor retries the identical batch after a cooldown; the error never
// reaches a synchronous caller while retries continue.
type RecoverableError struct {
	Reason string
}

func (e *RecoverableError) Error() string {
	return "recoverable: " + e.Reason
}

// UnrecoverableError is terminal for the batch. It propagates to every
// synchronous caller whose messages were in the dropped batch.
type UnrecoverableError struct {
	Reason string
}

func (e *UnrecoverableError) Error() string {
	return "unrecoverable: " + e.Reason
}

func Recoverable(format string, v ...interface{}) error {
	return &RecoverableError{Reason: fmt.Sprintf(format, v...)}
}

func Unrecoverable(format string, v ...interface{}) error {
	return &UnrecoverableError{Reason: fmt.Sprintf(format, v...)}
}

// ErrAtomicCrossShard rejects an atomic request whose messages route to
// more than one shard. Surfaced before anything is enqueued.
var ErrAtomicCrossShard = Unrecoverable("atomic commit across multiple shards is impossible")

func IsRecoverable(err error) bool {
	var re *RecoverableError
	return errors.As(err, &re)
}

func IsUnrecoverable(err error) bool {
	var ue *UnrecoverableError
	return errors.As(err, &ue)
}
