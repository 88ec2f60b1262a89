package disk

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/downfa11-org/go-relay/pkg/types"
	"github.com/downfa11-org/go-relay/util"
)

var (
	errRecordTooLarge = errors.New("record exceeds segment size")
	errFieldTooLong   = errors.New("topic or key exceeds record header limit")
)

// shardLog is one shard's append-only segment chain. Records are
// length-prefixed: u32 total, u16 topic, topic, u16 key, key, payload.
type shardLog struct {
	baseName    string
	segmentSize int

	mu             sync.Mutex
	currentSegment int
	currentOffset  int
	file           *os.File
	writer         *bufio.Writer

	messages uint64
	bytes    uint64
}

func openShardLog(dataDir, database string, shard int, segmentSize int) (*shardLog, error) {
	base := filepath.Join(dataDir, database, fmt.Sprintf("shard_%d", shard))
	if err := os.MkdirAll(filepath.Dir(base), 0o755); err != nil {
		return nil, err
	}

	l := &shardLog{
		baseName:    base,
		segmentSize: segmentSize,
	}
	if err := l.openSegment(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *shardLog) segmentPath(segment int) string {
	return fmt.Sprintf("%s_segment_%d.log", l.baseName, segment)
}

func (l *shardLog) openSegment() error {
	path := l.segmentPath(l.currentSegment)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0o644)
	if err != nil {
		return err
	}

	info, err := file.Stat()
	if err != nil {
		if cerr := file.Close(); cerr != nil {
			util.Error("failed to close segment after stat error: %v", cerr)
		}
		return err
	}

	l.file = file
	l.writer = bufio.NewWriter(file)
	l.currentOffset = int(info.Size())
	return nil
}

func (l *shardLog) rotateSegment() error {
	if l.writer != nil {
		if err := l.writer.Flush(); err != nil {
			util.Error("flush failed during segment rotation: %v", err)
		}
	}
	if l.file != nil {
		if err := l.file.Close(); err != nil {
			util.Error("close failed during segment rotation: %v", err)
		}
	}
	l.currentSegment++
	l.currentOffset = 0
	return l.openSegment()
}

// append writes the batch and syncs the file. The batch is atomic with
// respect to this log: either every record lands or the error aborts
// before the sync.
func (l *shardLog) append(msgs []types.Message) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	// Validate the whole batch before buffering any bytes so a rejection
	// never leaves partial records behind.
	for _, m := range msgs {
		// Topic and key lengths are stored as u16; anything longer
		// would truncate modulo 65536 and corrupt the framing.
		if len(m.Topic) > 0xFFFF || len(m.Key) > 0xFFFF {
			return errFieldTooLong
		}
		if 4+2+len(m.Topic)+2+len(m.Key)+len(m.Payload) > l.segmentSize {
			return errRecordTooLarge
		}
	}

	var lenBuf [4]byte
	var hdrBuf [2]byte

	for _, m := range msgs {
		recordLen := 2 + len(m.Topic) + 2 + len(m.Key) + len(m.Payload)
		totalLen := 4 + recordLen

		if l.currentOffset+totalLen > l.segmentSize {
			if err := l.rotateSegment(); err != nil {
				return fmt.Errorf("rotate segment: %w", err)
			}
		}

		binary.BigEndian.PutUint32(lenBuf[:], uint32(recordLen))
		if _, err := l.writer.Write(lenBuf[:]); err != nil {
			return fmt.Errorf("write record length: %w", err)
		}

		binary.BigEndian.PutUint16(hdrBuf[:], uint16(len(m.Topic)))
		if _, err := l.writer.Write(hdrBuf[:]); err != nil {
			return fmt.Errorf("write topic length: %w", err)
		}
		if _, err := l.writer.WriteString(m.Topic); err != nil {
			return fmt.Errorf("write topic: %w", err)
		}

		binary.BigEndian.PutUint16(hdrBuf[:], uint16(len(m.Key)))
		if _, err := l.writer.Write(hdrBuf[:]); err != nil {
			return fmt.Errorf("write key length: %w", err)
		}
		if _, err := l.writer.WriteString(m.Key); err != nil {
			return fmt.Errorf("write key: %w", err)
		}

		if _, err := l.writer.Write(m.Payload); err != nil {
			return fmt.Errorf("write payload: %w", err)
		}

		l.currentOffset += totalLen
	}

	if err := l.writer.Flush(); err != nil {
		return fmt.Errorf("flush after batch: %w", err)
	}
	if err := l.file.Sync(); err != nil {
		return fmt.Errorf("sync after batch: %w", err)
	}

	for _, m := range msgs {
		l.messages++
		l.bytes += uint64(m.Size())
	}
	return nil
}

func (l *shardLog) state() (uint64, uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.messages, l.bytes
}

func (l *shardLog) close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}
	if err := l.writer.Flush(); err != nil {
		return err
	}
	if err := l.file.Sync(); err != nil {
		return err
	}
	err := l.file.Close()
	l.file = nil
	return err
}
