package disk

import (
	"encoding/binary"
	"fmt"

	"github.com/downfa11-org/go-relay/pkg/types"
	"golang.org/x/exp/mmap"
)

// ReadSegment decodes every record in one segment file. Used for
// read-back verification and offline inspection.
func ReadSegment(path string) ([]types.Message, error) {
	reader, err := mmap.Open(path)
	if err != nil {
		return nil, fmt.Errorf("mmap open failed: %w", err)
	}
	defer reader.Close()

	var messages []types.Message
	pos := 0
	for pos+4 <= reader.Len() {
		lenBytes := make([]byte, 4)
		if _, err := reader.ReadAt(lenBytes, int64(pos)); err != nil {
			return messages, fmt.Errorf("read record length at %d: %w", pos, err)
		}
		recordLen := int(binary.BigEndian.Uint32(lenBytes))
		pos += 4

		if pos+recordLen > reader.Len() {
			break // partial trailing record
		}

		data := make([]byte, recordLen)
		if _, err := reader.ReadAt(data, int64(pos)); err != nil {
			return messages, fmt.Errorf("read record at %d: %w", pos, err)
		}
		pos += recordLen

		msg, err := decodeRecord(data)
		if err != nil {
			return messages, fmt.Errorf("decode record at %d: %w", pos-recordLen, err)
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

func decodeRecord(data []byte) (types.Message, error) {
	var m types.Message
	if len(data) < 4 {
		return m, fmt.Errorf("record too short: %d bytes", len(data))
	}

	topicLen := int(binary.BigEndian.Uint16(data[:2]))
	pos := 2
	if pos+topicLen+2 > len(data) {
		return m, fmt.Errorf("invalid topic length %d", topicLen)
	}
	m.Topic = string(data[pos : pos+topicLen])
	pos += topicLen

	keyLen := int(binary.BigEndian.Uint16(data[pos : pos+2]))
	pos += 2
	if pos+keyLen > len(data) {
		return m, fmt.Errorf("invalid key length %d", keyLen)
	}
	m.Key = string(data[pos : pos+keyLen])
	pos += keyLen

	m.Payload = append([]byte(nil), data[pos:]...)
	return m, nil
}

// SegmentPath exposes the on-disk path of a shard's segment file.
func (s *Store) SegmentPath(database string, shard, segment int) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if log, ok := s.shards[shardKey(database, shard)]; ok {
		return log.segmentPath(segment)
	}
	return ""
}
