package util

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/downfa11-org/go-relay/pkg/types"
)

const (
	batchMagic = uint16(0xE55A)

	flagSync   = uint8(1 << 0)
	flagAtomic = uint8(1 << 1)
)

// EncodeBatch serializes a submit batch into a wire frame.
func EncodeBatch(batch *types.Batch) ([]byte, error) {
	var buf bytes.Buffer

	write := func(v any) error {
		if err := binary.Write(&buf, binary.BigEndian, v); err != nil {
			return fmt.Errorf("encode value failed: %w", err)
		}
		return nil
	}

	if err := write(batchMagic); err != nil {
		return nil, err
	}

	dbBytes := []byte(batch.Database)
	if len(dbBytes) > 0xFFFF {
		return nil, fmt.Errorf("database name too long: %d bytes", len(dbBytes))
	}
	if err := write(uint16(len(dbBytes))); err != nil {
		return nil, err
	}
	if _, err := buf.Write(dbBytes); err != nil {
		return nil, fmt.Errorf("write database bytes failed: %w", err)
	}

	var flags uint8
	if batch.Sync {
		flags |= flagSync
	}
	if batch.Atomic {
		flags |= flagAtomic
	}
	if err := write(flags); err != nil {
		return nil, err
	}

	if err := write(int32(len(batch.Messages))); err != nil {
		return nil, err
	}

	for _, m := range batch.Messages {
		topicBytes := []byte(m.Topic)
		if len(topicBytes) > 0xFFFF {
			return nil, fmt.Errorf("topic too long: %d bytes", len(topicBytes))
		}
		if err := write(uint16(len(topicBytes))); err != nil {
			return nil, err
		}
		if _, err := buf.Write(topicBytes); err != nil {
			return nil, err
		}

		keyBytes := []byte(m.Key)
		if len(keyBytes) > 0xFFFF {
			return nil, fmt.Errorf("key too long: %d bytes", len(keyBytes))
		}
		if err := write(uint16(len(keyBytes))); err != nil {
			return nil, err
		}
		if _, err := buf.Write(keyBytes); err != nil {
			return nil, err
		}

		if err := write(uint32(len(m.Payload))); err != nil {
			return nil, err
		}
		if _, err := buf.Write(m.Payload); err != nil {
			return nil, fmt.Errorf("write payload bytes failed: %w", err)
		}
	}

	return buf.Bytes(), nil
}

// DecodeBatch decodes a frame encoded by EncodeBatch.
func DecodeBatch(data []byte) (*types.Batch, error) {
	if len(data) < 2 {
		return nil, fmt.Errorf("data too short")
	}

	reader := bytes.NewReader(data)

	var magic uint16
	if err := binary.Read(reader, binary.BigEndian, &magic); err != nil {
		return nil, fmt.Errorf("failed to read magic number: %w", err)
	}
	if magic != batchMagic {
		return nil, fmt.Errorf("invalid magic number: %x", magic)
	}

	var dbLen uint16
	if err := binary.Read(reader, binary.BigEndian, &dbLen); err != nil {
		return nil, fmt.Errorf("failed to read database length: %w", err)
	}
	dbBytes := make([]byte, dbLen)
	if _, err := io.ReadFull(reader, dbBytes); err != nil {
		return nil, fmt.Errorf("failed to read database bytes: %w", err)
	}

	var flags uint8
	if err := binary.Read(reader, binary.BigEndian, &flags); err != nil {
		return nil, fmt.Errorf("failed to read flags: %w", err)
	}

	var msgCount int32
	if err := binary.Read(reader, binary.BigEndian, &msgCount); err != nil {
		return nil, fmt.Errorf("failed to read message count: %w", err)
	}
	// Every message carries at least 8 bytes of length headers, so a
	// count beyond the remaining frame bytes cannot be honest.
	if msgCount < 0 || int(msgCount) > reader.Len() {
		return nil, fmt.Errorf("invalid message count: %d", msgCount)
	}

	batch := &types.Batch{
		Database: string(dbBytes),
		Sync:     flags&flagSync != 0,
		Atomic:   flags&flagAtomic != 0,
		Messages: make([]types.Message, 0, msgCount),
	}

	for i := 0; i < int(msgCount); i++ {
		var m types.Message

		var topicLen uint16
		if err := binary.Read(reader, binary.BigEndian, &topicLen); err != nil {
			return nil, fmt.Errorf("failed to read message[%d] topic length: %w", i, err)
		}
		topicBytes := make([]byte, topicLen)
		if _, err := io.ReadFull(reader, topicBytes); err != nil {
			return nil, fmt.Errorf("failed to read message[%d] topic bytes: %w", i, err)
		}
		m.Topic = string(topicBytes)

		var keyLen uint16
		if err := binary.Read(reader, binary.BigEndian, &keyLen); err != nil {
			return nil, fmt.Errorf("failed to read message[%d] key length: %w", i, err)
		}
		keyBytes := make([]byte, keyLen)
		if _, err := io.ReadFull(reader, keyBytes); err != nil {
			return nil, fmt.Errorf("failed to read message[%d] key bytes: %w", i, err)
		}
		m.Key = string(keyBytes)

		var payloadLen uint32
		if err := binary.Read(reader, binary.BigEndian, &payloadLen); err != nil {
			return nil, fmt.Errorf("failed to read message[%d] payload length: %w", i, err)
		}
		if int64(payloadLen) > int64(reader.Len()) {
			return nil, fmt.Errorf("message[%d] payload length %d exceeds frame", i, payloadLen)
		}
		payloadBytes := make([]byte, payloadLen)
		if _, err := io.ReadFull(reader, payloadBytes); err != nil {
			return nil, fmt.Errorf("failed to read message[%d] payload bytes: %w", i, err)
		}
		m.Payload = payloadBytes

		batch.Messages = append(batch.Messages, m)
	}

	return batch, nil
}
