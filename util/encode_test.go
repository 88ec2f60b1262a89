package util_test

import (
	"bytes"
	"testing"

	"github.com/downfa11-org/go-relay/pkg/types"
	"github.com/downfa11-org/go-relay/util"
)

func TestEncodeDecodeBatch(t *testing.T) {
	batch := &types.Batch{
		Database: "db1",
		Sync:     true,
		Atomic:   false,
		Messages: []types.Message{
			{Topic: "orders", Key: "u1", Payload: []byte("first")},
			{Topic: "orders", Key: "", Payload: []byte("second")},
			{Topic: "audit", Key: "u2", Payload: nil},
		},
	}

	data, err := util.EncodeBatch(batch)
	if err != nil {
		t.Fatalf("EncodeBatch failed: %v", err)
	}

	decoded, err := util.DecodeBatch(data)
	if err != nil {
		t.Fatalf("DecodeBatch failed: %v", err)
	}

	if decoded.Database != batch.Database || decoded.Sync != batch.Sync || decoded.Atomic != batch.Atomic {
		t.Fatalf("header mismatch: %+v", decoded)
	}
	if len(decoded.Messages) != len(batch.Messages) {
		t.Fatalf("expected %d messages, got %d", len(batch.Messages), len(decoded.Messages))
	}
	for i, m := range batch.Messages {
		got := decoded.Messages[i]
		if got.Topic != m.Topic || got.Key != m.Key || !bytes.Equal(got.Payload, m.Payload) {
			t.Errorf("message %d mismatch: got %+v, want %+v", i, got, m)
		}
	}
}

func TestDecodeBatchRejectsGarbage(t *testing.T) {
	if _, err := util.DecodeBatch([]byte("PING")); err == nil {
		t.Fatal("expected error for non-batch frame")
	}
	if _, err := util.DecodeBatch([]byte{0x01}); err == nil {
		t.Fatal("expected error for short frame")
	}
}

func TestDecodeBatchRejectsHostileLengths(t *testing.T) {
	// magic, empty database name, flags, count = -1
	negativeCount := []byte{0xE5, 0x5A, 0x00, 0x00, 0x00, 0xFF, 0xFF, 0xFF, 0xFF}
	if _, err := util.DecodeBatch(negativeCount); err == nil {
		t.Fatal("expected error for negative message count")
	}

	// count claims more messages than the frame has bytes left
	inflatedCount := []byte{0xE5, 0x5A, 0x00, 0x00, 0x00, 0x7F, 0xFF, 0xFF, 0xFF}
	if _, err := util.DecodeBatch(inflatedCount); err == nil {
		t.Fatal("expected error for inflated message count")
	}

	// one message with empty topic and key claiming a 4 GiB payload
	hugePayload := []byte{
		0xE5, 0x5A, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x01,
		0x00, 0x00, 0x00, 0x00, 0xFF, 0xFF, 0xFF, 0xFF,
	}
	if _, err := util.DecodeBatch(hugePayload); err == nil {
		t.Fatal("expected error for payload length exceeding frame")
	}
}

func TestEncodeBatchAtomicFlag(t *testing.T) {
	batch := &types.Batch{
		Database: "db1",
		Atomic:   true,
		Messages: []types.Message{{Topic: "t", Payload: []byte("x")}},
	}

	data, err := util.EncodeBatch(batch)
	if err != nil {
		t.Fatalf("EncodeBatch failed: %v", err)
	}
	decoded, err := util.DecodeBatch(data)
	if err != nil {
		t.Fatalf("DecodeBatch failed: %v", err)
	}
	if !decoded.Atomic || decoded.Sync {
		t.Fatalf("flag mismatch: %+v", decoded)
	}
}
