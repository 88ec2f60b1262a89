package types

// Message is the opaque unit handed to the egress layer.
type Message struct {
	Topic   string
	Key     string // optional: shard routing key
	Payload []byte
}

// Size returns the byte size used for batch accounting.
// Header overhead is intentionally not counted.
func (m Message) Size() int {
	return len(m.Topic) + len(m.Payload)
}

func (m Message) String() string {
	return string(m.Payload)
}

// BatchSize sums Size over all messages.
func BatchSize(msgs []Message) int {
	total := 0
	for _, m := range msgs {
		total += m.Size()
	}
	return total
}

// Batch is a caller-submitted group of messages plus its delivery options.
type Batch struct {
	Database string    `json:"database"`
	Sync     bool      `json:"sync"`
	Atomic   bool      `json:"atomic"`
	Messages []Message `json:"messages"`
}
