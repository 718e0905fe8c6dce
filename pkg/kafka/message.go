package kafka

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Message is an event envelope. Key is the partition key (the swap request
// or slot id, so events for one entity stay ordered).
type Message struct {
	Key       string
	Value     []byte
	Headers   map[string]string
	Timestamp time.Time
}

const (
	HeaderEventID       = "event-id"
	HeaderEventType     = "event-type"
	HeaderSchemaVersion = "schema-version"
	HeaderSource        = "source"
	HeaderTimestamp     = "timestamp"
)

type MessageBuilder struct {
	msg Message
	err error
}

func NewMessage() *MessageBuilder {
	return &MessageBuilder{
		msg: Message{
			Headers:   make(map[string]string),
			Timestamp: time.Now().UTC(),
		},
	}
}

func (mb *MessageBuilder) WithKey(key string) *MessageBuilder {
	mb.msg.Key = key
	return mb
}

// WithValue JSON-encodes the payload. An encoding failure is surfaced by
// Build.
func (mb *MessageBuilder) WithValue(value any) *MessageBuilder {
	data, err := json.Marshal(value)
	if err != nil {
		mb.err = err
		return mb
	}
	mb.msg.Value = data
	return mb
}

func (mb *MessageBuilder) WithEventType(eventType string) *MessageBuilder {
	mb.msg.Headers[HeaderEventType] = eventType
	return mb
}

func (mb *MessageBuilder) WithSource(source string) *MessageBuilder {
	mb.msg.Headers[HeaderSource] = source
	return mb
}

func (mb *MessageBuilder) WithSchemaVersion(version string) *MessageBuilder {
	mb.msg.Headers[HeaderSchemaVersion] = version
	return mb
}

func (mb *MessageBuilder) Build() (Message, error) {
	if mb.err != nil {
		return Message{}, mb.err
	}

	if mb.msg.Headers[HeaderEventID] == "" {
		mb.msg.Headers[HeaderEventID] = uuid.New().String()
	}
	if mb.msg.Headers[HeaderTimestamp] == "" {
		mb.msg.Headers[HeaderTimestamp] = mb.msg.Timestamp.Format(time.RFC3339)
	}

	return mb.msg, nil
}
