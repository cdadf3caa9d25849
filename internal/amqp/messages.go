package amqp

import (
	"encoding/json"
	"time"
)

// Event kinds carried on the entry queue.
const (
	KindSync   = "sync"
	KindDelete = "delete"
)

// EntryEventMessage is the lightweight queue payload for the timesheet
// mirror. It carries only the entry id and version; the worker fetches the
// full row from the database, so a stale message after an edit simply syncs
// the newer version.
type EntryEventMessage struct {
	Kind      string    `json:"kind"`
	ID        int64     `json:"id"`
	Version   int64     `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

// NewSyncMessage queues an insert or update of an entry.
func NewSyncMessage(id, version int64) *EntryEventMessage {
	return &EntryEventMessage{
		Kind:      KindSync,
		ID:        id,
		Version:   version,
		Timestamp: time.Now(),
	}
}

// NewDeleteMessage queues the removal of an entry's mirrored row.
func NewDeleteMessage(id int64) *EntryEventMessage {
	return &EntryEventMessage{
		Kind:      KindDelete,
		ID:        id,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes.
func (m *EntryEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// EntryEventMessageFromJSON parses a queue payload.
func EntryEventMessageFromJSON(data []byte) (*EntryEventMessage, error) {
	var msg EntryEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
