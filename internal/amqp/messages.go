package amqp

import (
	"encoding/json"
	"errors"
	"time"
)

// ProfileSyncMessage tells the worker that a profile changed. It carries no
// profile data; the worker loads the current document from the store.
type ProfileSyncMessage struct {
	Profile   string    `json:"profile"`
	Revision  uint64    `json:"revision"`
	Timestamp time.Time `json:"timestamp"`
}

func NewProfileSyncMessage(profile string, revision uint64) *ProfileSyncMessage {
	return &ProfileSyncMessage{
		Profile:   profile,
		Revision:  revision,
		Timestamp: time.Now(),
	}
}

func (m *ProfileSyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ProfileSyncMessageFromJSON decodes a message and rejects one without a
// profile name.
func ProfileSyncMessageFromJSON(data []byte) (*ProfileSyncMessage, error) {
	var msg ProfileSyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Profile == "" {
		return nil, errors.New("sync message without profile")
	}
	return &msg, nil
}
