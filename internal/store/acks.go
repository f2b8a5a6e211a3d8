package store

import (
	"github.com/xcawolfe-amzn/teamchat/internal/lock"
)

// AckEntry is one acknowledgement, keyed by message id in the ack index.
type AckEntry struct {
	AckedAt    string `json:"acked_at"`
	Agent      string `json:"agent"`
	DeliveryID string `json:"delivery_id,omitempty"`
	MessageID  string `json:"message_id"`
}

// RecordAck inserts an acknowledgement for messageID. Returns true on first
// insert; a second insert for the same id is a no-op returning false.
func (s *Store) RecordAck(messageID, agent, ackedAt, deliveryID string) (bool, error) {
	release, err := s.locks.Acquire(lock.Acks)
	if err != nil {
		return false, err
	}
	defer release()

	if _, found, err := readIndexEntry[AckEntry](s.stateDir(), indexAcks, messageID); err != nil {
		return false, err
	} else if found {
		return false, nil
	}

	entry := AckEntry{
		AckedAt:    ackedAt,
		Agent:      agent,
		DeliveryID: deliveryID,
		MessageID:  messageID,
	}
	if err := writeIndexEntry(s.stateDir(), indexAcks, messageID, entry); err != nil {
		return false, err
	}
	return true, nil
}

// GetAck returns the acknowledgement for messageID, if any. Reads are not
// serialized; the ack waiter polls this.
func (s *Store) GetAck(messageID string) (*AckEntry, bool, error) {
	entry, found, err := readIndexEntry[AckEntry](s.stateDir(), indexAcks, messageID)
	if err != nil {
		return nil, false, err
	}
	if !found {
		return nil, false, nil
	}
	return &entry, true, nil
}

// AckedSet returns the full ack index, both layouts merged.
func (s *Store) AckedSet() (map[string]AckEntry, error) {
	return loadIndex[AckEntry](s.stateDir(), indexAcks)
}
