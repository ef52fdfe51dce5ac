package model

import (
	"bytes"
	"encoding/gob"
	"errors"
	"time"
)

var errorValueEmpty = errors.New("value is empty")

// KeyUpdateOffset is the kv key under which the session layer persists
// the last consumed update id, so a restarted session resumes behind
// the poller instead of replaying already-forwarded messages.
const KeyUpdateOffset = "session.update_offset"

// KeyValue - small persisted kv pair for session state.
// The value is gob-encoded so any serializable type fits.
type KeyValue struct {
	// Key-value fields
	Key   string `gorm:"primaryKey" hash:"x"`
	Value []byte `hash:"x" json:"value"` // Save the value as a byte array.

	// Meta fields
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"` // Time when the pair was last updated.
}

// TableName - set the table name.
func (KeyValue) TableName() string {
	return "kv"
}

// SetValue encodes the value into the pair.
func (kv *KeyValue) SetValue(value interface{}) error {
	var buffer bytes.Buffer
	if err := gob.NewEncoder(&buffer).Encode(value); err != nil {
		return err
	}
	kv.Value = buffer.Bytes()

	return nil
}

// GetValue decodes the stored value into out.
func (kv *KeyValue) GetValue(out interface{}) error {
	if len(kv.Value) == 0 {
		return errorValueEmpty
	}

	return gob.NewDecoder(bytes.NewBuffer(kv.Value)).Decode(out)
}
