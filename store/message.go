package store

import "time"

// Message is an inbound support message. Immutable once received;
// the upsert exists only so transport retries do not duplicate rows.
type Message struct {
	UID        string
	SessionUID string
	UserUID    string
	Text       string
	SentAt     time.Time
	CreatedTs  int64
}
