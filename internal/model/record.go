package model

import (
	"fmt"
	"time"
)

// RecordID identifies a stored record. It is assigned by the storage backend on insert
// and never changes afterwards.
type RecordID int64

// TimestampLayout is the on-disk encoding of Record.CreatedAt.
// It is fixed-width UTC with nanosecond precision so that lexicographic order of the
// encoded strings matches chronological order.
const TimestampLayout = "2006-01-02T15:04:05.000000000Z"

// Record represents one saved text entry.
// This is a pure domain model with no storage-specific dependencies.
type Record struct {
	ID        RecordID  `json:"id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// FormatTimestamp encodes t using TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// ParseTimestamp decodes a stored timestamp. Any RFC 3339 value is accepted so that
// files written by hand or by other tools still load.
func ParseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}
