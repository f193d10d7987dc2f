package core

import (
	"time"
)

// Timestamp is a UTC instant stored as RFC3339 text so it round-trips
// through every supported database driver unchanged.
type Timestamp time.Time

// StorageLayout is fixed-width so stored values sort chronologically.
const StorageLayout = "2006-01-02T15:04:05.000000Z07:00"

// NewTimestamp creates a new timestamp from time.Time, truncated to the
// stored precision so storage round-trips are exact.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp(t.UTC().Truncate(time.Microsecond))
}

// Now returns the current timestamp.
func Now() Timestamp {
	return NewTimestamp(time.Now())
}

// ParseTimestamp reads the stored form.
func ParseTimestamp(s string) (Timestamp, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return Timestamp{}, err
	}
	return NewTimestamp(t), nil
}

// Time returns the underlying time.Time
func (t Timestamp) Time() time.Time {
	return time.Time(t)
}

// IsZero checks if the timestamp is zero
func (t Timestamp) IsZero() bool {
	return time.Time(t).IsZero()
}

// Before returns true if t is before u
func (t Timestamp) Before(u Timestamp) bool {
	return time.Time(t).Before(time.Time(u))
}

// String is the stored form.
func (t Timestamp) String() string {
	return time.Time(t).Format(StorageLayout)
}

// JSON marshaling for Timestamp
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return time.Time(t).MarshalJSON()
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var tm time.Time
	if err := tm.UnmarshalJSON(data); err != nil {
		return err
	}
	*t = NewTimestamp(tm)
	return nil
}
