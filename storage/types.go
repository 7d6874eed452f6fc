package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrStorageUnavailable indicates the database could not be reached or
	// could not execute a statement within the acquisition timeout.
	ErrStorageUnavailable = errors.New("storage: unavailable")
	// ErrValidation indicates a record was rejected before any write.
	ErrValidation = errors.New("storage: invalid record")
)

// TimestampLayout is the stored timestamp format (local time, second precision).
const TimestampLayout = "2006-01-02 15:04:05"

// DefaultQueryLimit is used when QueryOptions.Limit is zero.
const DefaultQueryLimit = 100

const (
	// MarkerReceivedAbsent replaces a message_received field that was never populated.
	MarkerReceivedAbsent = "[No Message Received]"
	// MarkerSentAbsent replaces a message_sent field that was never populated.
	MarkerSentAbsent = "[No Message Sent]"
	// MarkerDecryptionFailed replaces a field whose ciphertext could not be authenticated.
	MarkerDecryptionFailed = "[Decryption Failed]"
)

// FieldState describes how a message body field was produced.
type FieldState int

const (
	// FieldPlain means the field holds decrypted plaintext.
	FieldPlain FieldState = iota
	// FieldAbsent means the field was never populated.
	FieldAbsent
	// FieldDecryptionFailed means ciphertext was present but unreadable.
	FieldDecryptionFailed
)

func (s FieldState) String() string {
	switch s {
	case FieldPlain:
		return "plain"
	case FieldAbsent:
		return "absent"
	case FieldDecryptionFailed:
		return "decryption_failed"
	default:
		return fmt.Sprintf("FieldState(%d)", int(s))
	}
}

// Record is a decrypted copy of one stored message row.
type Record struct {
	ID              int64
	Sender          string
	Recipient       string
	MessageReceived string
	ReceivedState   FieldState
	MessageSent     string
	SentState       FieldState
	Timestamp       time.Time
}

// QueryOptions narrows Query results. Empty filters impose no constraint.
type QueryOptions struct {
	Sender    string
	Recipient string
	// Limit caps the number of rows. Zero means DefaultQueryLimit, negative
	// means no limit.
	Limit int
}

// RowFault describes a stored row that could not be decoded and was skipped.
type RowFault struct {
	// ID is zero when the row id itself was unreadable.
	ID  int64
	Err error
}

// QueryResult holds decoded records, newest first, plus skipped rows.
type QueryResult struct {
	Records []Record
	Skipped []RowFault
}

// Stats summarizes stored records.
type Stats struct {
	TotalCount int64
	PerSender  map[string]int64
	// Earliest and Latest are nil when the store is empty.
	Earliest *time.Time
	Latest   *time.Time
}

// UnavailableError wraps a storage-level failure on a read path.
type UnavailableError struct {
	Op  string
	Err error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("storage unavailable: %s: %v", e.Op, e.Err)
}

func (e *UnavailableError) Unwrap() []error {
	return []error{ErrStorageUnavailable, e.Err}
}

func unavailable(op string, err error) error {
	return &UnavailableError{Op: op, Err: err}
}

type scanner interface {
	Scan(dest ...any) error
}

func nullString(value string) sql.NullString {
	if value == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: value, Valid: true}
}

func parseTimestamp(value string) (time.Time, error) {
	ts, err := time.ParseInLocation(TimestampLayout, value, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", value, err)
	}
	return ts, nil
}

func formatTimestamp(ts time.Time) string {
	return ts.Local().Format(TimestampLayout)
}

func timePtr(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	ts, err := parseTimestamp(ns.String)
	if err != nil {
		return nil, err
	}
	return &ts, nil
}
