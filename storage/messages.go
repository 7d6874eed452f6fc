package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"vessellog/crypto"
)

// Save encrypts and inserts one message record.
//
// It returns false when sender or recipient is empty, when a body cannot be
// encrypted, or when the insert transaction fails; the cause is logged.
// Bodies are trimmed before encryption and blank bodies are stored as NULL.
func (s *Store) Save(ctx context.Context, sender, recipient, received, sent string) bool {
	logger := s.logger.With("sender", sender, "recipient", recipient)

	if err := validateVessels(sender, recipient); err != nil {
		logger.Warn("message rejected", "err", err)
		s.metrics.observeSave(saveResultInvalid)
		return false
	}

	encryptedReceived, err := s.sealBody(received)
	if err != nil {
		logger.Error("encrypt received message failed", "err", err)
		s.metrics.observeSave(saveResultError)
		return false
	}
	encryptedSent, err := s.sealBody(sent)
	if err != nil {
		logger.Error("encrypt sent message failed", "err", err)
		s.metrics.observeSave(saveResultError)
		return false
	}

	id, err := s.insertMessage(ctx, sender, recipient, encryptedReceived, encryptedSent)
	if err != nil {
		logger.Error("save message failed", "err", err)
		s.metrics.observeSave(saveResultError)
		return false
	}

	logger.Info("message saved", "id", id)
	s.metrics.observeSave(saveResultOK)
	return true
}

func (s *Store) insertMessage(ctx context.Context, sender, recipient string, received, sent sql.NullString) (int64, error) {
	conn, err := s.conn(ctx)
	if err != nil {
		return 0, unavailable("acquire connection", err)
	}
	defer conn.Close()

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin insert transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO messages (
			vessel_sender,
			vessel_recipient,
			message_received,
			message_sent,
			timestamp
		) VALUES (?, ?, ?, ?, ?)`,
		sender,
		recipient,
		received,
		sent,
		formatTimestamp(s.now()),
	)
	if err != nil {
		return 0, fmt.Errorf("insert message: %w", err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("read rows affected for insert: %w", err)
	}
	if rowsAffected != 1 {
		return 0, fmt.Errorf("insert message: expected 1 row affected, got %d", rowsAffected)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("read inserted message id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit insert transaction: %w", err)
	}
	committed = true

	return id, nil
}

func (s *Store) sealBody(body string) (sql.NullString, error) {
	token, err := s.sealer.Encrypt(strings.TrimSpace(body))
	if errors.Is(err, crypto.ErrEmptyPlaintext) {
		return sql.NullString{}, nil
	}
	if err != nil {
		return sql.NullString{}, err
	}
	return nullString(token), nil
}

// Query returns decrypted records, newest first.
//
// A field that fails to decrypt is replaced with MarkerDecryptionFailed and
// the row is kept. A row that cannot be decoded at all is reported in
// QueryResult.Skipped. Only storage-level failures return an error, which
// always matches ErrStorageUnavailable.
func (s *Store) Query(ctx context.Context, opts QueryOptions) (QueryResult, error) {
	started := time.Now()
	defer func() {
		s.metrics.observeQuery(time.Since(started))
	}()

	limit := opts.Limit
	if limit == 0 {
		limit = DefaultQueryLimit
	}
	if limit < 0 {
		limit = -1
	}

	query := strings.Builder{}
	query.WriteString(`SELECT
		id,
		vessel_sender,
		vessel_recipient,
		message_received,
		message_sent,
		timestamp
	FROM messages`)

	where := make([]string, 0, 2)
	args := make([]any, 0, 3)

	if opts.Sender != "" {
		where = append(where, "vessel_sender = ?")
		args = append(args, opts.Sender)
	}
	if opts.Recipient != "" {
		where = append(where, "vessel_recipient = ?")
		args = append(args, opts.Recipient)
	}

	if len(where) > 0 {
		query.WriteString(" WHERE ")
		query.WriteString(strings.Join(where, " AND "))
	}
	query.WriteString(" ORDER BY timestamp DESC, id DESC LIMIT ?")
	args = append(args, limit)

	conn, err := s.conn(ctx)
	if err != nil {
		return QueryResult{}, unavailable("acquire connection", err)
	}
	defer conn.Close()

	rows, err := conn.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return QueryResult{}, unavailable("query messages", err)
	}
	defer rows.Close()

	result := QueryResult{Records: make([]Record, 0)}
	for rows.Next() {
		record, err := s.decodeRow(rows)
		if err != nil {
			fault := RowFault{ID: record.ID, Err: err}
			result.Skipped = append(result.Skipped, fault)
			s.metrics.observeSkippedRow()
			s.logger.Error("skipping unreadable message row", "id", fault.ID, "err", err)
			continue
		}
		result.Records = append(result.Records, record)
	}

	if err := rows.Err(); err != nil {
		return QueryResult{}, unavailable("iterate message rows", err)
	}

	s.logger.Debug("messages retrieved",
		"sender", opts.Sender,
		"recipient", opts.Recipient,
		"count", len(result.Records),
		"skipped", len(result.Skipped),
	)
	return result, nil
}

// decodeRow scans and decrypts one row. On error the returned record carries
// at most the row ID.
func (s *Store) decodeRow(row scanner) (Record, error) {
	var (
		id        sql.NullInt64
		sender    sql.NullString
		recipient sql.NullString
		received  sql.NullString
		sent      sql.NullString
		timestamp sql.NullString
	)

	if err := row.Scan(&id, &sender, &recipient, &received, &sent, &timestamp); err != nil {
		return Record{}, fmt.Errorf("scan message row: %w", err)
	}
	if !id.Valid {
		return Record{}, errors.New("message row has no id")
	}
	if err := validateVessels(sender.String, recipient.String); err != nil {
		return Record{ID: id.Int64}, err
	}
	if !timestamp.Valid {
		return Record{ID: id.Int64}, errors.New("message row has no timestamp")
	}
	ts, err := parseTimestamp(timestamp.String)
	if err != nil {
		return Record{ID: id.Int64}, err
	}

	record := Record{
		ID:        id.Int64,
		Sender:    sender.String,
		Recipient: recipient.String,
		Timestamp: ts,
	}
	record.MessageReceived, record.ReceivedState = s.openBody(record.ID, "message_received", received, MarkerReceivedAbsent)
	record.MessageSent, record.SentState = s.openBody(record.ID, "message_sent", sent, MarkerSentAbsent)

	return record, nil
}

func (s *Store) openBody(id int64, field string, token sql.NullString, absentMarker string) (string, FieldState) {
	if !token.Valid {
		return absentMarker, FieldAbsent
	}

	plaintext, err := s.sealer.Decrypt(token.String)
	switch {
	case err == nil && plaintext != "":
		return plaintext, FieldPlain
	case err == nil, errors.Is(err, crypto.ErrNothingStored):
		return absentMarker, FieldAbsent
	default:
		s.metrics.observeDecryptFailure()
		s.logger.Warn("message field failed to decrypt", "id", id, "field", field, "err", err)
		return MarkerDecryptionFailed, FieldDecryptionFailed
	}
}

// DistinctSenders returns every sender vessel present in storage, sorted.
func (s *Store) DistinctSenders(ctx context.Context) ([]string, error) {
	conn, err := s.conn(ctx)
	if err != nil {
		return nil, unavailable("acquire connection", err)
	}
	defer conn.Close()

	rows, err := conn.QueryContext(ctx, `SELECT DISTINCT vessel_sender FROM messages ORDER BY vessel_sender ASC`)
	if err != nil {
		return nil, unavailable("query distinct senders", err)
	}
	defer rows.Close()

	senders := make([]string, 0)
	for rows.Next() {
		var sender string
		if err := rows.Scan(&sender); err != nil {
			return nil, unavailable("scan sender row", err)
		}
		senders = append(senders, sender)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("iterate sender rows", err)
	}

	return senders, nil
}

func validateVessels(sender, recipient string) error {
	if strings.TrimSpace(sender) == "" {
		return fmt.Errorf("%w: vessel_sender is required", ErrValidation)
	}
	if strings.TrimSpace(recipient) == "" {
		return fmt.Errorf("%w: vessel_recipient is required", ErrValidation)
	}
	return nil
}
