package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// Stats returns record counts and the stored timestamp range.
//
// All figures are read inside one transaction; any failure makes the whole
// summary unavailable.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	conn, err := s.conn(ctx)
	if err != nil {
		return Stats{}, unavailable("acquire connection", err)
	}
	defer conn.Close()

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return Stats{}, unavailable("begin stats transaction", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stats := Stats{PerSender: make(map[string]int64)}
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages`).Scan(&stats.TotalCount); err != nil {
		return Stats{}, unavailable("count messages", err)
	}

	if err := readSenderCounts(ctx, tx, stats.PerSender); err != nil {
		return Stats{}, err
	}

	var earliest, latest sql.NullString
	if err := tx.QueryRowContext(ctx, `SELECT MIN(timestamp), MAX(timestamp) FROM messages`).Scan(&earliest, &latest); err != nil {
		return Stats{}, unavailable("read timestamp range", err)
	}
	if stats.Earliest, err = timePtr(earliest); err != nil {
		return Stats{}, unavailable("read earliest timestamp", err)
	}
	if stats.Latest, err = timePtr(latest); err != nil {
		return Stats{}, unavailable("read latest timestamp", err)
	}

	s.logger.Debug("statistics retrieved", "total", stats.TotalCount, "senders", len(stats.PerSender))
	return stats, nil
}

func readSenderCounts(ctx context.Context, tx *sql.Tx, counts map[string]int64) error {
	rows, err := tx.QueryContext(ctx,
		`SELECT vessel_sender, COUNT(*)
		FROM messages
		GROUP BY vessel_sender`,
	)
	if err != nil {
		return unavailable("count messages per sender", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			sender string
			count  int64
		)
		if err := rows.Scan(&sender, &count); err != nil {
			return unavailable("scan sender count", err)
		}
		counts[sender] = count
	}
	if err := rows.Err(); err != nil {
		return unavailable("iterate sender counts", err)
	}

	return nil
}

// ClearAll deletes every record in a single transaction.
func (s *Store) ClearAll(ctx context.Context) bool {
	s.logger.Warn("clearing all messages")

	deleted, err := s.deleteAll(ctx)
	if err != nil {
		s.logger.Error("clear messages failed", "err", err)
		return false
	}

	s.logger.Info("messages cleared", "deleted", deleted)
	return true
}

func (s *Store) deleteAll(ctx context.Context) (int64, error) {
	conn, err := s.conn(ctx)
	if err != nil {
		return 0, unavailable("acquire connection", err)
	}
	defer conn.Close()

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin clear transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, `DELETE FROM messages`)
	if err != nil {
		return 0, fmt.Errorf("delete messages: %w", err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("read rows affected for clear: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit clear transaction: %w", err)
	}
	committed = true

	return rowsAffected, nil
}

// HealthCheck reports whether the database answers a trivial query.
func (s *Store) HealthCheck(ctx context.Context) bool {
	conn, err := s.conn(ctx)
	if err != nil {
		s.logger.Error("health check failed", "err", err)
		return false
	}
	defer conn.Close()

	var one int
	if err := conn.QueryRowContext(ctx, `SELECT 1`).Scan(&one); err != nil {
		s.logger.Error("health check failed", "err", err)
		return false
	}

	return one == 1
}
