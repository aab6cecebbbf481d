package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// InsertLog records one send attempt.
func (s *Store) InsertLog(ctx context.Context, l *EmailLog) error {
	res, err := s.db.ExecContext(ctx, `INSERT INTO email_logs
        (lead_id, user_id, to_email, subject, body, message_id, status, error_message, sent_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?);`,
		nullIfEmpty(l.LeadID), l.UserID, l.ToEmail, l.Subject, l.Body,
		nullIfEmpty(l.MessageID), l.Status, nullIfEmpty(l.ErrorMessage), l.SentAt.Unix())
	if err != nil {
		return fmt.Errorf("insert email log: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		l.ID = id
	}
	return nil
}

// Logs lists a user's send log, newest first, narrowed by filter.
func (s *Store) Logs(ctx context.Context, userID string, f LogFilter) ([]*EmailLog, error) {
	query := `SELECT id, COALESCE(lead_id, ''), user_id, to_email, subject,
        COALESCE(body, ''), COALESCE(message_id, ''), status,
        COALESCE(error_message, ''), sent_at
        FROM email_logs WHERE user_id = ?`
	args := []any{userID}

	if f.LeadID != "" {
		query += ` AND lead_id = ?`
		args = append(args, f.LeadID)
	}
	if f.Status != "" {
		query += ` AND status = ?`
		args = append(args, f.Status)
	}
	if f.Search != "" {
		query += ` AND (subject LIKE ? OR to_email LIKE ? OR body LIKE ?)`
		like := "%" + f.Search + "%"
		args = append(args, like, like, like)
	}
	query += ` ORDER BY sent_at DESC, id DESC`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
		if f.Offset > 0 {
			query += ` OFFSET ?`
			args = append(args, f.Offset)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list email logs: %w", err)
	}
	defer rows.Close()

	var logs []*EmailLog
	for rows.Next() {
		var l EmailLog
		var sentAt int64
		if err := rows.Scan(&l.ID, &l.LeadID, &l.UserID, &l.ToEmail, &l.Subject,
			&l.Body, &l.MessageID, &l.Status, &l.ErrorMessage, &sentAt); err != nil {
			return nil, fmt.Errorf("scan email log: %w", err)
		}
		l.SentAt = time.Unix(sentAt, 0)
		logs = append(logs, &l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list email logs: %w", err)
	}
	return logs, nil
}

// Stats aggregates a user's send history.
func (s *Store) Stats(ctx context.Context, userID string) (*LogStats, error) {
	row := s.db.QueryRowContext(ctx, `SELECT
        SUM(CASE WHEN status = 'sent' THEN 1 ELSE 0 END),
        SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END),
        MAX(CASE WHEN status = 'sent' THEN sent_at ELSE NULL END)
        FROM email_logs WHERE user_id = ?;`, userID)

	var sent, failed sql.NullInt64
	var lastSent sql.NullInt64
	if err := row.Scan(&sent, &failed, &lastSent); err != nil {
		return nil, fmt.Errorf("email log stats: %w", err)
	}

	stats := &LogStats{
		TotalSent:   sent.Int64,
		TotalFailed: failed.Int64,
	}
	if total := stats.TotalSent + stats.TotalFailed; total > 0 {
		stats.SuccessRate = float64(stats.TotalSent) / float64(total) * 100
	}
	if lastSent.Valid {
		t := time.Unix(lastSent.Int64, 0)
		stats.LastSentAt = &t
	}
	return stats, nil
}
