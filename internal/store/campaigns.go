package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// SaveCampaign inserts a new campaign or updates an existing one.
// Audience is stored as a JSON array of lead IDs.
func (s *Store) SaveCampaign(ctx context.Context, c *Campaign) error {
	audience, err := json.Marshal(c.Audience)
	if err != nil {
		return fmt.Errorf("encode audience: %w", err)
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO campaigns
        (id, name, subject, content, audience, status, sender, sent_count,
         failed_count, total_recipients, started_at, completed_at, cancelled_at,
         last_processed_at, error_message, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET
            name = excluded.name,
            subject = excluded.subject,
            content = excluded.content,
            audience = excluded.audience,
            status = excluded.status,
            sent_count = excluded.sent_count,
            failed_count = excluded.failed_count,
            total_recipients = excluded.total_recipients,
            started_at = excluded.started_at,
            completed_at = excluded.completed_at,
            cancelled_at = excluded.cancelled_at,
            last_processed_at = excluded.last_processed_at,
            error_message = excluded.error_message;`,
		c.ID, c.Name, c.Subject, c.Content, string(audience), c.Status, c.Sender,
		c.SentCount, c.FailedCount, c.TotalRecipients,
		unixOrNil(c.StartedAt), unixOrNil(c.CompletedAt), unixOrNil(c.CancelledAt),
		unixOrNil(c.LastProcessedAt), nullIfEmpty(c.ErrorMessage), c.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("save campaign: %w", err)
	}
	return nil
}

// Campaign returns one campaign by id.
func (s *Store) Campaign(ctx context.Context, id string) (*Campaign, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, name, subject, content, audience,
        status, sender, sent_count, failed_count, total_recipients,
        started_at, completed_at, cancelled_at, last_processed_at,
        COALESCE(error_message, ''), created_at
        FROM campaigns WHERE id = ?;`, id)

	var c Campaign
	var audience string
	var started, completed, cancelled, processed sql.NullInt64
	var created int64
	err := row.Scan(&c.ID, &c.Name, &c.Subject, &c.Content, &audience,
		&c.Status, &c.Sender, &c.SentCount, &c.FailedCount, &c.TotalRecipients,
		&started, &completed, &cancelled, &processed, &c.ErrorMessage, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load campaign: %w", err)
	}
	if err := json.Unmarshal([]byte(audience), &c.Audience); err != nil {
		return nil, fmt.Errorf("decode audience: %w", err)
	}
	c.StartedAt = timeOrNil(started)
	c.CompletedAt = timeOrNil(completed)
	c.CancelledAt = timeOrNil(cancelled)
	c.LastProcessedAt = timeOrNil(processed)
	c.CreatedAt = time.Unix(created, 0)
	return &c, nil
}

// UpdateCampaignProgress updates only the running counters, leaving
// status and lifecycle timestamps alone so a concurrent cancel is not
// overwritten by a checkpoint.
func (s *Store) UpdateCampaignProgress(ctx context.Context, id string, sent, failed int64, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `UPDATE campaigns
        SET sent_count = ?, failed_count = ?, last_processed_at = ?
        WHERE id = ?;`, sent, failed, at.Unix(), id)
	if err != nil {
		return fmt.Errorf("update campaign progress: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// CancelCampaign moves a cancellable campaign to the cancelled state.
func (s *Store) CancelCampaign(ctx context.Context, id string, at time.Time) error {
	c, err := s.Campaign(ctx, id)
	if err != nil {
		return err
	}
	if !c.CanBeCancelled() {
		return fmt.Errorf("campaign %s is %s and cannot be cancelled", id, c.Status)
	}
	c.Status = CampaignCancelled
	c.CancelledAt = &at
	return s.SaveCampaign(ctx, c)
}

func unixOrNil(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Unix()
}

func timeOrNil(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.Unix(v.Int64, 0)
	return &t
}
