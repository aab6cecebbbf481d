package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// SaveLead inserts or replaces a lead record.
func (s *Store) SaveLead(ctx context.Context, l *Lead) error {
	var lastContacted any
	if l.LastContactedAt != nil {
		lastContacted = l.LastContactedAt.Unix()
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO leads
        (id, full_name, email, company, position, location, last_contacted_at)
        VALUES (?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET
            full_name = excluded.full_name,
            email = excluded.email,
            company = excluded.company,
            position = excluded.position,
            location = excluded.location;`,
		l.ID, l.FullName, nullIfEmpty(l.Email), nullIfEmpty(l.Company),
		nullIfEmpty(l.Position), nullIfEmpty(l.Location), lastContacted)
	if err != nil {
		return fmt.Errorf("save lead: %w", err)
	}
	return nil
}

// Lead returns one lead by id.
func (s *Store) Lead(ctx context.Context, id string) (*Lead, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, full_name, COALESCE(email, ''),
        COALESCE(company, ''), COALESCE(position, ''), COALESCE(location, ''),
        last_contacted_at FROM leads WHERE id = ?;`, id)
	return scanLead(row)
}

// LeadsByIDs returns the leads among ids that have an email address,
// preserving the order of ids. Unknown ids and leads without email are
// silently skipped.
func (s *Store) LeadsByIDs(ctx context.Context, ids []string) ([]*Lead, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, full_name, COALESCE(email, ''),
        COALESCE(company, ''), COALESCE(position, ''), COALESCE(location, ''),
        last_contacted_at FROM leads
        WHERE id IN (`+placeholders+`) AND email IS NOT NULL AND email != '';`, args...)
	if err != nil {
		return nil, fmt.Errorf("load leads: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]*Lead, len(ids))
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		byID[l.ID] = l
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load leads: %w", err)
	}

	ordered := make([]*Lead, 0, len(byID))
	for _, id := range ids {
		if l, ok := byID[id]; ok {
			ordered = append(ordered, l)
		}
	}
	return ordered, nil
}

// TouchLastContacted stamps the lead's last contact time.
func (s *Store) TouchLastContacted(ctx context.Context, leadID string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `UPDATE leads SET last_contacted_at = ? WHERE id = ?;`,
		at.Unix(), leadID)
	if err != nil {
		return fmt.Errorf("touch lead: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLead(row rowScanner) (*Lead, error) {
	var l Lead
	var lastContacted sql.NullInt64
	err := row.Scan(&l.ID, &l.FullName, &l.Email, &l.Company, &l.Position,
		&l.Location, &lastContacted)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan lead: %w", err)
	}
	if lastContacted.Valid {
		t := time.Unix(lastContacted.Int64, 0)
		l.LastContactedAt = &t
	}
	return &l, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
