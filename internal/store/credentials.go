package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Credential returns the stored credential for (userID, provider).
// Returns ErrNotFound when the user has never connected the provider.
func (s *Store) Credential(ctx context.Context, userID, provider string) (*Credential, error) {
	row := s.db.QueryRowContext(ctx, `SELECT user_id, provider, access_token,
        COALESCE(refresh_token, ''), expires_at, connected,
        COALESCE(provider_email, ''), COALESCE(provider_user_id, ''), updated_at
        FROM credentials WHERE user_id = ? AND provider = ?;`, userID, provider)

	var c Credential
	var expiresAt, updatedAt int64
	var connected int
	err := row.Scan(&c.UserID, &c.Provider, &c.AccessToken, &c.RefreshToken,
		&expiresAt, &connected, &c.ProviderEmail, &c.ProviderUserID, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load credential: %w", err)
	}
	c.ExpiresAt = time.Unix(expiresAt, 0)
	c.UpdatedAt = time.Unix(updatedAt, 0)
	c.Connected = connected != 0
	return &c, nil
}

// SaveCredential inserts or updates the credential row for the
// credential's (UserID, Provider) key.
func (s *Store) SaveCredential(ctx context.Context, c *Credential) error {
	connected := 0
	if c.Connected {
		connected = 1
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO credentials
        (user_id, provider, access_token, refresh_token, expires_at, connected,
         provider_email, provider_user_id, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(user_id, provider) DO UPDATE SET
            access_token = excluded.access_token,
            refresh_token = excluded.refresh_token,
            expires_at = excluded.expires_at,
            connected = excluded.connected,
            provider_email = excluded.provider_email,
            provider_user_id = excluded.provider_user_id,
            updated_at = excluded.updated_at;`,
		c.UserID, c.Provider, c.AccessToken, c.RefreshToken, c.ExpiresAt.Unix(),
		connected, c.ProviderEmail, c.ProviderUserID, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("save credential: %w", err)
	}
	return nil
}

// SetConnected flips the connected flag without touching any token.
func (s *Store) SetConnected(ctx context.Context, userID, provider string, connected bool) error {
	v := 0
	if connected {
		v = 1
	}
	res, err := s.db.ExecContext(ctx, `UPDATE credentials SET connected = ?, updated_at = ?
        WHERE user_id = ? AND provider = ?;`, v, time.Now().Unix(), userID, provider)
	if err != nil {
		return fmt.Errorf("set connected: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}
