package google

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/crmkit/leadmail/internal/logging"
	"github.com/crmkit/leadmail/internal/store"
)

// refreshMargin is how much remaining lifetime a token needs before we
// skip the refresh. The margin absorbs clock skew and the latency of
// whatever request the token is about to be used for.
const refreshMargin = 5 * time.Minute

// CredentialStore is the persistence surface the refresher needs.
// *store.Store satisfies it.
type CredentialStore interface {
	Credential(ctx context.Context, userID, provider string) (*store.Credential, error)
	SaveCredential(ctx context.Context, c *store.Credential) error
	SetConnected(ctx context.Context, userID, provider string, connected bool) error
}

// MetricsRecorder receives refresh outcomes. May be nil.
type MetricsRecorder interface {
	RecordTokenRefresh(ctx context.Context, result string)
}

// Refresher keeps stored access tokens usable, performing at most one
// refresh exchange per EnsureValid call. Calls for the same user are
// serialized so two concurrent requests cannot race a double refresh
// (Google may rotate the refresh token, invalidating the loser's copy).
type Refresher struct {
	store    CredentialStore
	exchange func(ctx context.Context, refreshToken string) (*oauth2.Token, error)
	now      func() time.Time
	logger   *slog.Logger
	metrics  MetricsRecorder

	mu    sync.Mutex
	users map[string]*sync.Mutex
}

// NewRefresher builds a Refresher that exchanges refresh tokens against
// the given OAuth config.
func NewRefresher(conf *oauth2.Config, st CredentialStore, logger *slog.Logger) *Refresher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Refresher{
		store: st,
		exchange: func(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
			return conf.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
		},
		now:    time.Now,
		logger: logger,
		users:  make(map[string]*sync.Mutex),
	}
}

// SetMetrics attaches a metrics recorder for refresh outcomes.
func (r *Refresher) SetMetrics(m MetricsRecorder) { r.metrics = m }

// EnsureValid returns a credential whose access token is good for at
// least the refresh margin, refreshing and persisting it if necessary.
//
// Failure modes: ErrNotConnected when nothing is stored for the user;
// *RefreshError otherwise. A terminal RefreshError (revoked grant) also
// persists connected=false without touching the stored tokens.
func (r *Refresher) EnsureValid(ctx context.Context, userID string) (*store.Credential, error) {
	lock := r.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	cred, err := r.store.Credential(ctx, userID, Provider)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotConnected
		}
		return nil, err
	}

	if cred.RefreshToken == "" {
		r.record(ctx, "failed_terminal")
		return nil, &RefreshError{Terminal: true, Err: errors.New("no refresh token stored")}
	}

	if cred.ExpiresAt.Sub(r.now()) > refreshMargin {
		r.logger.Debug("access token still valid",
			logging.UserID(userID),
			slog.Time("expires_at", cred.ExpiresAt))
		r.record(ctx, "valid")
		return cred, nil
	}

	r.logger.Info("refreshing access token",
		logging.UserID(userID),
		slog.Bool("expired", cred.ExpiresAt.Before(r.now())))

	tok, err := r.exchange(ctx, cred.RefreshToken)
	if err != nil {
		if isInvalidGrant(err) {
			// Terminal: the grant is gone. Mark disconnected so the UI
			// can prompt a re-auth; leave the stored tokens as they are.
			if derr := r.store.SetConnected(ctx, userID, Provider, false); derr != nil {
				r.logger.Error("failed to mark credential disconnected",
					logging.UserID(userID), logging.Err(derr))
			}
			r.logger.Warn("refresh grant revoked, user must re-authorize",
				logging.UserID(userID))
			r.record(ctx, "failed_terminal")
			return nil, &RefreshError{Terminal: true, Err: err}
		}
		r.logger.Error("token refresh failed", logging.UserID(userID), logging.Err(err))
		r.record(ctx, "failed_transient")
		return nil, &RefreshError{Err: err}
	}

	cred.AccessToken = tok.AccessToken
	cred.ExpiresAt = tok.Expiry
	if cred.ExpiresAt.IsZero() {
		cred.ExpiresAt = r.now().Add(time.Hour)
	}
	// Google only sometimes rotates the refresh token; keep the old one
	// unless a new one came back.
	if tok.RefreshToken != "" {
		cred.RefreshToken = tok.RefreshToken
	}
	cred.Connected = true

	if err := r.store.SaveCredential(ctx, cred); err != nil {
		r.record(ctx, "failed_transient")
		return nil, &RefreshError{Err: err}
	}

	r.logger.Info("access token refreshed",
		logging.UserID(userID),
		slog.Time("expires_at", cred.ExpiresAt))
	r.record(ctx, "refreshed")
	return cred, nil
}

func (r *Refresher) record(ctx context.Context, result string) {
	if r.metrics != nil {
		r.metrics.RecordTokenRefresh(ctx, result)
	}
}

func (r *Refresher) userLock(userID string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	lock, ok := r.users[userID]
	if !ok {
		lock = &sync.Mutex{}
		r.users[userID] = lock
	}
	return lock
}
