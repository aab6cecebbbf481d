package google

import (
	"context"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	gmailapi "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/crmkit/leadmail/internal/store"
)

// ClientFactory turns a user id into an authorized client, running the
// token refresher first. Callers see a single ErrUnauthenticated for
// every refresh failure; the re-auth-required distinction stays in the
// logs and the stored connected flag.
type ClientFactory struct {
	refresher *Refresher
}

// NewClientFactory builds a factory on top of the given refresher.
func NewClientFactory(refresher *Refresher) *ClientFactory {
	return &ClientFactory{refresher: refresher}
}

// ClientFor returns an HTTP client carrying a validated bearer token
// for userID, plus the credential it was built from.
func (f *ClientFactory) ClientFor(ctx context.Context, userID string) (*http.Client, *store.Credential, error) {
	cred, err := f.refresher.EnsureValid(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	tok := &oauth2.Token{
		AccessToken: cred.AccessToken,
		TokenType:   "Bearer",
		Expiry:      cred.ExpiresAt,
	}
	return oauth2.NewClient(ctx, oauth2.StaticTokenSource(tok)), cred, nil
}

// GmailFor returns a Gmail service authorized for userID.
func (f *ClientFactory) GmailFor(ctx context.Context, userID string) (*gmailapi.Service, *store.Credential, error) {
	client, cred, err := f.ClientFor(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	svc, err := gmailapi.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, nil, fmt.Errorf("create gmail service: %w", err)
	}
	return svc, cred, nil
}

// clientOption wraps a freshly exchanged token for one-off service
// construction during connect.
func clientOption(ctx context.Context, conf *oauth2.Config, tok *oauth2.Token) option.ClientOption {
	return option.WithHTTPClient(conf.Client(ctx, tok))
}
