package google

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/oauth2"
	googleauth "golang.org/x/oauth2/google"
	gmailapi "google.golang.org/api/gmail/v1"

	"github.com/crmkit/leadmail/internal/store"
)

// Provider is the only provider this integration speaks to.
const Provider = "google"

// NewOAuthConfig returns the OAuth2 configuration used for connect and
// refresh. Offline access with a forced consent prompt, so Google hands
// out a refresh token on every connect.
func NewOAuthConfig(clientID, clientSecret, redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     googleauth.Endpoint,
		RedirectURL:  redirectURL,
		Scopes: []string{
			gmailapi.GmailSendScope,
			gmailapi.GmailReadonlyScope,
			"https://www.googleapis.com/auth/userinfo.email",
			"https://www.googleapis.com/auth/userinfo.profile",
		},
	}
}

// AuthURL returns the URL the user visits to authorize the application.
func AuthURL(conf *oauth2.Config, state string) string {
	return conf.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// AuthRecorder receives authorization-code exchange outcomes. May be
// nil.
type AuthRecorder interface {
	RecordOAuthAuth(ctx context.Context, result string)
}

// resolveProfile resolves the account email behind a freshly exchanged
// token. A func var so tests never hit the network.
var resolveProfile = func(ctx context.Context, conf *oauth2.Config, tok *oauth2.Token) (string, error) {
	svc, err := gmailapi.NewService(ctx, clientOption(ctx, conf, tok))
	if err != nil {
		return "", err
	}
	profile, err := svc.Users.GetProfile("me").Context(ctx).Do()
	if err != nil {
		return "", err
	}
	return profile.EmailAddress, nil
}

// Connect exchanges an authorization code and stores the resulting
// credential for userID, marking it connected. The provider email and
// user id are captured from the Gmail profile so outgoing mail can carry
// the right From address.
func Connect(ctx context.Context, conf *oauth2.Config, st CredentialStore, metrics AuthRecorder, userID, authCode string) (*store.Credential, error) {
	tok, err := conf.Exchange(ctx, authCode)
	if err != nil {
		if metrics != nil {
			metrics.RecordOAuthAuth(ctx, "failure")
		}
		return nil, fmt.Errorf("exchange auth code: %w", err)
	}
	if metrics != nil {
		metrics.RecordOAuthAuth(ctx, "success")
	}

	cred := &store.Credential{
		UserID:       userID,
		Provider:     Provider,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    tok.Expiry,
		Connected:    true,
	}
	if cred.ExpiresAt.IsZero() {
		cred.ExpiresAt = time.Now().Add(time.Hour)
	}

	// Best effort: resolve the account identity. A failure here leaves
	// the credential usable, just without a stored sender address.
	if email, perr := resolveProfile(ctx, conf, tok); perr == nil && email != "" {
		cred.ProviderEmail = email
		cred.ProviderUserID = email
	}

	if err := st.SaveCredential(ctx, cred); err != nil {
		return nil, err
	}
	return cred, nil
}
