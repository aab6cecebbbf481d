package google

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/oauth2"
)

// ErrNotConnected is returned when no credential is stored for the user.
var ErrNotConnected = errors.New("no google account connected")

// ErrUnauthenticated is the single condition callers of the client
// factory see when no usable client can be produced, whatever the
// underlying refresh failure was.
var ErrUnauthenticated = errors.New("failed to authenticate with google")

// RefreshError reports a failed refresh exchange. Terminal means the
// grant was revoked or invalidated and the user must re-authorize;
// anything else (network, rate limit) may succeed on a later call.
type RefreshError struct {
	Terminal bool
	Err      error
}

func (e *RefreshError) Error() string {
	if e.Terminal {
		return fmt.Sprintf("token refresh failed (re-auth required): %v", e.Err)
	}
	return fmt.Sprintf("token refresh failed: %v", e.Err)
}

func (e *RefreshError) Unwrap() error { return e.Err }

// isInvalidGrant reports whether the refresh exchange failed because the
// grant itself is invalid or revoked. Google puts the code in the OAuth
// error response; some proxies only leave it in the body text.
func isInvalidGrant(err error) bool {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		if re.ErrorCode == "invalid_grant" {
			return true
		}
		return strings.Contains(string(re.Body), "invalid_grant")
	}
	return strings.Contains(err.Error(), "invalid_grant")
}
