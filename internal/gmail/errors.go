package gmail

import (
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/api/googleapi"
)

// Sentinel errors for the mail layer.
var (
	// ErrEncode marks a message that cannot be turned into a valid
	// RFC 2822 block (no recipients, oversize attachment).
	ErrEncode = errors.New("message encode failed")

	// ErrNotFound marks a message id the provider does not know.
	ErrNotFound = errors.New("message not found")
)

// TransportError wraps a failed provider call with the HTTP status the
// provider returned, when one is available.
type TransportError struct {
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("gmail transport error (status %d): %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("gmail transport error: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// mapTransportError folds a provider error into the taxonomy: 404
// becomes ErrNotFound, everything else a TransportError carrying the
// status code when the provider supplied one.
func mapTransportError(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		if apiErr.Code == http.StatusNotFound {
			return fmt.Errorf("%w: %v", ErrNotFound, apiErr.Message)
		}
		return &TransportError{StatusCode: apiErr.Code, Err: err}
	}
	return &TransportError{Err: err}
}
