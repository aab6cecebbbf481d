package gmail

import (
	"context"
	"fmt"
	"strings"
	"time"

	gmailapi "google.golang.org/api/gmail/v1"
)

// Fetch formats accepted by Transport.Get.
const (
	FormatFull     = "full"
	FormatMetadata = "metadata"
	FormatRaw      = "raw"
)

// Transport is the narrow slice of the Gmail API the gateway uses.
// The production implementation wraps a *gmailapi.Service; tests use a
// fake.
type Transport interface {
	Send(ctx context.Context, raw string) (*gmailapi.Message, error)
	Get(ctx context.Context, id, format string) (*gmailapi.Message, error)
	List(ctx context.Context, q string, labelIDs []string, maxResults int64, pageToken string) (*gmailapi.ListMessagesResponse, error)
	Attachment(ctx context.Context, messageID, attachmentID string) ([]byte, error)
}

type googleTransport struct {
	svc *gmailapi.Service
}

// NewGoogleTransport wraps a Gmail service as a Transport. All calls
// target the authorized user ("me").
func NewGoogleTransport(svc *gmailapi.Service) Transport {
	return &googleTransport{svc: svc}
}

func (t *googleTransport) Send(ctx context.Context, raw string) (*gmailapi.Message, error) {
	msg, err := t.svc.Users.Messages.Send("me", &gmailapi.Message{Raw: raw}).Context(ctx).Do()
	if err != nil {
		return nil, mapTransportError(err)
	}
	return msg, nil
}

func (t *googleTransport) Get(ctx context.Context, id, format string) (*gmailapi.Message, error) {
	msg, err := t.svc.Users.Messages.Get("me", id).Format(format).Context(ctx).Do()
	if err != nil {
		return nil, mapTransportError(err)
	}
	return msg, nil
}

func (t *googleTransport) List(ctx context.Context, q string, labelIDs []string, maxResults int64, pageToken string) (*gmailapi.ListMessagesResponse, error) {
	call := t.svc.Users.Messages.List("me").Context(ctx)
	if q != "" {
		call = call.Q(q)
	}
	if len(labelIDs) > 0 {
		call = call.LabelIds(labelIDs...)
	}
	if maxResults > 0 {
		call = call.MaxResults(maxResults)
	}
	if pageToken != "" {
		call = call.PageToken(pageToken)
	}
	resp, err := call.Do()
	if err != nil {
		return nil, mapTransportError(err)
	}
	return resp, nil
}

func (t *googleTransport) Attachment(ctx context.Context, messageID, attachmentID string) ([]byte, error) {
	body, err := t.svc.Users.Messages.Attachments.Get("me", messageID, attachmentID).Context(ctx).Do()
	if err != nil {
		return nil, mapTransportError(err)
	}
	data, err := DecodeBase64URL(body.Data)
	if err != nil {
		return nil, fmt.Errorf("decode attachment %s: %w", attachmentID, err)
	}
	return data, nil
}

// ListOptions narrows a mailbox listing.
type ListOptions struct {
	Sent       bool // restrict to the sent folder
	Search     string
	After      time.Time // day resolution, inclusive
	Before     time.Time // day resolution, exclusive
	LabelIDs   []string
	MaxResults int64
	PageToken  string
}

// BuildQuery renders opts as a Gmail search query string.
func BuildQuery(opts ListOptions) string {
	var parts []string
	if opts.Sent {
		parts = append(parts, "in:sent")
	}
	if opts.Search != "" {
		parts = append(parts, opts.Search)
	}
	if !opts.After.IsZero() {
		parts = append(parts, "after:"+opts.After.Format("2006/01/02"))
	}
	if !opts.Before.IsZero() {
		parts = append(parts, "before:"+opts.Before.Format("2006/01/02"))
	}
	return strings.Join(parts, " ")
}
