package gmail

import (
	"context"
	"log/slog"
	"time"

	"github.com/crmkit/leadmail/internal/google"
	"github.com/crmkit/leadmail/internal/instrumentation"
	"github.com/crmkit/leadmail/internal/logging"
	"github.com/crmkit/leadmail/internal/store"
)

// TransportFactory yields an authorized transport for a user, refreshing
// the stored token first. Refresh failures surface as
// google.ErrUnauthenticated.
type TransportFactory interface {
	TransportFor(ctx context.Context, userID string) (Transport, *store.Credential, error)
}

// GoogleFactory adapts the OAuth client factory into a TransportFactory.
type GoogleFactory struct {
	clients *google.ClientFactory
}

// NewGoogleFactory builds a TransportFactory on top of the OAuth client
// factory.
func NewGoogleFactory(clients *google.ClientFactory) *GoogleFactory {
	return &GoogleFactory{clients: clients}
}

func (f *GoogleFactory) TransportFor(ctx context.Context, userID string) (Transport, *store.Credential, error) {
	svc, cred, err := f.clients.GmailFor(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	return NewGoogleTransport(svc), cred, nil
}

// LogStore is the persistence surface the gateway writes send attempts
// to. *store.Store satisfies it.
type LogStore interface {
	InsertLog(ctx context.Context, l *store.EmailLog) error
	TouchLastContacted(ctx context.Context, leadID string, at time.Time) error
}

// SendRecorder receives send outcomes, their durations and per-call
// transport metrics. May be nil. *instrumentation.Metrics satisfies it.
type SendRecorder interface {
	RecordSend(ctx context.Context, result string)
	RecordSendDuration(ctx context.Context, result, recipientDomain string, duration time.Duration)
	RecordGmailOperation(ctx context.Context, operation, status string, duration time.Duration)
}

// Auditor receives a completed audit record per send attempt. May be
// nil. *instrumentation.AuditLogger satisfies it.
type Auditor interface {
	LogSend(a *instrumentation.SendAudit)
}

// SendRequest describes one outgoing email. LeadID links the log entry
// to a lead and stamps its last-contacted time on success; CampaignID
// tags the audit record when the send is part of a campaign run.
type SendRequest struct {
	UserID      string
	LeadID      string
	CampaignID  string
	To          []string
	Cc          []string
	Bcc         []string
	Subject     string
	Body        string
	IsHTML      bool
	Attachments []Attachment
}

// SendResult identifies the message the provider accepted.
type SendResult struct {
	MessageID string
	ThreadID  string
}

// MessageSummary is the listing view of one mailbox message.
type MessageSummary struct {
	ID             string
	ThreadID       string
	From           string
	To             string
	Subject        string
	Date           string
	Snippet        string
	HasAttachments bool
}

// Gateway sends and fetches mail for CRM users. Every send attempt,
// successful or not, is recorded in the send log; a log write failure
// never changes the send outcome.
type Gateway struct {
	factory TransportFactory
	logs    LogStore
	logger  *slog.Logger
	metrics SendRecorder
	audit   Auditor
	// defaultFrom is the sender address used when the credential has no
	// stored provider email.
	defaultFrom string
	now         func() time.Time
}

// NewGateway builds a Gateway.
func NewGateway(factory TransportFactory, logs LogStore, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		factory: factory,
		logs:    logs,
		logger:  logger,
		now:     time.Now,
	}
}

// SetMetrics attaches a metrics recorder for send outcomes.
func (g *Gateway) SetMetrics(m SendRecorder) { g.metrics = m }

// SetAudit attaches an audit logger for send attempts.
func (g *Gateway) SetAudit(a Auditor) { g.audit = a }

// SetDefaultFrom sets the fallback sender address for users without a
// stored provider email.
func (g *Gateway) SetDefaultFrom(from string) { g.defaultFrom = from }

// Send encodes and sends one email as req.UserID. The attempt is
// logged either way; on success the linked lead's last-contacted time
// is stamped.
func (g *Gateway) Send(ctx context.Context, req *SendRequest) (*SendResult, error) {
	ctx, span := instrumentation.StartGmailSpan(ctx, instrumentation.OperationSend)
	defer span.End()

	logger := g.logger.With(
		logging.Operation("send_email"),
		logging.UserID(req.UserID),
	)
	if req.LeadID != "" {
		logger = logger.With(logging.LeadID(req.LeadID))
	}

	audit := instrumentation.NewSendAudit(req.UserID, firstRecipient(req.To)).
		WithLead(req.LeadID).
		WithCampaign(req.CampaignID).
		WithSubject(req.Subject).
		WithSpanContext(ctx)

	transport, cred, err := g.factory.TransportFor(ctx, req.UserID)
	if err != nil {
		logger.Error("authorization failed", logging.Err(err))
		g.finish(ctx, req, audit, "", err)
		instrumentation.SetSpanError(span, err)
		return nil, err
	}
	from := cred.ProviderEmail
	if from == "" {
		from = g.defaultFrom
	}
	audit.WithSender(from)

	msg := &OutgoingMessage{
		From:        from,
		To:          req.To,
		Cc:          req.Cc,
		Bcc:         req.Bcc,
		Subject:     req.Subject,
		Body:        req.Body,
		IsHTML:      req.IsHTML,
		Attachments: req.Attachments,
	}
	raw, err := Encode(msg)
	if err != nil {
		logger.Error("message encoding failed", logging.Err(err))
		g.finish(ctx, req, audit, "", err)
		instrumentation.SetSpanError(span, err)
		return nil, err
	}

	start := g.now()
	sent, err := transport.Send(ctx, raw)
	g.recordOp(ctx, instrumentation.OperationSend, start, err)
	if err != nil {
		logger.Error("send failed",
			logging.Status(logging.StatusFailed),
			slog.Duration(logging.KeyDuration, g.now().Sub(start)),
			logging.Err(err))
		g.finish(ctx, req, audit, "", err)
		instrumentation.SetSpanError(span, err)
		return nil, err
	}

	logger.Info("email sent",
		logging.Status(logging.StatusSent),
		logging.MessageID(sent.Id),
		slog.Duration(logging.KeyDuration, g.now().Sub(start)))
	g.finish(ctx, req, audit, sent.Id, nil)
	instrumentation.SetSpanSuccess(span)
	return &SendResult{MessageID: sent.Id, ThreadID: sent.ThreadId}, nil
}

func firstRecipient(to []string) string {
	if len(to) == 0 {
		return ""
	}
	return to[0]
}

// recordOp records one transport call's outcome and duration.
func (g *Gateway) recordOp(ctx context.Context, operation string, start time.Time, err error) {
	if g.metrics == nil {
		return
	}
	status := instrumentation.StatusSuccess
	if err != nil {
		status = instrumentation.StatusError
	}
	g.metrics.RecordGmailOperation(ctx, operation, status, g.now().Sub(start))
}

// finish logs the attempt, stamps the lead and records metrics and the
// audit trail. It never returns an error: the send outcome is already
// decided.
func (g *Gateway) finish(ctx context.Context, req *SendRequest, audit *instrumentation.SendAudit,
	messageID string, sendErr error) {
	entry := &store.EmailLog{
		LeadID:    req.LeadID,
		UserID:    req.UserID,
		Subject:   req.Subject,
		Body:      req.Body,
		MessageID: messageID,
		Status:    store.LogStatusSent,
		SentAt:    g.now(),
	}
	if len(req.To) > 0 {
		entry.ToEmail = req.To[0]
	}
	if sendErr != nil {
		entry.Status = store.LogStatusFailed
		entry.ErrorMessage = sendErr.Error()
	}

	if g.logs != nil {
		if err := g.logs.InsertLog(ctx, entry); err != nil {
			g.logger.Error("failed to record send attempt",
				logging.UserID(req.UserID), logging.Err(err))
		}
		if sendErr == nil && req.LeadID != "" {
			if err := g.logs.TouchLastContacted(ctx, req.LeadID, entry.SentAt); err != nil {
				g.logger.Error("failed to stamp lead contact time",
					logging.LeadID(req.LeadID), logging.Err(err))
			}
		}
	}

	completed := audit.Complete(messageID, sendErr)
	if g.metrics != nil {
		g.metrics.RecordSend(ctx, entry.Status)
		g.metrics.RecordSendDuration(ctx, entry.Status, completed.RecipientDomain(), completed.Duration)
	}
	if g.audit != nil {
		g.audit.LogSend(completed)
	}
}

// GetMessage fetches one message in full format and decodes it.
func (g *Gateway) GetMessage(ctx context.Context, userID, messageID string) (*Decoded, error) {
	transport, _, err := g.factory.TransportFor(ctx, userID)
	if err != nil {
		return nil, err
	}
	start := g.now()
	msg, err := transport.Get(ctx, messageID, FormatFull)
	g.recordOp(ctx, instrumentation.OperationGet, start, err)
	if err != nil {
		return nil, err
	}
	return DecodeMessage(msg), nil
}

// GetAttachment fetches one attachment's bytes.
func (g *Gateway) GetAttachment(ctx context.Context, userID, messageID, attachmentID string) ([]byte, error) {
	transport, _, err := g.factory.TransportFor(ctx, userID)
	if err != nil {
		return nil, err
	}
	start := g.now()
	data, err := transport.Attachment(ctx, messageID, attachmentID)
	g.recordOp(ctx, instrumentation.OperationAttachment, start, err)
	return data, err
}

// ListMessages lists mailbox messages matching opts, fetching each hit
// in full format to build the summary.
func (g *Gateway) ListMessages(ctx context.Context, userID string, opts ListOptions) ([]*MessageSummary, string, error) {
	transport, _, err := g.factory.TransportFor(ctx, userID)
	if err != nil {
		return nil, "", err
	}

	start := g.now()
	resp, err := transport.List(ctx, BuildQuery(opts), opts.LabelIDs, opts.MaxResults, opts.PageToken)
	g.recordOp(ctx, instrumentation.OperationList, start, err)
	if err != nil {
		return nil, "", err
	}

	summaries := make([]*MessageSummary, 0, len(resp.Messages))
	for _, ref := range resp.Messages {
		msg, err := transport.Get(ctx, ref.Id, FormatFull)
		if err != nil {
			// A message can vanish between list and get; skip it.
			g.logger.Warn("failed to fetch listed message",
				logging.UserID(userID), logging.MessageID(ref.Id), logging.Err(err))
			continue
		}
		headers := HeaderMap(msg.Payload)
		summaries = append(summaries, &MessageSummary{
			ID:             msg.Id,
			ThreadID:       msg.ThreadId,
			From:           headers["from"],
			To:             headers["to"],
			Subject:        headers["subject"],
			Date:           headers["date"],
			Snippet:        msg.Snippet,
			HasAttachments: HasAttachments(msg.Payload, DefaultScanDepth),
		})
	}
	return summaries, resp.NextPageToken, nil
}
