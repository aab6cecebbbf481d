package instrumentation

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// SendAudit captures everything about one email send attempt for audit
// logging.
//
// # Privacy Considerations
//
// SenderEmail and RecipientEmail contain PII. When logging, consider:
//   - Using the Domain methods for metrics and general logs
//   - Only logging full addresses in audit-specific log streams
//   - Ensuring audit logs have appropriate access controls
type SendAudit struct {
	// Sender identity
	UserID      string
	SenderEmail string

	// Recipient and CRM linkage
	RecipientEmail string
	LeadID         string
	CampaignID     string

	// Outcome
	MessageID string
	Subject   string
	StartTime time.Time
	Duration  time.Duration
	Success   bool
	Error     string

	// Tracing context
	TraceID string
	SpanID  string
}

// SenderDomain returns the sender's email domain for lower-cardinality logging.
func (a *SendAudit) SenderDomain() string {
	return ExtractUserDomain(a.SenderEmail)
}

// RecipientDomain returns the recipient's email domain for lower-cardinality logging.
func (a *SendAudit) RecipientDomain() string {
	return ExtractUserDomain(a.RecipientEmail)
}

// Status returns "sent" or "failed" based on the Success field.
func (a *SendAudit) Status() string {
	if a.Success {
		return SendResultSent
	}
	return SendResultFailed
}

// LogAttrs returns slog attributes with cardinality-controlled values
// (domains instead of full addresses). For full audit logging, use
// LogAuditAttrs.
func (a *SendAudit) LogAttrs() []slog.Attr {
	attrs := []slog.Attr{
		slog.String("user_id", a.UserID),
		slog.String("sender_domain", a.SenderDomain()),
		slog.String("recipient_domain", a.RecipientDomain()),
		slog.String("status", a.Status()),
		slog.Duration("duration", a.Duration),
	}

	if a.LeadID != "" {
		attrs = append(attrs, slog.String("lead_id", a.LeadID))
	}
	if a.CampaignID != "" {
		attrs = append(attrs, slog.String("campaign_id", a.CampaignID))
	}
	if a.MessageID != "" {
		attrs = append(attrs, slog.String("message_id", a.MessageID))
	}
	if a.TraceID != "" {
		attrs = append(attrs, slog.String("trace_id", a.TraceID))
	}
	if a.Error != "" {
		attrs = append(attrs, slog.String("error", a.Error))
	}

	return attrs
}

// LogAuditAttrs returns slog attributes for full audit logging,
// including complete email addresses.
//
// # Security Warning
//
// This method includes PII. Ensure audit logs are stored securely, kept
// off general monitoring dashboards, and retained per compliance
// requirements.
func (a *SendAudit) LogAuditAttrs() []slog.Attr {
	attrs := []slog.Attr{
		slog.String("user_id", a.UserID),
		slog.String("sender", a.SenderEmail),
		slog.String("recipient", a.RecipientEmail),
		slog.String("subject", a.Subject),
		slog.String("status", a.Status()),
		slog.Duration("duration", a.Duration),
	}

	if a.LeadID != "" {
		attrs = append(attrs, slog.String("lead_id", a.LeadID))
	}
	if a.CampaignID != "" {
		attrs = append(attrs, slog.String("campaign_id", a.CampaignID))
	}
	if a.MessageID != "" {
		attrs = append(attrs, slog.String("message_id", a.MessageID))
	}
	if a.TraceID != "" {
		attrs = append(attrs, slog.String("trace_id", a.TraceID))
	}
	if a.SpanID != "" {
		attrs = append(attrs, slog.String("span_id", a.SpanID))
	}
	if a.Error != "" {
		attrs = append(attrs, slog.String("error", a.Error))
	}

	return attrs
}

// NewSendAudit creates a SendAudit with timing started.
// Call Complete() when the send finishes.
func NewSendAudit(userID, recipient string) *SendAudit {
	return &SendAudit{
		UserID:         userID,
		RecipientEmail: recipient,
		StartTime:      time.Now(),
	}
}

// WithSender sets the sender's email address.
func (a *SendAudit) WithSender(email string) *SendAudit {
	a.SenderEmail = email
	return a
}

// WithLead links the send to a CRM lead.
func (a *SendAudit) WithLead(leadID string) *SendAudit {
	a.LeadID = leadID
	return a
}

// WithCampaign links the send to a campaign run.
func (a *SendAudit) WithCampaign(campaignID string) *SendAudit {
	a.CampaignID = campaignID
	return a
}

// WithSubject sets the message subject.
func (a *SendAudit) WithSubject(subject string) *SendAudit {
	a.Subject = subject
	return a
}

// WithSpanContext extracts trace context from the current span.
func (a *SendAudit) WithSpanContext(ctx context.Context) *SendAudit {
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		a.TraceID = span.SpanContext().TraceID().String()
		a.SpanID = span.SpanContext().SpanID().String()
	}
	return a
}

// Complete marks the send as finished and calculates the duration.
func (a *SendAudit) Complete(messageID string, err error) *SendAudit {
	a.Duration = time.Since(a.StartTime)
	a.MessageID = messageID
	a.Success = err == nil
	if err != nil {
		a.Error = err.Error()
	}
	return a
}

// AuditLogger provides structured audit logging for email sends.
type AuditLogger struct {
	logger     *slog.Logger
	includePII bool
	enabled    bool
}

// NewAuditLogger creates an AuditLogger. By default PII is not included
// (domain-based identifiers are used instead).
func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditLogger{
		logger:  logger,
		enabled: true,
	}
}

// NewAuditLoggerWithConfig creates an AuditLogger with the given configuration.
func NewAuditLoggerWithConfig(logger *slog.Logger, config AuditLoggingConfig) *AuditLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditLogger{
		logger:     logger,
		includePII: config.IncludePII,
		enabled:    config.Enabled,
	}
}

// SetIncludePII sets whether full email addresses appear in audit logs.
func (al *AuditLogger) SetIncludePII(include bool) {
	al.includePII = include
}

// SetEnabled sets whether audit logging is enabled.
func (al *AuditLogger) SetEnabled(enabled bool) {
	al.enabled = enabled
}

// LogSend logs one send attempt. With IncludePII configured, full
// addresses are logged; otherwise only domains.
func (al *AuditLogger) LogSend(a *SendAudit) {
	if !al.enabled {
		return
	}

	var attrs []slog.Attr
	if al.includePII {
		attrs = a.LogAuditAttrs()
	} else {
		attrs = a.LogAttrs()
	}

	args := make([]any, len(attrs))
	for i, attr := range attrs {
		args[i] = attr
	}

	if a.Success {
		al.logger.Info("email_sent", args...)
	} else {
		al.logger.Warn("email_send_failed", args...)
	}
}
