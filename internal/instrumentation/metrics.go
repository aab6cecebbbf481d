package instrumentation

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric attribute keys.
const (
	attrOperation = "operation"
	attrStatus    = "status"
	attrResult    = "result"
	attrDomain    = "recipient_domain"
)

// Metrics provides methods for recording observability metrics.
type Metrics struct {
	// Email delivery metrics
	emailsSentTotal     metric.Int64Counter
	emailSendDuration   metric.Float64Histogram
	bulkRecipientsTotal metric.Int64Counter
	campaignRunsTotal   metric.Int64Counter

	// Gmail API metrics
	gmailOperationsTotal   metric.Int64Counter
	gmailOperationDuration metric.Float64Histogram

	// OAuth metrics
	oauthAuthTotal         metric.Int64Counter
	oauthTokenRefreshTotal metric.Int64Counter

	// detailedLabels controls whether high-cardinality labels are included
	detailedLabels bool
}

// NewMetrics creates a new Metrics instance with all metrics initialized.
// The detailedLabels parameter controls whether high-cardinality labels
// (recipient domains) are included.
func NewMetrics(meter metric.Meter, detailedLabels bool) (*Metrics, error) {
	m := &Metrics{
		detailedLabels: detailedLabels,
	}

	var err error

	m.emailsSentTotal, err = meter.Int64Counter(
		"emails_sent_total",
		metric.WithDescription("Total number of email send attempts"),
		metric.WithUnit("{email}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create emails_sent_total counter: %w", err)
	}

	m.emailSendDuration, err = meter.Float64Histogram(
		"email_send_duration_seconds",
		metric.WithDescription("Email send duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create email_send_duration_seconds histogram: %w", err)
	}

	m.bulkRecipientsTotal, err = meter.Int64Counter(
		"bulk_recipients_total",
		metric.WithDescription("Total number of bulk-send recipients processed"),
		metric.WithUnit("{recipient}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create bulk_recipients_total counter: %w", err)
	}

	m.campaignRunsTotal, err = meter.Int64Counter(
		"campaign_runs_total",
		metric.WithDescription("Total number of finished campaign runs"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create campaign_runs_total counter: %w", err)
	}

	m.gmailOperationsTotal, err = meter.Int64Counter(
		"gmail_api_operations_total",
		metric.WithDescription("Total number of Gmail API operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create gmail_api_operations_total counter: %w", err)
	}

	m.gmailOperationDuration, err = meter.Float64Histogram(
		"gmail_api_operation_duration_seconds",
		metric.WithDescription("Gmail API operation duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create gmail_api_operation_duration_seconds histogram: %w", err)
	}

	m.oauthAuthTotal, err = meter.Int64Counter(
		"oauth_auth_total",
		metric.WithDescription("Total number of OAuth authorization-code exchanges"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create oauth_auth_total counter: %w", err)
	}

	m.oauthTokenRefreshTotal, err = meter.Int64Counter(
		"oauth_token_refresh_total",
		metric.WithDescription("Total number of OAuth token refresh attempts"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create oauth_token_refresh_total counter: %w", err)
	}

	return m, nil
}

// RecordSend records one email send attempt.
// Result should be one of: "sent", "failed".
func (m *Metrics) RecordSend(ctx context.Context, result string) {
	if m.emailsSentTotal == nil {
		return // Instrumentation not initialized
	}

	m.emailsSentTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrResult, result),
	))
}

// RecordSendDuration records how long a send attempt took.
// When detailed labels are enabled, the recipient's domain is attached.
func (m *Metrics) RecordSendDuration(ctx context.Context, result, recipientDomain string, duration time.Duration) {
	if m.emailSendDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrResult, result),
	}
	if m.detailedLabels && recipientDomain != "" {
		attrs = append(attrs, attribute.String(attrDomain, recipientDomain))
	}
	m.emailSendDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordBulkRecipient records one processed bulk-send recipient.
// Result should be one of: "sent", "failed".
func (m *Metrics) RecordBulkRecipient(ctx context.Context, result string) {
	if m.bulkRecipientsTotal == nil {
		return
	}

	m.bulkRecipientsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrResult, result),
	))
}

// RecordCampaignRun records a finished campaign run with its terminal
// status (completed or cancelled).
func (m *Metrics) RecordCampaignRun(ctx context.Context, status string) {
	if m.campaignRunsTotal == nil {
		return
	}

	m.campaignRunsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrStatus, status),
	))
}

// RecordGmailOperation records a Gmail API operation.
//
// Parameters:
//   - operation: Operation type (send, get, list, attachment)
//   - status: Result status ("success" or "error")
//   - duration: Time taken for the operation
func (m *Metrics) RecordGmailOperation(ctx context.Context, operation, status string, duration time.Duration) {
	if m.gmailOperationsTotal == nil || m.gmailOperationDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrOperation, operation),
		attribute.String(attrStatus, status),
	}

	m.gmailOperationsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.gmailOperationDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordOAuthAuth records an authorization-code exchange with result.
// Result should be one of: "success", "failure".
func (m *Metrics) RecordOAuthAuth(ctx context.Context, result string) {
	if m.oauthAuthTotal == nil {
		return
	}

	m.oauthAuthTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrResult, result),
	))
}

// RecordTokenRefresh records an OAuth token refresh attempt with result.
// Result should be one of: "valid", "refreshed", "failed_terminal",
// "failed_transient".
func (m *Metrics) RecordTokenRefresh(ctx context.Context, result string) {
	if m.oauthTokenRefreshTotal == nil {
		return
	}

	m.oauthTokenRefreshTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrResult, result),
	))
}
