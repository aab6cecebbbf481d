package instrumentation

import (
	"context"
	"testing"
	"time"
)

func newTestProvider(t *testing.T, ctx context.Context) *Provider {
	t.Helper()
	provider, err := NewProvider(ctx, Config{
		ServiceName:     "test-service",
		ServiceVersion:  "1.0.0",
		Enabled:         true,
		MetricsExporter: ExporterPrometheus,
		TracingExporter: ExporterNone,
	})
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}
	t.Cleanup(func() { _ = provider.Shutdown(ctx) })
	return provider
}

func TestMetrics_RecordSend(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	metrics := newTestProvider(t, ctx).Metrics()
	if metrics == nil {
		t.Fatal("expected metrics to be non-nil")
	}

	// Should not panic
	metrics.RecordSend(ctx, SendResultSent)
	metrics.RecordSend(ctx, SendResultFailed)
	metrics.RecordSendDuration(ctx, SendResultSent, "example.com", 150*time.Millisecond)
}

func TestMetrics_RecordGmailOperation(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	metrics := newTestProvider(t, ctx).Metrics()

	// Should not panic
	metrics.RecordGmailOperation(ctx, OperationSend, StatusSuccess, 200*time.Millisecond)
	metrics.RecordGmailOperation(ctx, OperationList, StatusError, 500*time.Millisecond)
	metrics.RecordGmailOperation(ctx, OperationGet, StatusSuccess, 100*time.Millisecond)
}

func TestMetrics_RecordOAuth(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	metrics := newTestProvider(t, ctx).Metrics()

	// Should not panic
	metrics.RecordOAuthAuth(ctx, OAuthResultSuccess)
	metrics.RecordOAuthAuth(ctx, OAuthResultFailure)
	metrics.RecordTokenRefresh(ctx, RefreshResultValid)
	metrics.RecordTokenRefresh(ctx, RefreshResultRefreshed)
	metrics.RecordTokenRefresh(ctx, RefreshResultTerminal)
	metrics.RecordTokenRefresh(ctx, RefreshResultTransient)
}

func TestMetrics_RecordBulkAndCampaign(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	metrics := newTestProvider(t, ctx).Metrics()

	// Should not panic
	metrics.RecordBulkRecipient(ctx, SendResultSent)
	metrics.RecordBulkRecipient(ctx, SendResultFailed)
	metrics.RecordCampaignRun(ctx, "completed")
	metrics.RecordCampaignRun(ctx, "cancelled")
}

func TestMetrics_UninitializedIsNoop(t *testing.T) {
	ctx := context.Background()
	m := &Metrics{}

	// All recorders must tolerate an uninitialized instance.
	m.RecordSend(ctx, SendResultSent)
	m.RecordSendDuration(ctx, SendResultSent, "example.com", time.Second)
	m.RecordBulkRecipient(ctx, SendResultSent)
	m.RecordCampaignRun(ctx, "completed")
	m.RecordGmailOperation(ctx, OperationSend, StatusSuccess, time.Second)
	m.RecordOAuthAuth(ctx, OAuthResultSuccess)
	m.RecordTokenRefresh(ctx, RefreshResultValid)
}
