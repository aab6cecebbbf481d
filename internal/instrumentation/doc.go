// Package instrumentation provides OpenTelemetry instrumentation for
// the leadmail services.
//
// # Metrics
//
// Email delivery:
//   - emails_sent_total: Counter of send attempts by result
//   - email_send_duration_seconds: Histogram of send durations
//   - bulk_recipients_total: Counter of bulk-send recipients by result
//   - campaign_runs_total: Counter of finished campaign runs by status
//
// Gmail API:
//   - gmail_api_operations_total: Counter of API operations by operation and status
//   - gmail_api_operation_duration_seconds: Histogram of API operation durations
//
// OAuth:
//   - oauth_auth_total: Counter of authorization-code exchanges by result
//   - oauth_token_refresh_total: Counter of token refresh attempts by result
//
// # Configuration
//
// Instrumentation is configured via environment variables:
//   - INSTRUMENTATION_ENABLED: Enable/disable instrumentation (default: true)
//   - METRICS_EXPORTER: Metrics exporter type (prometheus, otlp, stdout, default: prometheus)
//   - TRACING_EXPORTER: Tracing exporter type (otlp, stdout, none, default: none)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OTLP endpoint for traces/metrics
//   - OTEL_TRACES_SAMPLER_ARG: Sampling rate (0.0 to 1.0, default: 0.1)
//   - OTEL_SERVICE_NAME: Service name (default: leadmail)
//
// # Example Usage
//
//	provider, err := instrumentation.NewProvider(ctx, instrumentation.DefaultConfig())
//	if err != nil {
//		return err
//	}
//	defer provider.Shutdown(ctx)
//
//	recorder := provider.Metrics()
//	recorder.RecordSend(ctx, instrumentation.StatusSuccess)
//	recorder.RecordGmailOperation(ctx, instrumentation.OperationSend, instrumentation.StatusSuccess, time.Since(start))
package instrumentation
