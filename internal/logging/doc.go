// Package logging provides slog helpers shared across the codebase:
// handler setup, common attribute keys, and PII-safe formatting of
// email addresses and OAuth tokens.
package logging
