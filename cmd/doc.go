// Package cmd implements the command-line interface for leadmail.
//
// This package provides the following commands:
//   - connect: Link a Google account via OAuth2 and store its tokens
//   - status: Show the connection state of a linked account
//   - send: Send a single email through the linked Gmail account
//   - bulk-send: Send a personalized email to a list of leads
//   - campaign: Create, run, cancel and inspect bulk campaigns
//   - leads: Manage CRM lead records
//   - emails: List and fetch mailbox messages
//   - logs: Query the send log
//   - version: Display version information
package cmd
