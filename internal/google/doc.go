// Package google handles the Google OAuth credential lifecycle: the
// initial auth-code exchange, keeping stored access tokens fresh, and
// producing authorized HTTP clients for the Gmail API.
package google
