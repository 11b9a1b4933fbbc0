// Package notify sends branded alert emails for the controller through the
// Resend HTTP API.
//
// The subject is HTML-escaped; the message is passed through a bluemonday
// UGC policy so basic markup survives and scripts do not. Provider failures
// are returned wrapped in ErrProviderRejected and are never retried.
package notify
