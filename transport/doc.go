// Package transport provides the bounded HTTP client used by the verification
// client and the webhook notifier.
package transport
