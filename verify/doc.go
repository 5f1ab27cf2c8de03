// Package verify implements the payment processor status lookup used by
// manual verification. It performs a bounded number of attempts with
// increasing backoff and a fixed per-attempt timeout, and never persists
// anything itself.
package verify
