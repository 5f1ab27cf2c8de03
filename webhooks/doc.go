// Package webhooks verifies and decodes payment processor webhook deliveries
// and hands the resulting payment signals to the reconciliation service.
//
// Processing follows a fixed ladder: signature check (401), payload decode
// (400), ingestion (500 on failure), acknowledgement (200).
package webhooks
