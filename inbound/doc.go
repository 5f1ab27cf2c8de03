// Package inbound exposes the HTTP surface of the reconciler: webhook
// deliveries routed to registered processors, a health probe and an optional
// metrics endpoint.
package inbound
