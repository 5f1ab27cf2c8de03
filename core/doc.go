// Package core contains the order reconciliation domain: orders, payment
// events, verification checks and audit entries, the status mapper shared by
// every ingestion path, the delivery gate, and the Service that serializes
// read-decide-write sequences through a WriteGate and a store transaction.
// Transport, persistence and remote clients live in adapter packages that
// depend on core; core must not depend on them.
package core
