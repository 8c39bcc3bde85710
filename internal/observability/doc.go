// Package observability provides event logging, review metrics and alerting
// for the review dashboard. Events are persisted as JSON Lines (JSONL) and
// metrics are derived on demand from the event log.
package observability
