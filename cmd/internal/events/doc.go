// Package events publishes account lifecycle events to Kafka.
//
// Publishing is strictly best-effort: a broker outage must never fail the
// request that produced the event. Callers log publish errors and move on.
package events
