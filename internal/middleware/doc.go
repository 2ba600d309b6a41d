// Package middleware provides the HTTP middleware chain: W3C Extended Log
// Format request logging with injection-safe field sanitization, and
// Prometheus request metrics with id segments collapsed to keep label
// cardinality bounded.
package middleware
