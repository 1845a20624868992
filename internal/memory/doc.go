// Package memory provides the shared coordination store agents use to
// exchange intermediate results and learned patterns. It is a namespaced,
// partitioned key-value store with optional per-entry TTL and regex key
// search. The store is process-wide but the interface is narrow enough
// that a networked backend could replace it without changing callers.
package memory
