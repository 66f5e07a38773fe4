// Package bus provides message bus clients for task service peers.
//
// The MessageBus interface enables pub/sub and request/reply patterns
// over NATS (cross-host) or in-memory channels (tests, single-process
// wiring). The remote package builds the cross-host query surface and
// the storage archiver on top of it.
//
// All implementations use channel-based subscription APIs and drop
// messages for slow subscribers instead of blocking publishers.
package bus
