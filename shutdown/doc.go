// Package shutdown coordinates graceful service shutdown in phases:
// transport surfaces first, then the bus connection, then the store.
// Handlers within a phase stop concurrently; failures are collected
// but never stop later phases from running.
package shutdown
