// Package transport is the same-host surface of the task service:
// JSON-RPC 2.0 over a line-framed byte stream, typically the stdio of a
// child process.
//
// Method names are the operation names (create-task, get-all-tasks,
// get-task, update-task-status, get-statistics, get-tasks-by-status)
// and carry the same JSON request and response shapes as the HTTP
// surface. Typed service errors map onto JSON-RPC error codes, with the
// original code and retry hint preserved in the error data.
//
// The Server also pushes task-updated notifications, so a local peer
// sees the same update stream WebSocket clients do.
package transport
