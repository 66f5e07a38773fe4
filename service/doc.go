// Package service is the dispatcher between the transport surfaces and
// the core. It maps the six task operations onto the task store and the
// stats tracker, counts every inbound request, and wraps single-task
// results in the uniform TaskResponse envelope.
//
// Transport surfaces (HTTP, same-host JSON-RPC, cross-host bus) hold a
// *Service and translate wire requests into its methods; they never
// touch the store directly and never see raw typed errors for the
// envelope-returning operations.
//
// Optional hooks:
//
//   - Notifier: receives every created/updated task for real-time
//     broadcast (the WebSocket hub implements this).
//   - Archiver: forwards tasks to a remote storage peer; its outcome is
//     reported in the envelope's storage_status field, independent of
//     the operation's own success.
package service
