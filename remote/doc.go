// Package remote is the cross-host surface of the task service.
//
// It rides the bus package with request/reply:
//
//   - Server answers get-tasks-by-status and get-statistics queries
//     from peers on other hosts; replicas share a queue group.
//   - Client is the caller-side stub. Transport failures come back as
//     typed service errors (TIMEOUT, UNAVAILABLE), never raw bus errors.
//   - StorageClient forwards created/updated tasks to a task-storage
//     peer; the dispatcher reports its outcome as storage_status.
//   - StorageServer is that peer: an upsert-by-ID archive answering
//     by-status queries, e.g. to reload tasks at service startup.
//
// Which bus backs it (NATS across hosts, memory within a process) is
// decided at composition time and invisible here.
package remote
