// Package httpapi is the public surface of the task service.
//
// REST endpoints under /api expose the six task operations with the
// dispatcher's JSON envelopes; INVALID_INPUT maps to 400, NOT_FOUND to
// 404. /ws/tasks upgrades to a WebSocket update stream: a client
// subscribes with {"subscribe":{"client_id":...}}, receives the current
// task list, then hears every created or status-changed task until it
// unsubscribes or disconnects.
package httpapi
