// Package errors provides the structured error taxonomy for taskkit.
// It defines the error codes and categories the task store, the stats
// tracker, and the dispatcher use to fail fast with typed errors that
// the transport surfaces can translate consistently.
//
// # Error Categories
//
// Errors are classified into three categories:
//
//   - Transient: Temporary failures where retry may succeed (storage timeouts, etc.)
//   - Permanent: Failures where retry will not help (invalid input, not found, etc.)
//   - Internal: Unexpected errors indicating bugs or system failures
//
// # Error Codes
//
// Each error has a specific code that identifies the type of failure:
//
//   - INVALID_INPUT: Malformed request (e.g. empty required field)
//   - NOT_FOUND: Referenced task does not exist
//   - STORAGE_FAILURE: The storage layer could not complete a mutation/read
//   - TIMEOUT, UNAVAILABLE, CANCELED, INTERNAL
//
// # Usage
//
// Create a new error:
//
//	err := errors.TaskNotFound(taskID)
//
// Wrap an existing error with context:
//
//	wrapped := errors.Wrap(err, "archiving task")
//
// Check the failure type when building a response envelope:
//
//	if errors.IsNotFound(err) {
//	    // success=false, task absent
//	}
//
// # JSON Serialization
//
// All errors support JSON serialization so the cross-host surface can
// propagate them between peers:
//
//	data, err := json.Marshal(svcErr)
package errors
