package service

import (
	errs "github.com/vinayprograms/taskkit/errors"
	"github.com/vinayprograms/taskkit/taskstore"
)

// NewTaskRequest is the create-task input.
type NewTaskRequest struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	AssignedTo  *string `json:"assigned_to,omitempty"`
}

// TaskStatusUpdateRequest is the update-task-status input.
type TaskStatusUpdateRequest struct {
	TaskID    string `json:"task_id"`
	NewStatus string `json:"new_status"`
}

// TaskResponse is the uniform envelope for single-task operations.
//
// Success reports whether the operation succeeded semantically.
// StorageStatus reports, independently, whether the storage step
// (in-memory mutation plus optional remote archival) completed, so a
// caller can tell "the request was invalid" apart from "the request was
// fine but storage failed". Task is present only when a single task is
// the natural result; Message is a human-readable diagnostic, empty on
// success.
type TaskResponse struct {
	Success       bool            `json:"success"`
	Task          *taskstore.Task `json:"task,omitempty"`
	StorageStatus bool            `json:"storage_status"`
	Message       string          `json:"message"`

	// code carries the typed error code behind a failure. It stays off
	// the wire; surfaces use it to pick their own status codes without
	// re-validating inputs.
	code errs.ErrorCode
}

// ErrorCode returns the typed code behind a failed envelope, or the
// empty code on success.
func (r TaskResponse) ErrorCode() errs.ErrorCode {
	return r.code
}

// successResponse builds an envelope around a task result.
func successResponse(task taskstore.Task, storageOK bool) TaskResponse {
	t := task.Clone()
	return TaskResponse{
		Success:       true,
		Task:          &t,
		StorageStatus: storageOK,
		Message:       "",
	}
}

// failureResponse builds an envelope for a failed operation.
// The task field stays absent: callers never receive placeholder tasks.
func failureResponse(err error, storageOK bool) TaskResponse {
	return TaskResponse{
		Success:       false,
		StorageStatus: storageOK,
		Message:       err.Error(),
		code:          errs.Code(err),
	}
}
