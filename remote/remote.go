package remote

import (
	"errors"
	"time"

	errs "github.com/vinayprograms/taskkit/errors"
	"github.com/vinayprograms/taskkit/stats"
	"github.com/vinayprograms/taskkit/taskstore"
)

// Bus subjects for the cross-host surface. A deployment that runs
// several task services on one bus should prefix these per service.
const (
	// SubjectTasksByStatus serves get-tasks-by-status for remote callers.
	SubjectTasksByStatus = "taskkit.tasks.by-status"

	// SubjectStatistics serves get-statistics for remote callers.
	SubjectStatistics = "taskkit.stats"

	// SubjectStorageAdd is where a storage peer accepts tasks to archive.
	SubjectStorageAdd = "taskkit.storage.add"

	// SubjectStorageByStatus is where a storage peer answers queries
	// over its archived tasks.
	SubjectStorageByStatus = "taskkit.storage.by-status"

	// DefaultQueue is the queue group responder replicas share.
	DefaultQueue = "taskkit-responders"

	// DefaultTimeout bounds a remote call when the caller sets none.
	DefaultTimeout = 5 * time.Second
)

// statusQuery is the wire request for by-status queries.
type statusQuery struct {
	Status string `json:"status"`
}

// tasksReply is the wire reply for task list queries.
type tasksReply struct {
	OK    bool             `json:"ok"`
	Error *errs.Error      `json:"error,omitempty"`
	Tasks []taskstore.Task `json:"tasks,omitempty"`
}

// statsReply is the wire reply for statistics queries.
type statsReply struct {
	OK    bool                    `json:"ok"`
	Error *errs.Error             `json:"error,omitempty"`
	Stats *stats.TaskManagerStats `json:"stats,omitempty"`
}

// ackReply is the wire reply for storage writes.
type ackReply struct {
	OK    bool        `json:"ok"`
	Error *errs.Error `json:"error,omitempty"`
}

// wireError converts any error into the envelope form, preserving a
// ServiceError's code when there is one.
func wireError(err error) *errs.Error {
	if err == nil {
		return nil
	}
	var svcErr *errs.Error
	if errors.As(err, &svcErr) {
		return svcErr
	}
	return errs.Internal(err.Error())
}
