package remote

import (
	"context"
	"encoding/json"
	"time"

	"github.com/vinayprograms/taskkit/bus"
	errs "github.com/vinayprograms/taskkit/errors"
	"github.com/vinayprograms/taskkit/stats"
	"github.com/vinayprograms/taskkit/taskstore"
)

// Client is the caller-side stub for a task service reachable over the
// bus. Address resolution is the bus's concern; the client only names
// subjects.
type Client struct {
	bus     bus.MessageBus
	timeout time.Duration
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithTimeout sets the per-call timeout. Default: DefaultTimeout.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// NewClient creates a client over the given bus.
func NewClient(b bus.MessageBus, opts ...ClientOption) *Client {
	c := &Client{
		bus:     b,
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TasksByStatus asks a remote task service for all tasks in the given
// status.
func (c *Client) TasksByStatus(ctx context.Context, status taskstore.TaskStatus) ([]taskstore.Task, error) {
	data, err := json.Marshal(statusQuery{Status: status.String()})
	if err != nil {
		return nil, errs.Wrap(err, "encoding status query")
	}

	msg, err := c.request(ctx, SubjectTasksByStatus, data)
	if err != nil {
		return nil, err
	}

	var reply tasksReply
	if err := json.Unmarshal(msg.Data, &reply); err != nil {
		return nil, errs.Wrap(err, "decoding tasks reply")
	}
	if !reply.OK {
		return nil, replyError(reply.Error)
	}
	return reply.Tasks, nil
}

// Statistics asks a remote task service for its usage snapshot.
func (c *Client) Statistics(ctx context.Context) (stats.TaskManagerStats, error) {
	msg, err := c.request(ctx, SubjectStatistics, []byte("{}"))
	if err != nil {
		return stats.TaskManagerStats{}, err
	}

	var reply statsReply
	if err := json.Unmarshal(msg.Data, &reply); err != nil {
		return stats.TaskManagerStats{}, errs.Wrap(err, "decoding stats reply")
	}
	if !reply.OK || reply.Stats == nil {
		return stats.TaskManagerStats{}, replyError(reply.Error)
	}
	return *reply.Stats, nil
}

// request performs one bus round trip, translating transport failures
// into the service error taxonomy. A timed-out call mutates nothing on
// the remote side that the caller needs to unwind.
func (c *Client) request(ctx context.Context, subject string, data []byte) (*bus.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, errs.Wrap(err, "remote call")
	}

	timeout := c.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}

	msg, err := c.bus.Request(subject, data, timeout)
	switch err {
	case nil:
		return msg, nil
	case bus.ErrTimeout:
		return nil, errs.Timeout("remote task service did not reply")
	case bus.ErrNoResponders, bus.ErrClosed:
		return nil, errs.Unavailable("remote task service unreachable")
	default:
		return nil, errs.Wrap(err, "remote call")
	}
}

// replyError surfaces the peer's error, or a generic one if the peer
// sent a failure with no detail.
func replyError(e *errs.Error) error {
	if e != nil {
		return e
	}
	return errs.Internal("remote task service reported failure")
}
