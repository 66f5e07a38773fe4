package transport

import (
	"encoding/json"

	errs "github.com/vinayprograms/taskkit/errors"
)

// Request represents a JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response represents a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id,omitempty"`
	Result  interface{} `json:"result,omitempty"`
	Error   *Error      `json:"error,omitempty"`
}

// Error represents a JSON-RPC 2.0 error.
type Error struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return e.Message
}

// Standard error codes.
const (
	ParseError     = -32700
	InvalidRequest = -32600
	MethodNotFound = -32601
	InvalidParams  = -32602
	InternalError  = -32603
)

// Application error codes, in the JSON-RPC implementation-defined range.
const (
	TaskNotFound   = -32000
	StorageFailure = -32001
	Unavailable    = -32002
)

// Notification represents a JSON-RPC 2.0 notification (no ID).
type Notification struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

// MethodTaskUpdated is the notification sent to the peer whenever a
// task is created or changes status.
const MethodTaskUpdated = "task-updated"

// rpcError translates a service error into a JSON-RPC error, keeping
// the typed code as structured data so peers can branch on it.
func rpcError(err error) *Error {
	e := &Error{Message: err.Error()}
	switch errs.Code(err) {
	case errs.ErrCodeInvalidInput:
		e.Code = InvalidParams
	case errs.ErrCodeNotFound:
		e.Code = TaskNotFound
	case errs.ErrCodeStorageFailure:
		e.Code = StorageFailure
	case errs.ErrCodeTimeout, errs.ErrCodeUnavailable:
		e.Code = Unavailable
	default:
		e.Code = InternalError
	}
	if svcErr := errs.AsServiceError(err); svcErr != nil {
		e.Data = map[string]interface{}{
			"code":      string(svcErr.Code()),
			"retryable": svcErr.Retryable(),
		}
	}
	return e
}
