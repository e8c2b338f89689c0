package file

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is the closed set of failure outcomes the gateway can report.
type Kind int

const (
	KindClient Kind = iota + 1
	KindNotFound
	KindServer
)

func (k Kind) String() string {
	switch k {
	case KindClient:
		return "client_error"
	case KindNotFound:
		return "not_found"
	case KindServer:
		return "server_error"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Status is the HTTP status for k. Unknown kinds are server errors.
func (k Kind) Status() int {
	switch k {
	case KindClient:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

// Op names a gateway operation.
type Op string

const (
	OpUpload   Op = "upload"
	OpDownload Op = "download"
	OpDelete   Op = "delete"
)

// Error is a classified gateway failure. Message is safe to show clients;
// Err carries the underlying cause for logs only.
type Error struct {
	Kind    Kind
	Op      Op
	Key     string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %q: %s: %v", e.Op, e.Key, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s %q: %s: %s", e.Op, e.Key, e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Client-visible messages.
const (
	msgNoFile         = "No file uploaded"
	msgTooManyFiles   = "Exactly one file part is expected"
	msgFileTooLarge   = "File too large"
	msgBadMultipart   = "Invalid multipart body"
	msgKeyRequired    = "File key is required"
	msgNotFound       = "File not found"
	msgUploadFailed   = "Failed to upload file"
	msgDeleteFailed   = "Failed to delete file"
	msgInternalFailed = "internal server error"
)

func clientError(op Op, key, msg string) *Error {
	return &Error{Kind: KindClient, Op: op, Key: key, Message: msg}
}

// classify maps a store-side failure of op onto exactly one Kind.
//
// Download failures are all NotFound, whether the key is absent or the store
// is unreachable. Upload and delete failures are all ServerError, including a
// backend that reports a missing key on delete.
func classify(op Op, key string, err error) *Error {
	var gwErr *Error
	if errors.As(err, &gwErr) {
		return gwErr
	}
	switch op {
	case OpDownload:
		return &Error{Kind: KindNotFound, Op: op, Key: key, Message: msgNotFound, Err: err}
	case OpUpload:
		return &Error{Kind: KindServer, Op: op, Key: key, Message: msgUploadFailed, Err: err}
	case OpDelete:
		return &Error{Kind: KindServer, Op: op, Key: key, Message: msgDeleteFailed, Err: err}
	}
	return &Error{Kind: KindServer, Op: op, Key: key, Message: msgInternalFailed, Err: err}
}
