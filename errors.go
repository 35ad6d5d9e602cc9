package kfs

import (
	"errors"
	"fmt"
)

// ErrorCode identifies the kind of failure reported by the namespace, the
// storage layer or a session.
type ErrorCode int

const (
	// ErrInvalidName indicates a name failed the length or character whitelist.
	ErrInvalidName ErrorCode = iota + 1

	// ErrNotADirectory indicates a child was added to a File node.
	ErrNotADirectory

	// ErrNameConflict indicates a sibling with the same name already exists.
	ErrNameConflict

	// ErrNotFound indicates a path or child lookup miss.
	ErrNotFound

	// ErrWrongNodeType indicates an operation targeted the wrong kind of node
	// (e.g. writing a Directory or cd-ing into a File).
	ErrWrongNodeType

	// ErrResourceExhausted indicates a fixed limit was reached (root count,
	// handle IDs).
	ErrResourceExhausted

	// ErrAllocationFailure indicates storage could not be allocated. The
	// operation that requested it is aborted.
	ErrAllocationFailure

	// ErrInvalidArgument indicates a malformed argument.
	ErrInvalidArgument

	// ErrStaleHandle indicates use of a closed handle, a freed chain or a
	// deleted node.
	ErrStaleHandle

	// ErrNoRoot indicates no root is selected in the session.
	ErrNoRoot
)

// String returns a human-readable name for the error code.
func (e ErrorCode) String() string {
	switch e {
	case ErrInvalidName:
		return "InvalidName"
	case ErrNotADirectory:
		return "NotADirectory"
	case ErrNameConflict:
		return "NameConflict"
	case ErrNotFound:
		return "NotFound"
	case ErrWrongNodeType:
		return "WrongNodeType"
	case ErrResourceExhausted:
		return "ResourceExhausted"
	case ErrAllocationFailure:
		return "AllocationFailure"
	case ErrInvalidArgument:
		return "InvalidArgument"
	case ErrStaleHandle:
		return "StaleHandle"
	case ErrNoRoot:
		return "NoRoot"
	default:
		return fmt.Sprintf("Unknown(%d)", e)
	}
}

// Error is the typed error returned by every kfs package.
type Error struct {
	Code    ErrorCode
	Message string
	Path    string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s (path: %s)", e.Code, e.Message, e.Path)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// CodeOf returns the code of the first *Error in err's chain, or 0 if there
// is none.
func CodeOf(err error) ErrorCode {
	var kerr *Error
	if errors.As(err, &kerr) {
		return kerr.Code
	}
	return 0
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}

func NewInvalidNameError(name, reason string) *Error {
	return &Error{
		Code:    ErrInvalidName,
		Message: fmt.Sprintf("invalid name %q: %s", name, reason),
	}
}

func NewNotADirectoryError(path string) *Error {
	return &Error{
		Code:    ErrNotADirectory,
		Message: "can't add a child to a file node",
		Path:    path,
	}
}

func NewNameConflictError(name string) *Error {
	return &Error{
		Code:    ErrNameConflict,
		Message: fmt.Sprintf("%q already exists", name),
	}
}

func NewNotFoundError(path string) *Error {
	return &Error{
		Code:    ErrNotFound,
		Message: "no such file or directory",
		Path:    path,
	}
}

// NewWrongNodeTypeError reports that the node at path is not of the wanted kind.
func NewWrongNodeTypeError(path string, want NodeKind) *Error {
	return &Error{
		Code:    ErrWrongNodeType,
		Message: fmt.Sprintf("not a %s", want),
		Path:    path,
	}
}

func NewResourceExhaustedError(message string) *Error {
	return &Error{
		Code:    ErrResourceExhausted,
		Message: message,
	}
}

func NewAllocationFailureError(requested, available int) *Error {
	return &Error{
		Code:    ErrAllocationFailure,
		Message: fmt.Sprintf("cannot allocate %d bytes (%d available)", requested, available),
	}
}

func NewInvalidArgumentError(message string) *Error {
	return &Error{
		Code:    ErrInvalidArgument,
		Message: message,
	}
}

func NewStaleHandleError(message string) *Error {
	return &Error{
		Code:    ErrStaleHandle,
		Message: message,
	}
}

func NewNoRootError() *Error {
	return &Error{
		Code:    ErrNoRoot,
		Message: "no root node selected",
	}
}
