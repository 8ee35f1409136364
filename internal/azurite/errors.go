package azurite

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
)

// Kind classifies facade failures.
type Kind int

const (
	// KindUnknown is returned by KindOf for errors not produced by this package.
	KindUnknown Kind = iota
	// KindContainerNotFound is reserved; no operation produces it yet.
	KindContainerNotFound
	// KindBlobNotFound is reserved; no operation produces it yet.
	KindBlobNotFound
	// KindUnauthorized is reserved; auth failures currently surface as KindInternal.
	KindUnauthorized
	// KindInternal covers backend, transport and local I/O failures.
	KindInternal
	// KindRuntimeCreationFailed is only returned by New.
	KindRuntimeCreationFailed
	// KindInvalidParameter reports a malformed endpoint URL.
	KindInvalidParameter
)

func (k Kind) String() string {
	switch k {
	case KindContainerNotFound:
		return "ContainerNotFound"
	case KindBlobNotFound:
		return "BlobNotFound"
	case KindUnauthorized:
		return "Unauthorized"
	case KindInternal:
		return "InternalError"
	case KindRuntimeCreationFailed:
		return "RuntimeCreationFailed"
	case KindInvalidParameter:
		return "InvalidParameter"
	default:
		return "Unknown"
	}
}

// Error is the single error type returned by Storage.
type Error struct {
	Kind   Kind
	Detail string
	Err    error
}

// Sentinels for errors.Is. They match any *Error of the same kind.
var (
	ErrContainerNotFound     = &Error{Kind: KindContainerNotFound}
	ErrBlobNotFound          = &Error{Kind: KindBlobNotFound}
	ErrUnauthorized          = &Error{Kind: KindUnauthorized}
	ErrInternal              = &Error{Kind: KindInternal}
	ErrRuntimeCreationFailed = &Error{Kind: KindRuntimeCreationFailed}
	ErrInvalidParameter      = &Error{Kind: KindInvalidParameter}
)

func (e *Error) Error() string {
	switch e.Kind {
	case KindContainerNotFound:
		return fmt.Sprintf("container '%s' not found", e.Detail)
	case KindBlobNotFound:
		return fmt.Sprintf("blob '%s' not found", e.Detail)
	case KindUnauthorized:
		return "unauthorized access"
	case KindInternal:
		return "internal error: " + e.Detail
	case KindRuntimeCreationFailed:
		if e.Detail != "" {
			return "failed to create execution context: " + e.Detail
		}
		return "failed to create execution context"
	case KindInvalidParameter:
		return "invalid parameter: " + e.Detail
	default:
		return e.Detail
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports kind equality so callers can test against the sentinels.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func invalidParameter(value string) *Error {
	return &Error{Kind: KindInvalidParameter, Detail: value}
}

// internalf wraps cause as KindInternal. The detail is the formatted prefix
// followed by a compact description of cause.
func internalf(cause error, format string, args ...any) *Error {
	return &Error{
		Kind:   KindInternal,
		Detail: fmt.Sprintf(format, args...) + ": " + describe(cause),
		Err:    cause,
	}
}

// describe shortens azcore response errors, whose Error() spans many lines,
// to status and service error code.
func describe(err error) string {
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		code := respErr.ErrorCode
		if code == "" {
			code = http.StatusText(respErr.StatusCode)
		}
		return fmt.Sprintf("%d %s", respErr.StatusCode, code)
	}
	return err.Error()
}
