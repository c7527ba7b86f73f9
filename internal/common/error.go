package common

import (
	"errors"
	"fmt"
)

var (
	ErrAborted           = errors.New("operation aborted")
	ErrConnection        = errors.New("unable to connect")
	ErrRunAlreadyStarted = errors.New("download run has already started")
	ErrLinkNotFound      = errors.New("download link not found")
)

// ValidationError reports a malformed input or an invalid invocation state.
// It is never retried.
type ValidationError struct {
	Msg string
}

func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

func (e *ValidationError) Error() string {
	return "validation: " + e.Msg
}

type ErrorCode int

const (
	ESUCCESS         ErrorCode = 0
	EUNK             ErrorCode = -1
	ESESSIONTOKEN    ErrorCode = -2
	EUNKNOWNRESPONSE ErrorCode = -3
	EGENERIC         ErrorCode = -255
)

var errorDescriptions = map[ErrorCode][2]string{
	EUNK:             {"EUNK", "an internal error has occurred"},
	ESESSIONTOKEN:    {"ESESSIONTOKEN", "api returned an error envelope"},
	EUNKNOWNRESPONSE: {"EUNKNOWNRESPONSE", "api returned a non-object response"},
}

func (c ErrorCode) Name() string {
	if d, ok := errorDescriptions[c]; ok {
		return d[0]
	}

	return "EGENERIC"
}

func (c ErrorCode) String() string {
	return fmt.Sprintf("%s (%d)", c.Name(), int(c))
}

// RequestError is a coded API failure.
type RequestError struct {
	Code ErrorCode
	Msg  string
}

func NewRequestError(code ErrorCode) *RequestError {
	d, ok := errorDescriptions[code]
	if !ok {
		return &RequestError{Code: code, Msg: fmt.Sprintf("EGENERIC, unknown error '%d'", int(code))}
	}

	return &RequestError{Code: code, Msg: d[0] + ", " + d[1]}
}

func (e *RequestError) Error() string {
	return e.Msg
}

// IsGeneric reports whether err is the generic retryable EUNK kind.
func IsGeneric(err error) bool {
	var re *RequestError
	if errors.As(err, &re) {
		return re.Code == EUNK
	}

	return false
}
