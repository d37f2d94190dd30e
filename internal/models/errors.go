package models

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when an accession or task id does not exist
var ErrNotFound = errors.New("not found")

// InvalidQueryError reports a query parse failure or a restricted field.
// Surfaces as HTTP 400 with the parser message.
type InvalidQueryError struct {
	Message string
}

func (e *InvalidQueryError) Error() string {
	return e.Message
}

// NewInvalidQuery creates an InvalidQueryError with a formatted message
func NewInvalidQuery(format string, args ...interface{}) *InvalidQueryError {
	return &InvalidQueryError{Message: fmt.Sprintf(format, args...)}
}

// InvalidArgumentError reports invalid pagination or criteria combinations.
// Surfaces as HTTP 400.
type InvalidArgumentError struct {
	Message string
}

func (e *InvalidArgumentError) Error() string {
	return e.Message
}

// NewInvalidArgument creates an InvalidArgumentError with a formatted message
func NewInvalidArgument(format string, args ...interface{}) *InvalidArgumentError {
	return &InvalidArgumentError{Message: fmt.Sprintf(format, args...)}
}

// UnavailableError signals that the indexing pipeline is unavailable.
// Surfaces as HTTP 503 with the carried code.
type UnavailableError struct {
	Code    string
	Message string
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// ErrWebsocketClosed is the unavailable condition raised when the indexing
// status channel has been closed
var ErrWebsocketClosed = &UnavailableError{
	Code:    "WEBSOCKET_CLOSED",
	Message: "indexing service unavailable",
}

// SearchError wraps I/O, criteria and mapping failures inside the search
// pipeline. It never surfaces as a transport error; the response processor
// converts it to an empty-hits response.
type SearchError struct {
	Op  string
	Err error
}

func (e *SearchError) Error() string {
	return fmt.Sprintf("search %s failed: %v", e.Op, e.Err)
}

func (e *SearchError) Unwrap() error {
	return e.Err
}

// NewSearchError wraps err with the failing operation name
func NewSearchError(op string, err error) *SearchError {
	return &SearchError{Op: op, Err: err}
}
