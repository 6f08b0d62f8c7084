package errors

import "fmt"

// NewResourceNotFoundError returns a new ErrNotFound error with kind
// KindResourceNotFound and the given message.
func NewResourceNotFoundError(message string, details Details) error {
	return Error{
		Code:    ErrNotFound,
		Kind:    KindResourceNotFound,
		Message: message,
		Details: details,
	}
}

// NewElementNotFoundError returns an ErrInternal error with kind
// KindElementNotFound. It signals a lookup for an element that is expected to
// always exist and therefore a caller bug.
func NewElementNotFoundError(element string, details Details) error {
	return Error{
		Code:    ErrInternal,
		Kind:    KindElementNotFound,
		Message: fmt.Sprintf("element not found: %s", element),
		Details: details,
	}
}

// NewInternalError returns an ErrInternal error with the given message.
func NewInternalError(message string, details Details) error {
	return Error{
		Code:    ErrInternal,
		Message: message,
		Details: details,
	}
}

// NewInternalErrorFromErr returns an ErrInternal error wrapping the given one.
func NewInternalErrorFromErr(err error, message string, details Details) error {
	return Error{
		Code:    ErrInternal,
		Err:     err,
		Message: message,
		Details: details,
	}
}

// NewBadRequestError returns an ErrBadRequest error with the given kind.
func NewBadRequestError(kind Kind, message string, details Details) error {
	return Error{
		Code:    ErrBadRequest,
		Kind:    kind,
		Message: message,
		Details: details,
	}
}

// NewTurnViolationError is used when an actor performs an operation although
// it is not his turn.
func NewTurnViolationError(message string, details Details) error {
	return NewBadRequestError(KindTurnViolation, message, details)
}

// NewMatchPhaseViolationError is used when an operation is not allowed in the
// current match phase.
func NewMatchPhaseViolationError(operation string, currentPhase interface{}) error {
	return Error{
		Code:    ErrBadRequest,
		Kind:    KindMatchPhaseViolation,
		Message: fmt.Sprintf("%s not allowed in phase %v", operation, currentPhase),
		Details: Details{"phase": currentPhase},
	}
}

// NewContextAbortedError is used when an operation was aborted because of a
// done context.Context.
func NewContextAbortedError(currentOperation string) error {
	return Error{
		Code:    ErrAborted,
		Kind:    KindContextAborted,
		Message: fmt.Sprintf("context aborted while %s", currentOperation),
	}
}

// NewQueryToSQLError is used when building a query with goqu fails.
func NewQueryToSQLError(err error, details Details) error {
	return Error{
		Code:    ErrInternal,
		Kind:    KindDBQuery,
		Err:     err,
		Message: "query to sql",
		Details: details,
	}
}

// NewExecQueryError is used when executing a query fails.
func NewExecQueryError(err error, message string, query string) error {
	return Error{
		Code:    ErrInternal,
		Kind:    KindDBQuery,
		Err:     err,
		Message: message,
		Details: Details{"query": query},
	}
}

// NewScanDBRowError is used when scanning a result row fails.
func NewScanDBRowError(err error, message string, query string) error {
	return Error{
		Code:    ErrInternal,
		Kind:    KindDBScan,
		Err:     err,
		Message: message,
		Details: Details{"query": query},
	}
}

// NewDBTxBeginError is used when beginning a transaction fails.
func NewDBTxBeginError(err error) error {
	return Error{
		Code:    ErrInternal,
		Kind:    KindDBTxBegin,
		Err:     err,
		Message: "begin tx",
	}
}

// NewDBTxCommitError is used when committing a transaction fails.
func NewDBTxCommitError(err error) error {
	return Error{
		Code:    ErrInternal,
		Kind:    KindDBTxCommit,
		Err:     err,
		Message: "commit tx",
	}
}
