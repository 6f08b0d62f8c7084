package errors

import (
	"encoding/json"
	nativeerrors "errors"
	"fmt"
	"go.uber.org/zap"
)

// Details holds additional error details that can be viewed and logged.
type Details map[string]interface{}

// Error is the general error type for appearing errors.
type Error struct {
	// Code is the error code.
	Code Code
	// Kind is an optional, more specific error kind.
	Kind Kind
	// Err is the original error that occurred.
	Err error
	// Message is the manually created message that can be used in order to trace the error.
	Message string
	// Details holds any error details.
	Details Details
}

func (e Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the original error.
func (e Error) Unwrap() error {
	return e.Err
}

// Cast casts the given error to Error. If the given one is not of type Error,
// an unknown one with error code ErrUnexpected is created and false returned.
func Cast(err error) (Error, bool) {
	var e Error
	if err != nil && nativeerrors.As(err, &e) {
		return e, true
	}
	var eRef *Error
	if err != nil && nativeerrors.As(err, &eRef) && eRef != nil {
		return *eRef, true
	}
	e = Error{
		Code:    ErrUnexpected,
		Err:     err,
		Message: "unknown operation",
		Details: make(Details),
	}
	return e, false
}

// Is checks whether the given error is an Error with the given Kind.
func Is(err error, kind Kind) bool {
	e, ok := Cast(err)
	return ok && e.Kind == kind
}

// Wrap prefixes the message of the given error and merges the details. Code
// and Kind are kept. Details already present are kept with an underscore prefix.
func Wrap(err error, message string, details Details) error {
	e, ok := Cast(err)
	if ok {
		message = message + ": " + e.Message
	}
	return Error{
		Code:    e.Code,
		Kind:    e.Kind,
		Err:     e.Err,
		Message: message,
		Details: mergeDetails(e.Details, details),
	}
}

// mergeDetails adds the entries of next to original.
func mergeDetails(original Details, next Details) Details {
	if len(next) == 0 {
		return original
	}
	merged := make(Details, len(original)+len(next))
	for k, v := range original {
		merged[k] = v
	}
	for k, v := range next {
		if previous, ok := merged[k]; ok {
			merged["_"+k] = previous
		}
		merged[k] = v
	}
	return merged
}

// userFault holds all codes that are caused by the user and not by us.
var userFault = map[Code]struct{}{
	ErrBadRequest:        {},
	ErrProtocolViolation: {},
	ErrNotFound:          {},
	ErrConflict:          {},
}

// fields returns the zap fields for logging the error.
func (e Error) fields() []zap.Field {
	fields := make([]zap.Field, 0, len(e.Details)+3)
	fields = append(fields, zap.Any("err_code", e.Code))
	if e.Kind != "" {
		fields = append(fields, zap.Any("err_kind", e.Kind))
	}
	for k, v := range e.Details {
		fields = append(fields, zap.String("err_details_v_"+k, fmt.Sprintf("%+v", v)))
	}
	if e.Err != nil {
		fields = append(fields, zap.String("err_orig", e.Err.Error()))
	}
	return fields
}

// Log the given error with its details. Errors blamed on the user are logged
// as warnings and ErrFatal as fatal.
func Log(logger *zap.Logger, err error) {
	if err == nil {
		return
	}
	e, _ := Cast(err)
	logger = logger.With(e.fields()...)
	switch {
	case e.Code == ErrFatal:
		logger.Fatal(e.Error())
	case BlameUser(e):
		logger.Warn(e.Error())
	default:
		logger.Error(e.Error())
	}
}

// Prettify returns a multi-line description of the error including details.
func Prettify(err error) string {
	e, _ := Cast(err)
	details := "{}"
	if e.Details != nil {
		if raw, jsonErr := json.Marshal(e.Details); jsonErr == nil {
			details = string(raw)
		} else {
			details = fmt.Sprintf("%+v", e.Details)
		}
	}
	return fmt.Sprintf("Code: %s\nKind: %s\nOriginal Error: %+v\nMessage: %s\nDetails: %s\n",
		e.Code, e.Kind, e.Err, e.Message, details)
}

// BlameUser reports whether the error was caused by bad input or a conflicting
// request.
func BlameUser(err error) bool {
	e, ok := Cast(err)
	if !ok {
		return false
	}
	_, blame := userFault[e.Code]
	return blame
}
