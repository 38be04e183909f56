package ir

import (
	"errors"
	"fmt"
)

// Error is a rejected request. It is always detected before any state
// changes, so a caller that receives one can rely on the store, the
// capability table and the change-event stream being exactly as they were.
//
// Errors compare by Code under errors.Is, so callers match against the
// sentinels below regardless of Message:
//
//	if errors.Is(err, ir.ErrNotSender) { ... }
type Error struct {
	// Code identifies the rejection.
	Code ErrorCode

	// Kind groups codes by how a caller should react.
	Kind ErrorKind

	// Message is a human-readable description.
	Message string
}

// ErrorCode identifies a specific rejection.
type ErrorCode string

const (
	CodeInvalidIdentity    ErrorCode = "INVALID_IDENTITY"
	CodeSelfConversation   ErrorCode = "SELF_CONVERSATION"
	CodeEmptyContent       ErrorCode = "EMPTY_CONTENT"
	CodeInvalidContent     ErrorCode = "INVALID_CONTENT"
	CodeIndexOutOfBounds   ErrorCode = "INDEX_OUT_OF_BOUNDS"
	CodeUnknownCapability  ErrorCode = "UNKNOWN_CAPABILITY"
	CodeNotSender          ErrorCode = "NOT_SENDER"
	CodeNotAdministrator   ErrorCode = "NOT_ADMINISTRATOR"
	CodeAlreadyDeleted     ErrorCode = "ALREADY_DELETED"
	CodeAlreadyInitialized ErrorCode = "ALREADY_INITIALIZED"
)

// ErrorKind categorizes codes.
type ErrorKind string

const (
	// KindValidation means the caller supplied bad input and may retry with
	// corrected input.
	KindValidation ErrorKind = "validation"

	// KindAuthorization means the caller lacks standing for the request.
	KindAuthorization ErrorKind = "authorization"

	// KindStateConflict means the transition is illegal in the current state.
	KindStateConflict ErrorKind = "state_conflict"
)

var codeKinds = map[ErrorCode]ErrorKind{
	CodeInvalidIdentity:    KindValidation,
	CodeSelfConversation:   KindValidation,
	CodeEmptyContent:       KindValidation,
	CodeInvalidContent:     KindValidation,
	CodeIndexOutOfBounds:   KindValidation,
	CodeUnknownCapability:  KindValidation,
	CodeNotSender:          KindAuthorization,
	CodeNotAdministrator:   KindAuthorization,
	CodeAlreadyDeleted:     KindStateConflict,
	CodeAlreadyInitialized: KindStateConflict,
}

// Sentinels for errors.Is.
var (
	ErrInvalidIdentity    = &Error{Code: CodeInvalidIdentity, Kind: KindValidation}
	ErrSelfConversation   = &Error{Code: CodeSelfConversation, Kind: KindValidation}
	ErrEmptyContent       = &Error{Code: CodeEmptyContent, Kind: KindValidation}
	ErrInvalidContent     = &Error{Code: CodeInvalidContent, Kind: KindValidation}
	ErrIndexOutOfBounds   = &Error{Code: CodeIndexOutOfBounds, Kind: KindValidation}
	ErrUnknownCapability  = &Error{Code: CodeUnknownCapability, Kind: KindValidation}
	ErrNotSender          = &Error{Code: CodeNotSender, Kind: KindAuthorization}
	ErrNotAdministrator   = &Error{Code: CodeNotAdministrator, Kind: KindAuthorization}
	ErrAlreadyDeleted     = &Error{Code: CodeAlreadyDeleted, Kind: KindStateConflict}
	ErrAlreadyInitialized = &Error{Code: CodeAlreadyInitialized, Kind: KindStateConflict}
)

// NewError creates an Error for code with the code's kind.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Kind: codeKinds[code], Message: message}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is matches any *Error with the same Code.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// AsError extracts the domain error from err, if any.
// Uses errors.As to handle wrapped errors.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsRejection returns true if err is a domain rejection rather than an
// infrastructure failure.
func IsRejection(err error) bool {
	_, ok := AsError(err)
	return ok
}

// KindOf returns the kind of a domain error, or "" for other errors.
func KindOf(err error) ErrorKind {
	if e, ok := AsError(err); ok {
		return e.Kind
	}
	return ""
}
