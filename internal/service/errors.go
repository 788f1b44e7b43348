package service

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	KindValidation     ErrorKind = "validation"
	KindAuthentication ErrorKind = "authentication"
	KindNotFound       ErrorKind = "not_found"
	KindTransientStore ErrorKind = "transient_store"
)

// Error carries a client-safe message and a kind used for status mapping.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

var (
	ErrSessionInvalidated  = &Error{Kind: KindAuthentication, Message: "Token has been invalidated. Please log in again."}
	ErrInvalidToken        = &Error{Kind: KindAuthentication, Message: "invalid token"}
	ErrRefreshTokenExpired = &Error{Kind: KindAuthentication, Message: "refresh token expired"}
	ErrMissingToken        = &Error{Kind: KindAuthentication, Message: "missing access token"}
	ErrInvalidCredentials  = &Error{Kind: KindAuthentication, Message: "invalid credentials"}
	ErrUnsupportedProvider = &Error{Kind: KindValidation, Message: "unsupported provider"}
	ErrEmailRequired       = &Error{Kind: KindValidation, Message: "email is required"}
	ErrRoleNotFound        = &Error{Kind: KindNotFound, Message: "role not found"}
	ErrUserNotFound        = &Error{Kind: KindNotFound, Message: "user not found"}
	ErrSessionNotFound     = &Error{Kind: KindNotFound, Message: "session not found"}
)

func validationError(msg string) error {
	return &Error{Kind: KindValidation, Message: msg}
}

func storeError(op string, err error) error {
	return &Error{Kind: KindTransientStore, Message: op + " failed", Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or "" when there is none.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// PublicMessage is the message safe to return to clients.
func PublicMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal server error"
}
