// Package apperrors classifies failures of the summary pipeline and carries
// the user-facing text that explains how to fix them.
package apperrors

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindUnknown Kind = iota
	KindConfiguration
	KindInvalidInput
	KindThreadNotFound
	KindAccessDenied
	KindNetwork
	KindUpstreamRateLimited
	KindUpstreamAuthInvalid
	KindUpstreamModelUnavailable
	KindUpstream
	KindMalformedResponse
	KindLocalStore
	KindRemoteStore
)

var kindNames = map[Kind]string{
	KindUnknown:                  "Unknown",
	KindConfiguration:            "ConfigurationError",
	KindInvalidInput:             "InvalidInput",
	KindThreadNotFound:           "ThreadNotFound",
	KindAccessDenied:             "AccessDenied",
	KindNetwork:                  "NetworkError",
	KindUpstreamRateLimited:      "UpstreamRateLimited",
	KindUpstreamAuthInvalid:      "UpstreamAuthInvalid",
	KindUpstreamModelUnavailable: "UpstreamModelUnavailable",
	KindUpstream:                 "UpstreamError",
	KindMalformedResponse:        "MalformedResponse",
	KindLocalStore:               "LocalStoreError",
	KindRemoteStore:              "RemoteStoreError",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Error is a classified failure. Message is shown to the user as-is.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, err error, message string) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or KindUnknown.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindUnknown
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
