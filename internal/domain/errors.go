package domain

import (
	"errors"
	"fmt"
)

// Kind categorizes a pipeline failure so callers can branch on the failure
// class instead of parsing messages.
type Kind string

const (
	KindInputInvalid        Kind = "INPUT_INVALID"
	KindUnsupportedPlatform Kind = "UNSUPPORTED_PLATFORM"
	KindIdentityUnavailable Kind = "IDENTITY_UNAVAILABLE"
	KindNetworkTimeout      Kind = "NETWORK_TIMEOUT"
	KindNetworkUnavailable  Kind = "NETWORK_UNAVAILABLE"
	KindServerError         Kind = "SERVER_ERROR"
	KindServiceNotFound     Kind = "SERVICE_NOT_FOUND"
	KindUnexpectedStatus    Kind = "UNEXPECTED_STATUS"
	KindMalformedResponse   Kind = "MALFORMED_RESPONSE"
	KindPermissionDenied    Kind = "PERMISSION_DENIED"
	KindDownloadFailed      Kind = "DOWNLOAD_FAILED"
	KindInvalidDownload     Kind = "INVALID_DOWNLOAD"
	KindRemovalFailed       Kind = "REMOVAL_FAILED"
	KindExtractionFailed    Kind = "EXTRACTION_FAILED"
	KindTargetNotCreated    Kind = "TARGET_NOT_CREATED"
	KindIncompleteStructure Kind = "INCOMPLETE_STRUCTURE"
)

// Denial reason codes returned by the gateway when success is false.
const (
	ReasonUserNotRegistered = "USER_NOT_REGISTERED"
	ReasonAccountDisabled   = "ACCOUNT_DISABLED"
	ReasonQuotaExceeded     = "QUOTA_EXCEEDED"
	ReasonInvalidOSType     = "INVALID_OS_TYPE"
)

// Error is the single failure type the pipeline surfaces. Reason is set only
// for PermissionDenied and carries the gateway denial code. Remedy is the
// human-readable next step shown to the operator.
type Error struct {
	Kind   Kind
	Reason string
	Msg    string
	Remedy string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

func E(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

func (e *Error) WithRemedy(remedy string) *Error {
	e.Remedy = remedy
	return e
}

// Denied builds the PermissionDenied error for a gateway reason code.
func Denied(reason, msg, remedy string) *Error {
	return &Error{Kind: KindPermissionDenied, Reason: reason, Msg: msg, Remedy: remedy}
}

// KindOf extracts the Kind from err, or "" when err is not a pipeline error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// RemedyOf extracts the remediation text from err, if any.
func RemedyOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Remedy
	}
	return ""
}
