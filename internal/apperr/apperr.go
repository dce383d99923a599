package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so callers can render consistent guidance
// without inspecting raw error text.
type Kind int

const (
	UnknownError Kind = iota
	UnsupportedFileType
	SchemaError
	EmptyFile
	InvalidDate
	InvalidAmount
	FileSaveError
	PersistenceError
	ExternalServiceError
)

func (k Kind) String() string {
	switch k {
	case UnsupportedFileType:
		return "UnsupportedFileType"
	case SchemaError:
		return "SchemaError"
	case EmptyFile:
		return "EmptyFile"
	case InvalidDate:
		return "InvalidDate"
	case InvalidAmount:
		return "InvalidAmount"
	case FileSaveError:
		return "FileSaveError"
	case PersistenceError:
		return "PersistenceError"
	case ExternalServiceError:
		return "ExternalServiceError"
	default:
		return "UnknownError"
	}
}

// Code is the fine-grained identifier of the kind. Friendly messages are keyed by it.
func (k Kind) Code() string {
	switch k {
	case UnsupportedFileType:
		return "file_type"
	case SchemaError:
		return "missing_columns"
	case EmptyFile:
		return "empty_file"
	case InvalidDate:
		return "invalid_date"
	case InvalidAmount:
		return "invalid_amount"
	case FileSaveError:
		return "file_save_error"
	case PersistenceError:
		return "db_error"
	case ExternalServiceError:
		return "external_service"
	default:
		return "unknown"
	}
}

// ErrorType is the coarse category reported to clients as error_type.
// Column, date and amount problems all surface as processing_error.
func (k Kind) ErrorType() string {
	switch k {
	case SchemaError, InvalidDate, InvalidAmount:
		return "processing_error"
	default:
		return k.Code()
	}
}

// validation kinds carry a user-safe Detail that is appended to the message.
func (k Kind) validation() bool {
	switch k {
	case SchemaError, InvalidDate, InvalidAmount, EmptyFile:
		return true
	}
	return false
}

var messages = map[string]string{
	"file_type":        "Please upload only Excel (.xlsx) or CSV (.csv) files.",
	"missing_columns":  "Your file is missing required columns. Please ensure it includes: Date, Description, and Amount.",
	"invalid_date":     "Some dates in your statement are not in the correct format. Please check the date format.",
	"invalid_amount":   "Some amounts are not in the correct format. Please ensure amounts are numbers.",
	"empty_file":       "The uploaded file appears to be empty. Please check the file contents.",
	"processing_error": "We encountered an issue while processing your file. Please try again.",
	"db_error":         "There was a problem saving your data. Please try again.",
	"file_save_error":  "Failed to save the uploaded file. Please try again.",
	"external_service": "The suggestion service is temporarily unavailable.",
	"unknown":          "An unexpected error occurred. Please try again or contact support.",
}

type Error struct {
	Kind   Kind
	Detail string
	Err    error
}

func (e *Error) Error() string {
	switch {
	case e.Detail != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Detail, e.Err)
	case e.Detail != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	default:
		return e.Kind.String()
	}
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, detail string) *Error {
	return &Error{Kind: kind, Detail: detail}
}

func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// Wrap classifies err. An err that is already classified keeps its kind.
func Wrap(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return err
	}
	return &Error{Kind: kind, Err: err}
}

// KindOf reports the kind of err, UnknownError when it carries none.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return UnknownError
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Message returns the sentence shown to users for err. Internal error text
// never leaks into it.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var ae *Error
	if !errors.As(err, &ae) {
		return messages["unknown"]
	}
	base := messages[ae.Kind.Code()]
	if ae.Kind.validation() && ae.Detail != "" {
		return base + " Details: " + ae.Detail
	}
	return base
}
