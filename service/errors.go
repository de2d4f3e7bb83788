package service

import (
	"errors"

	"legiscribe-backend/extractor"
	"legiscribe-backend/gateway"
)

// FailureKind categorizes a terminal pipeline failure
type FailureKind string

const (
	FailureMalformedUpload     FailureKind = "malformed_upload"
	FailureUnsupportedFileType FailureKind = "unsupported_file_type"
	FailureModelOutputInvalid  FailureKind = "model_output_invalid"
	FailureServiceUnavailable  FailureKind = "service_unavailable"
	FailureRateLimited         FailureKind = "rate_limited"
	FailureUnknown             FailureKind = "unknown"
)

// Failure is a classified, user-presentable pipeline error. Message is
// always a complete sentence fit for the client; the underlying cause is
// retained for logs only.
type Failure struct {
	Kind    FailureKind
	Message string
	cause   error
}

func (f *Failure) Error() string {
	if f.cause != nil {
		return f.Message + " (" + f.cause.Error() + ")"
	}
	return f.Message
}

func (f *Failure) Unwrap() error {
	return f.cause
}

// AsFailure extracts the classified failure from err, classifying
// unrecognized errors as unknown
func AsFailure(err error) *Failure {
	var failure *Failure
	if errors.As(err, &failure) {
		return failure
	}
	return classify(err)
}

// User-facing sentences, one fixed message per failure category
const (
	msgMalformedUpload     = "The uploaded file could not be read. Please check the file and try again."
	msgUnsupportedFileType = "This file type is not supported. Please upload a TXT, PDF, DOC, or DOCX file."
	msgModelOutputInvalid  = "The AI service returned an incomplete result. Please try again."
	msgServiceUnavailable  = "The AI service is temporarily unavailable due to high demand. Please try again in a few moments."
	msgRateLimited         = "The AI service request quota has been exhausted. Please wait before trying again, or upgrade your plan."
	msgUnknown             = "An unexpected error occurred while processing the bill. Please try again."
)

// classify converts an extractor or gateway error into a Failure
func classify(err error) *Failure {
	switch {
	case errors.Is(err, extractor.ErrUnsupportedFileType):
		return &Failure{Kind: FailureUnsupportedFileType, Message: msgUnsupportedFileType, cause: err}
	case errors.Is(err, extractor.ErrMalformedUpload):
		return &Failure{Kind: FailureMalformedUpload, Message: msgMalformedUpload, cause: err}
	}

	switch gateway.StatusOf(err) {
	case gateway.StatusRateLimited:
		return &Failure{Kind: FailureRateLimited, Message: msgRateLimited, cause: err}
	case gateway.StatusUnavailable:
		return &Failure{Kind: FailureServiceUnavailable, Message: msgServiceUnavailable, cause: err}
	case gateway.StatusInvalidOutput:
		return &Failure{Kind: FailureModelOutputInvalid, Message: msgModelOutputInvalid, cause: err}
	default:
		// Unknown failures carry the underlying message for diagnostics
		msg := msgUnknown
		if err != nil {
			msg = msgUnknown + " (" + err.Error() + ")"
		}
		return &Failure{Kind: FailureUnknown, Message: msg, cause: err}
	}
}
