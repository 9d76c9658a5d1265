package error

import "net/http"

type ErrorCode string

const (
	UnknownError        ErrorCode = "unknown_error"
	InternalServerError ErrorCode = "internal_server_error"
	BadRequest          ErrorCode = "bad_request"
	InvalidAccessToken  ErrorCode = "invalid_access_token"
	ExpiredAccessToken  ErrorCode = "expired_access_token"

	// Recognized pipeline outcomes. These are returned at transport success
	// with success=false in the payload; the transport layer is not used to
	// signal domain failure.
	RateLimitExceeded     ErrorCode = "rate_limit_exceeded"
	InsufficientTokens    ErrorCode = "insufficient_tokens"
	NotARecipe            ErrorCode = "not_a_recipe"
	TranscriptUnavailable ErrorCode = "transcript_unavailable"
	AcquisitionFailed     ErrorCode = "acquisition_failed"
	ExtractionFailed      ErrorCode = "extraction_failed"
)

var errorCodeToStatusCode = map[ErrorCode]int{
	UnknownError:        0,
	InternalServerError: http.StatusInternalServerError,
	BadRequest:          http.StatusBadRequest,
	InvalidAccessToken:  http.StatusUnauthorized,
	ExpiredAccessToken:  http.StatusUnauthorized,

	RateLimitExceeded:     http.StatusOK,
	InsufficientTokens:    http.StatusOK,
	NotARecipe:            http.StatusOK,
	TranscriptUnavailable: http.StatusOK,
	AcquisitionFailed:     http.StatusOK,
	ExtractionFailed:      http.StatusOK,
}

func (ec ErrorCode) StatusCode() int {
	return errorCodeToStatusCode[ec]
}

func (ec ErrorCode) String() string {
	return string(ec)
}
