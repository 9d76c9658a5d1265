// Package error contains the API error codes and response encoding.
package error

import (
	"encoding/json"
	"net/http"
)

type Error struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	RequestID string    `json:"requestId,omitempty"`
}

// EncodeError writes a JSON error response using the code's mapped status.
func EncodeError(w http.ResponseWriter, code ErrorCode, message, requestID string) error {
	w.Header().Set("Content-Type", "application/json")
	status := code.StatusCode()
	if status == 0 {
		status = http.StatusInternalServerError
	}
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(Error{
		Code:      code,
		Message:   message,
		RequestID: requestID,
	})
}

func EncodeInternalError(w http.ResponseWriter, requestID string) error {
	return EncodeError(w, InternalServerError, "internal server error", requestID)
}
