// Package httputil maps domain errors onto HTTP responses. It is the only
// place that knows both the error taxonomy and net/http; services never
// import this package.
package httputil

import (
	"encoding/json"
	"net/http"

	dErrors "pharmatrace/pkg/domain-errors"
)

type errorBody struct {
	Error       string `json:"error"`
	Description string `json:"error_description,omitempty"`
}

// statusFor maps an error code to an HTTP status. Transient conflicts get
// 409 so clients know a retry may succeed; internal details are never leaked.
func statusFor(code dErrors.Code) int {
	switch code {
	case dErrors.CodeInvalidInput:
		return http.StatusBadRequest
	case dErrors.CodePartyNotFound, dErrors.CodeUnitNotFound,
		dErrors.CodeBatchNotFound, dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeInsufficientStock, dErrors.CodeAlreadyRecalled,
		dErrors.CodeAlreadyTerminal, dErrors.CodeIllegalTransition,
		dErrors.CodeBatchRecalled, dErrors.CodeExceedsTarget,
		dErrors.CodeConflict:
		return http.StatusConflict
	case dErrors.CodeExpired:
		return http.StatusGone
	case dErrors.CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// WriteError renders err as a JSON error response. Internal errors omit the
// description so store/driver details never reach the caller.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	status := statusFor(code)

	body := errorBody{Error: string(code)}
	if status != http.StatusInternalServerError {
		body.Description = err.Error()
	}

	WriteJSON(w, status, body)
}

// WriteJSON renders v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
