package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/mechatbot/mechatbot/errors"
)

// statusPayload is the envelope of every JSON response. The code and action
// fields are machine-checkable so clients can branch without parsing the
// message text.
type statusPayload struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Action  string `json:"action"`
}

var (
	statusOK = statusPayload{
		Status:  http.StatusOK,
		Code:    "OK",
		Message: "Success",
		Action:  "No additional action is required.",
	}
	statusBadRequest = statusPayload{
		Status:  http.StatusBadRequest,
		Code:    "BAD_REQUEST",
		Message: "Bad request",
		Action:  "Check the input information and try again.",
	}
	statusUnauthorized = statusPayload{
		Status:  http.StatusUnauthorized,
		Code:    "UNAUTHORIZED",
		Message: "Unauthorized",
		Action:  "Please login to continue.",
	}
	statusNotFound = statusPayload{
		Status:  http.StatusNotFound,
		Code:    "NOT_FOUND",
		Message: "Not found",
		Action:  "Check the URL or requested resource.",
	}
	statusConflict = statusPayload{
		Status:  http.StatusConflict,
		Code:    "CONFLICT",
		Message: "Data already exists",
		Action:  "Please check and use different information.",
	}
	statusBadGateway = statusPayload{
		Status:  http.StatusBadGateway,
		Code:    "BAD_GATEWAY",
		Message: "Upstream service failure",
		Action:  "Please try again later.",
	}
	statusInternalServerError = statusPayload{
		Status:  http.StatusInternalServerError,
		Code:    "INTERNAL_SERVER_ERROR",
		Message: "Internal server error",
		Action:  "Please try again later or contact the technical support.",
	}
)

func (p statusPayload) withMessage(message string) statusPayload {
	p.Message = message
	return p
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeStatus(w http.ResponseWriter, payload statusPayload) {
	writeJSON(w, payload.Status, payload)
}

// writeError maps a pipeline error onto a status payload. Messages of 4xx
// responses carry the reason; 5xx bodies stay generic.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errors.ErrValidation), errors.Is(err, errors.ErrInvalidHistoryEntry):
		writeStatus(w, statusBadRequest.withMessage(err.Error()))
	case errors.Is(err, errors.ErrNotFound):
		writeStatus(w, statusNotFound)
	case errors.Is(err, errors.ErrConflict):
		writeStatus(w, statusConflict)
	case errors.Is(err, errors.ErrUpstreamUnavailable), errors.Is(err, errors.ErrPartialWrite):
		writeStatus(w, statusBadGateway)
	default:
		writeStatus(w, statusInternalServerError)
	}
}
