package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/mikelady/showcase/internal/services"
)

// Envelope status values
const (
	statusSuccess = "success"
	statusFail    = "fail"
)

// maxJSONBody caps JSON request bodies.
const maxJSONBody = 1 << 20

// Response is the envelope every endpoint writes.
type Response struct {
	Message string `json:"message"`
	Status  string `json:"status"`
	Code    int    `json:"code"`
	Data    any    `json:"data"`
}

func writeJSON(w http.ResponseWriter, code int, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(resp)
}

func writeSuccess(w http.ResponseWriter, code int, message string, data any) {
	writeJSON(w, code, Response{Message: message, Status: statusSuccess, Code: code, Data: data})
}

func writeFail(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, Response{Message: message, Status: statusFail, Code: code})
}

// writeServiceError maps a service error to a status code. Unexpected errors are
// logged and reported with a generic message.
func writeServiceError(w http.ResponseWriter, logger *zap.Logger, err error) {
	code, message := classifyError(err)
	if code == http.StatusInternalServerError {
		logger.Error("request failed", zap.Error(err))
	} else if code >= http.StatusBadGateway {
		logger.Warn("platform call failed", zap.Error(err))
	}
	writeFail(w, code, message)
}

// classifyError returns the HTTP status and client-facing message for err.
func classifyError(err error) (int, string) {
	var validation *services.ValidationError
	switch {
	case errors.As(err, &validation):
		return http.StatusBadRequest, validation.Error()
	case errors.Is(err, services.ErrInvalidInput):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, services.ErrPublicationNotFound), errors.Is(err, services.ErrOrderNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, services.ErrDuplicatePublication), errors.Is(err, services.ErrInvalidTransition):
		return http.StatusConflict, err.Error()
	case errors.Is(err, services.ErrPlatformRateLimited):
		return http.StatusTooManyRequests, "the platform is rate limiting requests, try again later"
	case errors.Is(err, services.ErrPlatformAuthentication):
		return http.StatusBadGateway, "the platform rejected our credentials, check the access token"
	case errors.Is(err, services.ErrPublishFailed):
		return http.StatusBadGateway, "publishing to the platform failed"
	}
	return http.StatusInternalServerError, "internal server error"
}

// decodeJSON reads a JSON body into dst. An empty body leaves dst untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return services.NewValidationError("body", "invalid JSON: "+err.Error())
	}
	return nil
}
