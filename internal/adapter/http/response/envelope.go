// Package response writes the JSON envelope every API endpoint answers with.
package response

import (
	"encoding/json"
	"net/http"

	"github.com/opsdeck/opsdeck/pkg/apperror"
)

type Envelope struct {
	Status  bool              `json:"status"`
	Message string            `json:"message"`
	Data    interface{}       `json:"data"`
	Code    string            `json:"code,omitempty"`
	Errors  map[string]string `json:"errors,omitempty"`
}

func WriteJSON(w http.ResponseWriter, statusCode int, envelope Envelope) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(envelope)
}

func Success(w http.ResponseWriter, statusCode int, message string, data interface{}) {
	WriteJSON(w, statusCode, Envelope{Status: true, Message: message, Data: data})
}

func Error(w http.ResponseWriter, statusCode int, code, message string) {
	WriteJSON(w, statusCode, Envelope{Status: false, Message: message, Code: code})
}

// AppError writes err after classifying it
func AppError(w http.ResponseWriter, err error) *apperror.AppError {
	appErr := apperror.MapError(err)
	WriteJSON(w, appErr.Status, Envelope{
		Status:  false,
		Message: appErr.Message,
		Code:    appErr.Code,
		Errors:  appErr.Fields,
	})
	return appErr
}

func BadRequest(w http.ResponseWriter, message string) {
	Error(w, http.StatusBadRequest, apperror.CodeBadRequest, message)
}

func Unauthorized(w http.ResponseWriter, message string) {
	Error(w, http.StatusUnauthorized, apperror.CodeUnauthorized, message)
}

func NotFound(w http.ResponseWriter, message string) {
	Error(w, http.StatusNotFound, apperror.CodeNotFound, message)
}

func InternalServerError(w http.ResponseWriter, message string) {
	Error(w, http.StatusInternalServerError, apperror.CodeInternal, message)
}
