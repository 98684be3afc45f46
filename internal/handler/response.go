package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"admin-auth/internal/service"
	"admin-auth/internal/util"
)

const (
	msgAuthFailed   = "invalid code or email"
	msgInternal     = "internal server error"
	msgDispatch     = "failed to send otp"
	msgThrottled    = "too many requests"
	msgUnauthorized = "unauthorized"
	msgBadBody      = "invalid request body"
)

type errorResponse struct {
	Error string `json:"error"`
}

func respondWithJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		util.Error("Failed to encode JSON response", util.ErrorField(err))
	}
}

func respondWithError(w http.ResponseWriter, statusCode int, message string) {
	respondWithJSON(w, statusCode, errorResponse{Error: message})
}

// getStatusCode maps service errors to a status and a client-safe message.
// The three authentication failures are indistinguishable on purpose.
func getStatusCode(err error, validationMessage string) (int, string) {
	switch {
	case errors.Is(err, service.ErrValidation):
		return http.StatusBadRequest, validationMessage
	case errors.Is(err, service.ErrNotFound),
		errors.Is(err, service.ErrInvalidCredential),
		errors.Is(err, service.ErrExpired):
		return http.StatusUnauthorized, msgAuthFailed
	case errors.Is(err, service.ErrThrottled):
		return http.StatusTooManyRequests, msgThrottled
	case errors.Is(err, service.ErrDispatch):
		return http.StatusInternalServerError, msgDispatch
	default:
		return http.StatusInternalServerError, msgInternal
	}
}

func respondWithServiceError(w http.ResponseWriter, err error, validationMessage string) {
	status, message := getStatusCode(err, validationMessage)
	if status >= http.StatusInternalServerError {
		util.Error("Request failed", util.Int("status_code", status), util.ErrorField(err))
	} else {
		util.Debug("Request rejected", util.Int("status_code", status), util.ErrorField(err))
	}
	respondWithError(w, status, message)
}
