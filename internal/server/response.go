package server

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

const (
	msgInvalidConfig       = "Invalid configuration"
	msgInProgress          = "Deployment already in progress"
	msgDeploySucceeded     = "Deployment completed successfully"
	msgProviderRequired    = "Provider is required"
	msgProviderUnsupported = "Provider is not supported"
	msgIdentityRequired    = "Portfolio name and email are required"
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.S().Warnf("http: encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"success": false,
		"error":   msg,
	})
}

func writeInvalid(w http.ResponseWriter, details []string) {
	writeJSON(w, http.StatusBadRequest, map[string]any{
		"success": false,
		"error":   msgInvalidConfig,
		"details": details,
	})
}
