package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/hyperengineering/courier"
)

// maxBodyBytes bounds request bodies accepted by the control API.
const maxBodyBytes = 1 << 20

// writeJSON encodes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response of the form {"error": "..."}.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// decodeBody reads a JSON request body into v, rejecting unknown fields.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// errorStatus maps a courier error to the HTTP status reported to callers.
func errorStatus(err error) int {
	var (
		unknown    *courier.UnknownPreferenceKeyError
		invalid    *courier.InvalidValueError
		validation *courier.ValidationError
		transport  *courier.TransportError
		rejection  *courier.BackendRejection
	)
	switch {
	case errors.As(err, &unknown), errors.As(err, &invalid), errors.As(err, &validation):
		return http.StatusBadRequest
	case errors.Is(err, courier.ErrInvalidUserID):
		return http.StatusConflict
	case errors.Is(err, courier.ErrOffline):
		return http.StatusServiceUnavailable
	case errors.As(err, &transport):
		return http.StatusBadGateway
	case errors.As(err, &rejection):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
