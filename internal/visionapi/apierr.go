package visionapi

import (
	"encoding/json"
	"net/http"
)

// errorBody is the {code, message} envelope every failing response
// carries, per spec's REST error taxonomy.
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorBody{Code: code, Message: message})
}

func badRequest(w http.ResponseWriter, code, message string)   { writeError(w, http.StatusBadRequest, code, message) }
func unauthorized(w http.ResponseWriter, code, message string) { writeError(w, http.StatusUnauthorized, code, message) }
func forbidden(w http.ResponseWriter, code, message string)    { writeError(w, http.StatusForbidden, code, message) }
func notFound(w http.ResponseWriter, code, message string)     { writeError(w, http.StatusNotFound, code, message) }
func notReady(w http.ResponseWriter, code, message string)     { writeError(w, http.StatusServiceUnavailable, code, message) }
