package middleware

import (
	"encoding/json"
	"net/http"
)

// errorBody is the JSON error shape shared with the handler package.
type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// writeJSONError writes {"error": msg, "code": code} with the given status.
func writeJSONError(w http.ResponseWriter, status int, msg, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Error: msg, Code: code})
}
