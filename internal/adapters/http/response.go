package http

import (
	"encoding/json"
	"net/http"
)

type envelope struct {
	Status string `json:"status"`
	Data   any    `json:"data,omitempty"`
}

type apiError struct {
	Status    string `json:"status"`
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// probeResult is the body of /healthz and /readyz.
type probeResult struct {
	Probe      string `json:"probe"`
	State      string `json:"state"`
	InstanceID string `json:"instance_id"`
}

func respond(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(body)
}

func writeSuccess(w http.ResponseWriter, statusCode int, data any) {
	respond(w, statusCode, envelope{Status: "success", Data: data})
}

// writeError includes the request id when the request carries one.
func writeError(w http.ResponseWriter, r *http.Request, statusCode int, code, message string) {
	respond(w, statusCode, apiError{
		Status:    "error",
		Code:      code,
		Message:   message,
		RequestID: requestIDFromContext(r.Context()),
	})
}
