package httpapi

import (
	"encoding/json"
	"net/http"
	"time"
)

// envelope is spec.md §6's administrative response shape:
// {ok, data?, error?, code?}. Data endpoints (price/ohlcv/providers)
// wrap their typed payload in data; error responses set error/code
// instead.
type envelope struct {
	OK        bool        `json:"ok"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
	Code      string      `json:"code,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

func writeData(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	writeJSON(w, status, envelope{OK: true, Data: data, RequestID: requestIDFrom(r), Timestamp: time.Now().UTC()})
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, envelope{OK: false, Error: message, Code: code, RequestID: requestIDFrom(r), Timestamp: time.Now().UTC()})
}

func writeJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func requestIDFrom(r *http.Request) string {
	if v, ok := r.Context().Value(requestIDKey{}).(string); ok {
		return v
	}
	return ""
}
