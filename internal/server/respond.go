package server

import (
	"encoding/json"
	"net/http"
)

// Pagination describes the slice of a listing returned to the client.
type Pagination struct {
	Skip  int `json:"skip"`
	Take  int `json:"take"`
	Total int `json:"total"`
}

type successEnvelope struct {
	Success    bool        `json:"success"`
	Data       any         `json:"data"`
	Pagination *Pagination `json:"pagination,omitempty"`
}

type errorEnvelope struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, successEnvelope{Success: true, Data: data})
}

func writePage(w http.ResponseWriter, data any, pagination Pagination) {
	writeJSON(w, http.StatusOK, successEnvelope{Success: true, Data: data, Pagination: &pagination})
}

func writeError(w http.ResponseWriter, status int, message string, details any) {
	writeJSON(w, status, errorEnvelope{Error: message, Details: details})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}
