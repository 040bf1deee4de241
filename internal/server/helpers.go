package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"github.com/bobmcallan/tally/internal/common"
)

// ErrorResponse is the {error} payload for provider and configuration failures.
type ErrorResponse struct {
	Error string `json:"error"`
}

// DetailResponse is the {detail} payload for request and boundary failures.
type DetailResponse struct {
	Detail string `json:"detail"`
}

// MessageResponse is the {message} payload.
type MessageResponse struct {
	Message string `json:"message"`
}

var validate = validator.New()

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// WriteError writes an {error} response.
func WriteError(w http.ResponseWriter, statusCode int, message string) {
	WriteJSON(w, statusCode, ErrorResponse{Error: message})
}

// WriteDetail writes a {detail} response.
func WriteDetail(w http.ResponseWriter, statusCode int, detail string) {
	WriteJSON(w, statusCode, DetailResponse{Detail: detail})
}

// WriteMessage writes a {message} response.
func WriteMessage(w http.ResponseWriter, statusCode int, message string) {
	WriteJSON(w, statusCode, MessageResponse{Message: message})
}

// DecodeJSON reads, decodes and validates JSON from the request body into v.
// Returns false and writes a 400 if the body is missing, malformed or invalid.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if r.Body == nil || r.Body == http.NoBody {
		WriteDetail(w, http.StatusBadRequest, "Request body is required")
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB limit
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		WriteDetail(w, http.StatusBadRequest, "Invalid JSON: "+err.Error())
		return false
	}
	if err := validate.Struct(v); err != nil {
		WriteDetail(w, http.StatusBadRequest, validationMessage(err))
		return false
	}
	return true
}

// validationMessage flattens validator errors into "field: rule" pairs.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "Invalid request: " + err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s: %s=%s", strings.ToLower(fe.Field()), fe.Tag(), fe.Param()))
		} else {
			parts = append(parts, fmt.Sprintf("%s: %s", strings.ToLower(fe.Field()), fe.Tag()))
		}
	}
	return "Invalid request: " + strings.Join(parts, ", ")
}

// TickerParam reads and normalizes the {ticker} path variable.
// Returns false and writes a 400 when it is not a valid symbol.
func TickerParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	ticker, err := common.NormalizeTicker(mux.Vars(r)["ticker"])
	if err != nil {
		WriteDetail(w, http.StatusBadRequest, err.Error())
		return "", false
	}
	return ticker, true
}
