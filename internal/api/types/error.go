package types

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// Error represents error information in API responses
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// APIError is a handler failure carrying its HTTP status.
// Err is logged but never sent to the client.
type APIError struct {
	Status  int
	Code    string
	Message string
	Details string
	Err     error
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

// ErrorResponse creates an error API response
func ErrorResponse(code, message, details string) Response {
	return Response{
		Success: false,
		Error: &Error{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

// ValidationError is a 400 for malformed input.
func ValidationError(details string) *APIError {
	return &APIError{Status: http.StatusBadRequest, Code: "VALIDATION_ERROR", Message: "Invalid input data", Details: details}
}

// NotFoundError is a 404 for a missing resource.
func NotFoundError(resource string) *APIError {
	return &APIError{Status: http.StatusNotFound, Code: "NOT_FOUND", Message: "Resource not found", Details: resource + " not found"}
}

// InternalError is a 500 wrapping err.
func InternalError(details string, err error) *APIError {
	return &APIError{Status: http.StatusInternalServerError, Code: "INTERNAL_ERROR", Message: "Internal server error", Details: details, Err: err}
}

// AbortWithError writes e as the response and stops the handler chain.
func AbortWithError(c *gin.Context, e *APIError) {
	if e.Status >= http.StatusInternalServerError {
		log.Error().
			Err(e.Err).
			Str("request_id", c.GetString(RequestIDKey)).
			Str("path", c.Request.URL.Path).
			Msg(e.Details)
	}
	c.AbortWithStatusJSON(e.Status, ErrorResponse(e.Code, e.Message, e.Details))
}
