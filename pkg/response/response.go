package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// RequestIDKey is the gin context key the request logger stores the request id under.
const RequestIDKey = "request_id"

// Response is the envelope every API endpoint answers with
type Response struct {
	Success   bool         `json:"success"`
	Message   string       `json:"message"`
	RequestID string       `json:"request_id,omitempty"`
	Data      interface{}  `json:"data,omitempty"`
	Error     *ErrorDetail `json:"error,omitempty"`
}

type ErrorDetail struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details string            `json:"details,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func Success(c *gin.Context, statusCode int, message string, data interface{}) {
	c.JSON(statusCode, Response{
		Success:   true,
		Message:   message,
		RequestID: c.GetString(RequestIDKey),
		Data:      data,
	})
}

func Created(c *gin.Context, message string, data interface{}) {
	Success(c, http.StatusCreated, message, data)
}

func Error(c *gin.Context, statusCode int, code, message, details string) {
	writeError(c, statusCode, &ErrorDetail{Code: code, Message: message, Details: details})
}

func writeError(c *gin.Context, statusCode int, detail *ErrorDetail) {
	c.JSON(statusCode, Response{
		Success:   false,
		Message:   detail.Message,
		RequestID: c.GetString(RequestIDKey),
		Error:     detail,
	})
}

func BadRequest(c *gin.Context, message, details string) {
	Error(c, http.StatusBadRequest, "BAD_REQUEST", message, details)
}

func InternalError(c *gin.Context, message, details string) {
	Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", message, details)
}

func NotFound(c *gin.Context, message string) {
	Error(c, http.StatusNotFound, "NOT_FOUND", message, "")
}

// Conflict reports a request that is valid but clashes with current state,
// such as deleting a matched transaction.
func Conflict(c *gin.Context, message, details string) {
	Error(c, http.StatusConflict, "CONFLICT", message, details)
}

// ValidationError answers 422. Field-level ozzo errors are spread into Fields.
func ValidationError(c *gin.Context, err error) {
	detail := &ErrorDetail{
		Code:    "VALIDATION_ERROR",
		Message: "Validation failed",
		Details: err.Error(),
	}

	var fieldErrs validation.Errors
	if errors.As(err, &fieldErrs) {
		detail.Fields = make(map[string]string, len(fieldErrs))
		for field, fe := range fieldErrs {
			if fe != nil {
				detail.Fields[field] = fe.Error()
			}
		}
	}

	writeError(c, http.StatusUnprocessableEntity, detail)
}
