package gate

import "github.com/gin-gonic/gin"

// Error codes surfaced to callers on gate denials.
const (
	CodeCSRFValidationFailed = "CSRF_VALIDATION_FAILED"
	CodeUnauthorized         = "UNAUTHORIZED"
	CodeRateLimitExceeded    = "RATE_LIMIT_EXCEEDED"
)

// ErrorBody is the machine-readable part of a denial response.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse is the JSON envelope for every gate denial. No internal
// error detail is ever placed here.
type ErrorResponse struct {
	Success bool      `json:"success"`
	Error   ErrorBody `json:"error"`
}

// Deny writes the denial envelope and aborts the request.
func Deny(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, ErrorResponse{
		Success: false,
		Error:   ErrorBody{Code: code, Message: message},
	})
}
