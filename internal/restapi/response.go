package restapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response is the standard envelope every handler returns, restated from
// the teacher's internal/api/response.go Response type.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, &Response{Success: true, Data: data})
}

func errorResponse(c *gin.Context, code int, message string) {
	c.JSON(code, &Response{Success: false, Message: message})
}

func badRequest(c *gin.Context, message string) { errorResponse(c, http.StatusBadRequest, message) }
func notFound(c *gin.Context, message string)   { errorResponse(c, http.StatusNotFound, message) }
func internalError(c *gin.Context, message string) {
	errorResponse(c, http.StatusInternalServerError, message)
}
func tooManyRequests(c *gin.Context, message string) {
	errorResponse(c, http.StatusTooManyRequests, message)
}
