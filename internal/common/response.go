package common

import (
	"github.com/gin-gonic/gin"
)

// OK writes data as the response body.
func OK(c *gin.Context, status int, data any) {
	c.JSON(status, data)
}

// Fail writes the error envelope and aborts the chain.
func Fail(c *gin.Context, httpStatus int, code int, msg string) {
	c.AbortWithStatusJSON(httpStatus, gin.H{
		"code":    code,
		"message": msg,
		"data":    nil,
	})
}
