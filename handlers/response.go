package handlers

import "github.com/gin-gonic/gin"

// Response is the uniform envelope every endpoint returns. Internal error
// detail never leaks into it; Error carries user-correctable detail only
// (e.g. the full list of violated password rules).
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func respondOK(c *gin.Context, status int, message string, data interface{}) {
	c.JSON(status, Response{Success: true, Message: message, Data: data})
}

func respondFail(c *gin.Context, status int, message string) {
	c.JSON(status, Response{Success: false, Message: message})
}

func respondFailDetail(c *gin.Context, status int, message, detail string) {
	c.JSON(status, Response{Success: false, Message: message, Error: detail})
}
