package responses

import "github.com/gin-gonic/gin"

// APIResponse is the envelope of every API answer.
type APIResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

func Success(c *gin.Context, statusCode int, data any, message string) {
	c.JSON(statusCode, APIResponse{
		Status:  StatusSuccess,
		Message: message,
		Data:    data,
	})
}

// Fail answers with an error envelope. err is also attached to the gin
// context so the request logger records it.
func Fail(c *gin.Context, statusCode int, err error, message string) {
	resp := APIResponse{
		Status:  StatusError,
		Message: message,
	}
	if err != nil {
		resp.Error = err.Error()
		_ = c.Error(err)
	}
	c.JSON(statusCode, resp)
}
