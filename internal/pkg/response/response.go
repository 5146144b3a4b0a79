package response

import (
	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/webapi/proxyutil"
)

type statusError struct {
	code uint32
	msg  string
}

func (e *statusError) Error() string {
	return e.msg
}

func (e *statusError) Code() uint32 {
	return e.code
}

// Success writes the standard {code, message, data} envelope.
func Success(c *gin.Context, data interface{}) {
	proxyutil.SuccessJson(c, data)
}

// Error writes a failed envelope carrying the business code. The HTTP
// status stays 200; clients dispatch on the envelope code instead.
func Error(c *gin.Context, code int, message string) {
	proxyutil.FailJson(c, 200, &statusError{code: uint32(code), msg: message})
}
