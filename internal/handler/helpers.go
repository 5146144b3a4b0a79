package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/xxxsen/kbsearch/internal/pkg/errcode"
	appErr "github.com/xxxsen/kbsearch/internal/pkg/errors"
	"github.com/xxxsen/kbsearch/internal/pkg/response"
)

func getRequestID(c *gin.Context) string {
	value, _ := c.Get("request_id")
	reqID, _ := value.(string)
	return reqID
}

func handleError(c *gin.Context, err error) {
	switch {
	case err == nil:
		return
	case appErr.IsInvalid(err):
		response.Error(c, errcode.ErrInvalid, err.Error())
	case appErr.IsNotFound(err):
		response.Error(c, errcode.ErrNotFound, "not found")
	default:
		response.Error(c, errcode.ErrSearchFailed, "search failed")
	}
}
