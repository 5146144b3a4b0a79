package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/xxxsen/kbsearch/internal/pkg/errcode"
	"github.com/xxxsen/kbsearch/internal/pkg/response"
)

type HealthHandler struct {
	db *sqlx.DB
}

func NewHealthHandler(db *sqlx.DB) *HealthHandler {
	return &HealthHandler{db: db}
}

func (h *HealthHandler) Check(c *gin.Context) {
	if err := h.db.PingContext(c.Request.Context()); err != nil {
		response.Error(c, errcode.ErrInternal, "database unreachable")
		return
	}
	response.Success(c, gin.H{"status": "ok"})
}
