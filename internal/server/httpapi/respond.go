package httpapi

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/dmitrijs2005/chatkeeper/internal/common"
	"github.com/gin-gonic/gin"
)

func fail(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"ok": false, "error": msg})
}

// failFor maps service errors to a status. fallback is the message shown for
// anything unexpected; internal details are only logged.
func (h *Handler) failFor(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, common.ErrValidation):
		fail(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, common.ErrTimeout):
		h.logger.Warn(c.Request.Context(), fallback, "error", err)
		fail(c, http.StatusGatewayTimeout, "timeout")
	default:
		h.logger.Error(c.Request.Context(), fallback, "error", err)
		fail(c, http.StatusInternalServerError, fallback)
	}
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		fail(c, http.StatusBadRequest, "Invalid id")
		return 0, false
	}
	return id, true
}
