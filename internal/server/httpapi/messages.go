package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (h *Handler) handleListMessages(c *gin.Context) {
	rows, err := h.messages.List(c.Request.Context(), owner(c), 0)
	if err != nil {
		h.failFor(c, err, "Failed to load messages")
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "data": rows})
}

func (h *Handler) handleCreateMessage(c *gin.Context) {
	var in struct {
		Body string `form:"body" json:"body"`
	}
	if err := c.ShouldBind(&in); err != nil {
		fail(c, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	m, err := h.messages.Create(c.Request.Context(), owner(c), in.Body)
	if err != nil {
		h.failFor(c, err, "Failed to save message")
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "data": m})
}

func (h *Handler) handleDeleteMessage(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	n, err := h.messages.Delete(c.Request.Context(), id, owner(c))
	if err != nil {
		h.failFor(c, err, "Failed to delete message")
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": n > 0, "affected": n})
}
