package httpapi

import (
	"errors"
	"net/http"

	"github.com/dmitrijs2005/chatkeeper/internal/common"
	"github.com/gin-gonic/gin"
)

const ownerKey = "owner"

type credentials struct {
	Username string `form:"username" json:"username"`
	Password string `form:"password" json:"password"`
}

func (h *Handler) bindCredentials(c *gin.Context) (credentials, bool) {
	var in credentials
	if err := c.ShouldBind(&in); err != nil || in.Username == "" || in.Password == "" {
		fail(c, http.StatusBadRequest, "Username & password required")
		return credentials{}, false
	}
	return in, true
}

func (h *Handler) handleRegister(c *gin.Context) {
	in, ok := h.bindCredentials(c)
	if !ok {
		return
	}

	acc, err := h.accounts.Register(c.Request.Context(), in.Username, in.Password)
	if err != nil {
		if errors.Is(err, common.ErrAlreadyExists) {
			fail(c, http.StatusConflict, "Username already taken")
			return
		}
		h.failFor(c, err, "Registration failed")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ok": true, "data": gin.H{"id": acc.ID, "username": acc.Username}})
}

func (h *Handler) handleLogin(c *gin.Context) {
	in, ok := h.bindCredentials(c)
	if !ok {
		return
	}

	token, err := h.accounts.Login(c.Request.Context(), in.Username, in.Password)
	if err != nil {
		if errors.Is(err, common.ErrorUnauthorized) {
			fail(c, http.StatusUnauthorized, "Invalid username or password")
			return
		}
		h.failFor(c, err, "Login failed")
		return
	}

	h.setSession(c, token, int(h.opts.SessionValidity.Seconds()))
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handler) handleLogout(c *gin.Context) {
	h.setSession(c, "", -1)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handler) setSession(c *gin.Context, token string, maxAge int) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(common.SessionCookieName, token, maxAge, "/", "", h.opts.SecureCookie, true)
}

// requireLogin resolves the session cookie to the owner used by every
// scoped handler.
func (h *Handler) requireLogin(c *gin.Context) {
	token, err := c.Cookie(common.SessionCookieName)
	if err != nil || token == "" {
		fail(c, http.StatusUnauthorized, "auth-required")
		return
	}
	username, err := h.accounts.Authenticate(token)
	if err != nil {
		fail(c, http.StatusUnauthorized, "auth-required")
		return
	}
	c.Set(ownerKey, username)
	c.Next()
}

func owner(c *gin.Context) string {
	return c.GetString(ownerKey)
}
