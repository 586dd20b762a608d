package login

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi/proxyutil"
	"github.com/xxxsen/davconnector/credstore"
	"github.com/xxxsen/davconnector/davurl"
	"github.com/xxxsen/davconnector/server/middleware"
	"github.com/xxxsen/davconnector/server/model"
	"go.uber.org/zap"
)

const actionLogout = "logout"

type LoginHandler struct {
	creds credstore.ICredentialStore
}

func NewLoginHandler(creds credstore.ICredentialStore) *LoginHandler {
	return &LoginHandler{creds: creds}
}

// Login receives the credentials of a server for the current session, or drops every
// credential of the session when called with action=logout.
func (h *LoginHandler) Login(c *gin.Context) {
	ctx := c.Request.Context()
	sid, ok := middleware.GetSessionID(ctx)
	if !ok {
		proxyutil.FailStatus(c, http.StatusBadRequest, fmt.Errorf("no session found"))
		return
	}
	logger := logutil.GetLogger(ctx).With(zap.String("session", sid))
	if c.Query("action") == actionLogout || c.PostForm("action") == actionLogout {
		if err := h.creds.Invalidate(ctx, sid); err != nil {
			proxyutil.FailStatus(c, http.StatusInternalServerError, fmt.Errorf("invalidate session failed, err:%w", err))
			return
		}
		logger.Info("session logged out")
		c.Status(http.StatusOK)
		return
	}
	req := &model.LoginRequest{}
	if err := c.ShouldBind(req); err != nil {
		proxyutil.FailStatus(c, http.StatusBadRequest, fmt.Errorf("bind login form failed, err:%w", err))
		return
	}
	serverID, err := davurl.ServerID(req.Server)
	if err != nil {
		proxyutil.FailStatus(c, http.StatusBadRequest, fmt.Errorf("invalid server, err:%w", err))
		return
	}
	user := strings.TrimSpace(req.User)
	if err := h.creds.Put(ctx, sid, serverID, &credstore.Credential{Username: user, Password: req.Passwd}); err != nil {
		proxyutil.FailStatus(c, http.StatusInternalServerError, fmt.Errorf("store credentials failed, err:%w", err))
		return
	}
	logger.Debug("credentials submitted", zap.String("user", user), zap.String("server", serverID))
	c.Status(http.StatusOK)
}
