package urlinfo

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi/proxyutil"
	"github.com/xxxsen/davconnector/cacheapi"
	"github.com/xxxsen/davconnector/credstore"
	"github.com/xxxsen/davconnector/davclient"
	"github.com/xxxsen/davconnector/davurl"
	"github.com/xxxsen/davconnector/server/middleware"
	"github.com/xxxsen/davconnector/server/model"
	"github.com/xxxsen/davconnector/server/trust"
	"go.uber.org/zap"
)

// errPartialRoot keeps a root found by an unfinished probe out of the cache.
var errPartialRoot = errors.New("partial root")

type URLInfoHandler struct {
	dav       davclient.IClient
	creds     credstore.ICredentialStore
	policy    trust.IHostPolicy
	rootCache cacheapi.ICache[string, string]
}

func NewURLInfoHandler(dav davclient.IClient, creds credstore.ICredentialStore, policy trust.IHostPolicy, rootCache cacheapi.ICache[string, string]) *URLInfoHandler {
	return &URLInfoHandler{dav: dav, creds: creds, policy: policy, rootCache: rootCache}
}

// URLInfo answers whether the url points to a webdav file or folder, together with the root
// of the webdav server it belongs to.
func (h *URLInfoHandler) URLInfo(c *gin.Context) {
	ctx := c.Request.Context()
	u := c.Query("url")
	if !davurl.IsAcceptable(u) {
		proxyutil.FailStatus(c, http.StatusBadRequest, fmt.Errorf("invalid url:%s", u))
		return
	}
	if !h.policy.Allowed(u) {
		proxyutil.FailStatus(c, http.StatusForbidden, fmt.Errorf("host not trusted, url:%s", u))
		return
	}
	sid, _ := middleware.GetSessionID(ctx)
	serverID, err := davurl.ServerID(u)
	if err != nil {
		proxyutil.FailStatus(c, http.StatusBadRequest, err)
		return
	}
	cred, _, err := h.creds.Get(ctx, sid, serverID)
	if err != nil {
		proxyutil.FailStatus(c, http.StatusInternalServerError, fmt.Errorf("read credentials failed, err:%w", err))
		return
	}
	typ, err := h.dav.ResourceType(ctx, u, cred)
	if errors.Is(err, davclient.ErrUnauthorized) {
		if cred != nil && len(cred.Username) > 0 && len(cred.Password) > 0 {
			logutil.GetLogger(ctx).Warn("failed login attempt", zap.String("user", cred.Username), zap.String("server", serverID))
		}
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	if err != nil {
		logutil.GetLogger(ctx).Debug("probe url failed", zap.String("url", u), zap.Error(err))
		c.JSON(http.StatusOK, &model.URLInfoErrorResponse{ErrorMessage: err.Error()})
		return
	}
	var partial string
	root, err := cacheapi.Load(ctx, h.rootCache, davurl.StripMarker(u), func(ctx context.Context, k string) (string, error) {
		root, complete := h.dav.FindRoot(ctx, k, cred)
		if !complete {
			partial = root
			return "", errPartialRoot
		}
		return root, nil
	})
	if errors.Is(err, errPartialRoot) {
		root, err = partial, nil
	}
	if err != nil {
		c.JSON(http.StatusOK, &model.URLInfoErrorResponse{ErrorMessage: err.Error()})
		return
	}
	c.JSON(http.StatusOK, &model.URLInfoResponse{
		Type:    typ.String(),
		RootURL: root,
	})
}
