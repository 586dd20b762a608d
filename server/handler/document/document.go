package document

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi/proxyutil"
	"github.com/xxxsen/davconnector/davclient"
	"github.com/xxxsen/davconnector/document"
	"github.com/xxxsen/davconnector/server/middleware"
	"github.com/xxxsen/davconnector/server/model"
	"github.com/xxxsen/davconnector/server/trust"
	"go.uber.org/zap"
)

type DocumentHandler struct {
	mgr    document.IManager
	policy trust.IHostPolicy
}

func NewDocumentHandler(mgr document.IManager, policy trust.IHostPolicy) *DocumentHandler {
	return &DocumentHandler{mgr: mgr, policy: policy}
}

func sessionOf(c *gin.Context) string {
	sid, _ := middleware.GetSessionID(c.Request.Context())
	return sid
}

// fail maps a document error to its answer. A webdav 401 becomes an authentication request
// the client can retry after login.
func (h *DocumentHandler) fail(c *gin.Context, ctx context.Context, authCtx string, u string, err error) {
	switch {
	case errors.Is(err, davclient.ErrUnauthorized):
		logutil.GetLogger(ctx).Debug("webdav authentication required", zap.String("context", authCtx), zap.String("url", u))
		c.AbortWithStatusJSON(http.StatusUnauthorized, &model.AuthRequiredMessage{Context: authCtx, URL: u})
	case errors.Is(err, document.ErrDocumentNotFound):
		proxyutil.FailJson(c, http.StatusNotFound, err)
	case errors.Is(err, document.ErrReadOnly), errors.Is(err, document.ErrDocumentTooLarge), errors.Is(err, document.ErrNotWebdavURL):
		proxyutil.FailJson(c, http.StatusBadRequest, err)
	default:
		logutil.GetLogger(ctx).Error("document operation failed", zap.String("context", authCtx), zap.String("url", u), zap.Error(err))
		proxyutil.FailJson(c, http.StatusInternalServerError, err)
	}
}

func (h *DocumentHandler) Open(c *gin.Context, ctx context.Context, request interface{}) {
	req := request.(*model.OpenDocumentRequest)
	if len(req.URL) == 0 {
		proxyutil.FailJson(c, http.StatusBadRequest, fmt.Errorf("no url found"))
		return
	}
	if !h.policy.Allowed(req.URL) {
		proxyutil.FailJson(c, http.StatusForbidden, fmt.Errorf("host not trusted, url:%s", req.URL))
		return
	}
	doc, err := h.mgr.Open(c.Request.Context(), sessionOf(c), req.URL, req.UserName)
	if err != nil {
		h.fail(c, ctx, model.AuthContextLoad, req.URL, err)
		return
	}
	proxyutil.SuccessJson(c, &model.OpenDocumentResponse{
		ID:       doc.ID,
		URL:      doc.URL,
		Content:  string(doc.Content),
		ReadOnly: doc.ReadOnly,
	})
}

func (h *DocumentHandler) Sync(c *gin.Context, ctx context.Context, request interface{}) {
	req := request.(*model.SyncDocumentRequest)
	id := c.Param("id")
	if err := h.mgr.Sync(c.Request.Context(), sessionOf(c), id, []byte(req.Content)); err != nil {
		h.fail(c, ctx, model.AuthContextEditing, h.urlOf(c, id), err)
		return
	}
	proxyutil.SuccessJson(c, &model.SyncDocumentResponse{})
}

func (h *DocumentHandler) Save(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")
	if err := h.mgr.Save(ctx, sessionOf(c), id); err != nil {
		h.fail(c, ctx, model.AuthContextSave, h.urlOf(c, id), err)
		return
	}
	proxyutil.SuccessJson(c, &model.SaveDocumentResponse{})
}

func (h *DocumentHandler) Close(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")
	u := h.urlOf(c, id)
	if err := h.mgr.Close(ctx, sessionOf(c), id); err != nil {
		h.fail(c, ctx, model.AuthContextEditing, u, err)
		return
	}
	proxyutil.SuccessJson(c, &model.CloseDocumentResponse{})
}

func (h *DocumentHandler) urlOf(c *gin.Context, id string) string {
	doc, err := h.mgr.Get(c.Request.Context(), sessionOf(c), id)
	if err != nil {
		return ""
	}
	return doc.URL
}
