package pluginconfig

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/davconnector/server/model"
)

type Options struct {
	HideConnectorTab bool
	AutosaveInterval int
	EnforcedURL      string
	LockOnOpen       bool
	BuiltinServerURL string
}

type PluginConfigHandler struct {
	rsp *model.ClientOptions
}

func NewPluginConfigHandler(opts *Options) *PluginConfigHandler {
	return &PluginConfigHandler{rsp: &model.ClientOptions{
		HideConnectorTab:       onOff(opts.HideConnectorTab),
		WebdavAutosaveInterval: strconv.Itoa(opts.AutosaveInterval),
		EnforcedWebdavServer:   opts.EnforcedURL,
		LockOnOpen:             onOff(opts.LockOnOpen),
		BuiltinServerURL:       opts.BuiltinServerURL,
	}}
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return ""
}

func (h *PluginConfigHandler) Options(c *gin.Context) {
	c.JSON(http.StatusOK, h.rsp)
}
