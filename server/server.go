package server

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/webapi"
	"github.com/xxxsen/common/webapi/proxyutil"
	"github.com/xxxsen/davconnector/server/handler/document"
	"github.com/xxxsen/davconnector/server/handler/login"
	"github.com/xxxsen/davconnector/server/handler/pluginconfig"
	"github.com/xxxsen/davconnector/server/handler/urlinfo"
	"github.com/xxxsen/davconnector/server/middleware"
	"github.com/xxxsen/davconnector/server/model"
)

const (
	DispatcherPrefix = "/plugins-dispatcher"
)

func init() {
	gin.SetMode(gin.ReleaseMode)
}

type Server struct {
	c      *config
	engine webapi.IWebEngine
}

func New(bind string, opts ...Option) (*Server, error) {
	c := applyOpts(opts...)
	if err := c.validate(); err != nil {
		return nil, err
	}
	svr := &Server{c: c}
	var err error
	svr.engine, err = webapi.NewEngine("/", bind, webapi.WithRegister(svr.initAPI))
	if err != nil {
		return nil, err
	}
	return svr, nil
}

func (c *config) validate() error {
	if c.creds == nil {
		return fmt.Errorf("no credential store found")
	}
	if c.dav == nil {
		return fmt.Errorf("no webdav client found")
	}
	if c.docs == nil {
		return fmt.Errorf("no document manager found")
	}
	if c.rootCache == nil {
		return fmt.Errorf("no root url cache found")
	}
	return nil
}

func (s *Server) initAPI(router *gin.RouterGroup) {
	sessionMiddleware := middleware.SessionMiddleware(s.c.sessionMaxAge)
	bodyLimitMiddleware := middleware.BodyLimitMiddleware(s.c.maxBodySize)

	dispatcher := router.Group(DispatcherPrefix, sessionMiddleware)
	{
		loginHandler := login.NewLoginHandler(s.c.creds)
		dispatcher.POST("/login", loginHandler.Login)

		urlInfoHandler := urlinfo.NewURLInfoHandler(s.c.dav, s.c.creds, s.c.policy, s.c.rootCache)
		dispatcher.GET("/webdav-url-info", urlInfoHandler.URLInfo)

		configHandler := pluginconfig.NewPluginConfigHandler(s.c.clientOptions)
		dispatcher.GET("/webdav-config", configHandler.Options)
	}
	documentRouter := dispatcher.Group("/documents")
	{
		docHandler := document.NewDocumentHandler(s.c.docs, s.c.policy)
		documentRouter.POST("/open", proxyutil.WrapBizFunc(docHandler.Open, &model.OpenDocumentRequest{}))
		documentRouter.POST("/:id/sync", bodyLimitMiddleware, proxyutil.WrapBizFunc(docHandler.Sync, &model.SyncDocumentRequest{}))
		documentRouter.POST("/:id/autosave", docHandler.Save)
		documentRouter.POST("/:id/close", docHandler.Close)
	}
}

func (s *Server) Run() error {
	return s.engine.Run()
}
