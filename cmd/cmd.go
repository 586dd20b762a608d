package main

import (
	"flag"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/xxxsen/common/idgen"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/davconnector/cacheapi"
	"github.com/xxxsen/davconnector/cacheapi/cachewrap"
	"github.com/xxxsen/davconnector/config"
	"github.com/xxxsen/davconnector/credstore"
	"github.com/xxxsen/davconnector/davclient"
	"github.com/xxxsen/davconnector/document"
	"github.com/xxxsen/davconnector/server"
	"github.com/xxxsen/davconnector/server/handler/pluginconfig"
	"github.com/xxxsen/davconnector/server/trust"
	"go.uber.org/zap"
)

var file = flag.String("config", "./config.json", "config file path")

func main() {
	flag.Parse()

	c, err := config.Parse(*file)
	if err != nil {
		panic(err)
	}
	logitem := c.LogInfo
	logger := logger.Init(logitem.File, logitem.Level, int(logitem.FileCount), int(logitem.FileSize), int(logitem.KeepDays), logitem.Console)
	if err := idgen.Init(1); err != nil {
		logger.Fatal("init idgen fail", zap.Error(err))
	}
	logger.Info("recv config", zap.Any("config", c))
	logger.Info("current webdav feature")
	logger.Info("-- lock on open", zap.Bool("enable", c.Webdav.LockOnOpen), zap.Int64("lock_timeout", c.Webdav.LockTimeout))
	logger.Info("-- autosave", zap.Int("interval", c.Webdav.AutosaveInterval))
	logger.Info("-- enforced server", zap.String("url", c.Webdav.EnforcedURL))
	logger.Info("-- only trusted hosts", zap.Bool("enable", c.Security.OnlyTrustedHosts), zap.Strings("hosts", c.Security.TrustedHosts))
	logger.Info("-- max document size", zap.String("size", humanize.IBytes(uint64(c.MaxDocSize))))

	opts, err := buildServerOptions(c)
	if err != nil {
		logger.Fatal("init server components fail", zap.Error(err))
	}
	svr, err := server.New(c.Bind, opts...)
	if err != nil {
		logger.Fatal("init server fail", zap.Error(err))
	}
	logger.Info("init server succ, start it...")
	if err := svr.Run(); err != nil {
		logger.Fatal("run server fail", zap.Error(err))
	}
}

func buildServerOptions(c *config.Config) ([]server.Option, error) {
	creds, err := credstore.New(
		credstore.WithSessionTTL(time.Duration(c.SessionTTL)*time.Second),
		credstore.WithMaxSessions(c.MaxSessions),
	)
	if err != nil {
		return nil, fmt.Errorf("init credential store failed, err:%w", err)
	}
	dav := davclient.New(davclient.WithRootProbeTimeout(time.Duration(c.RootProbeTimeout) * time.Second))
	docs := document.NewManager(dav, creds,
		document.WithLockEnabled(c.Webdav.LockOnOpen),
		document.WithLockTimeout(time.Duration(c.Webdav.LockTimeout)*time.Second),
		document.WithMaxDocSize(int(c.MaxDocSize)),
	)
	var rootCache cacheapi.ICache[string, string]
	rootCache, err = cachewrap.NewRistrettoCache[string, string](c.URLInfoCacheSize)
	if err != nil {
		return nil, fmt.Errorf("init root url cache failed, err:%w", err)
	}
	hosts := append([]string{c.Webdav.EnforcedURL}, c.Security.TrustedHosts...)
	return []server.Option{
		server.WithCredentialStore(creds),
		server.WithDavClient(dav),
		server.WithDocumentManager(docs),
		server.WithRootCache(rootCache),
		server.WithHostPolicy(trust.NewHostPolicy(c.Security.OnlyTrustedHosts, hosts...)),
		server.WithClientOptions(&pluginconfig.Options{
			HideConnectorTab: c.Webdav.HideConnectorTab,
			AutosaveInterval: c.Webdav.AutosaveInterval,
			EnforcedURL:      c.Webdav.EnforcedURL,
			LockOnOpen:       c.Webdav.LockOnOpen,
			BuiltinServerURL: c.BuiltinServerURL,
		}),
		server.WithSessionMaxAge(int(c.SessionTTL)),
		server.WithMaxBodySize(2*c.MaxDocSize), //json escaping may grow the content
	}, nil
}
