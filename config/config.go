package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/xxxsen/common/logger"
)

type WebdavConfig struct {
	LockOnOpen       bool   `json:"lock_on_open"`
	EnforcedURL      string `json:"enforced_url"`
	AutosaveInterval int    `json:"autosave_interval"` //seconds, <=0 disable autosave
	HideConnectorTab bool   `json:"hide_connector_tab"`
	LockTimeout      int64  `json:"lock_timeout"` //seconds
}

type SecurityConfig struct {
	OnlyTrustedHosts bool     `json:"only_trusted_hosts"`
	TrustedHosts     []string `json:"trusted_hosts"`
}

type Config struct {
	Bind             string           `json:"bind"`
	LogInfo          logger.LogConfig `json:"log_info"`
	Webdav           WebdavConfig     `json:"webdav"`
	Security         SecurityConfig   `json:"security"`
	SessionTTL       int64            `json:"session_ttl"`        //seconds
	MaxSessions      int              `json:"max_sessions"`
	RootProbeTimeout int64            `json:"root_probe_timeout"` //seconds
	URLInfoCacheSize int64            `json:"url_info_cache_size"`
	BuiltinServerURL string           `json:"builtin_server_url"`
	MaxDocSize       int64            `json:"max_doc_size"`
}

func Parse(f string) (*Config, error) {
	raw, err := os.ReadFile(f)
	if err != nil {
		return nil, fmt.Errorf("read file:%w", err)
	}
	c := &Config{
		Bind: ":9901",
		Webdav: WebdavConfig{
			LockOnOpen:       true,
			AutosaveInterval: 5,
			LockTimeout:      600,
		},
		SessionTTL:       12 * 60 * 60,
		MaxSessions:      10000,
		RootProbeTimeout: 3,
		URLInfoCacheSize: 1024,
		MaxDocSize:       16 * 1024 * 1024,
	}
	if err := json.Unmarshal(raw, c); err != nil {
		return nil, fmt.Errorf("decode json failed, err:%w", err)
	}
	return c, nil
}
