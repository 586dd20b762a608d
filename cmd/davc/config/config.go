package config

import (
	"encoding/json"
	"fmt"
	"os"
)

type Config struct {
	Server           string   `json:"server"` //connector address, eg: http://127.0.0.1:9901
	StateFile        string   `json:"state_file"`
	LogLevel         string   `json:"log_level"`
	Timeout          int64    `json:"timeout"`
	AutosaveInterval *int     `json:"autosave_interval"` //seconds, nil means the connector's value
	EnforcedURLs     []string `json:"enforced_urls"`
	BuiltinServerURL string   `json:"builtin_server_url"`
}

func Parse(f string) (*Config, error) {
	raw, err := os.ReadFile(f)
	if err != nil {
		return nil, fmt.Errorf("read file:%w", err)
	}
	c := &Config{
		Server:    "http://127.0.0.1:9901",
		StateFile: "./davc_state.json",
		LogLevel:  "info",
		Timeout:   30,
	}
	if err := json.Unmarshal(raw, c); err != nil {
		return nil, fmt.Errorf("unmarshal file:%w", err)
	}
	return c, nil
}
