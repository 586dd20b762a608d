package model

// ClientOptions is what the browser side reads at startup, every value is a string.
type ClientOptions struct {
	HideConnectorTab       string `json:"hide_connector_tab"`
	WebdavAutosaveInterval string `json:"webdav_autosave_interval"`
	EnforcedWebdavServer   string `json:"enforced_webdav_server"`
	LockOnOpen             string `json:"lock_on_open"`
	BuiltinServerURL       string `json:"builtin_server_url,omitempty"`
}
