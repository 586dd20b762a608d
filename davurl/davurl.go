// Package davurl holds the url conventions shared by the connector server and its clients.
//
// A WebDAV backed url carries a scheme marker: http://host/a becomes webdav-http://host/a.
package davurl

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

const SchemeMarker = "webdav-"

var (
	webdavURLExp    = regexp.MustCompile(`^webdav-https?:`)
	acceptedURLExp  = regexp.MustCompile(`^(webdav-)?https?://`)
	defaultPortsMap = map[string]string{
		"http":  "80",
		"https": "443",
	}
)

// IsWebdavURL reports whether u is a marked WebDAV url.
func IsWebdavURL(u string) bool {
	return webdavURLExp.MatchString(u)
}

// IsAcceptable reports whether u looks like something the user may open.
func IsAcceptable(u string) bool {
	return acceptedURLExp.MatchString(u)
}

// ProcessURL prefixes the scheme marker when absent. It is idempotent.
func ProcessURL(u string) string {
	if strings.HasPrefix(u, SchemeMarker) {
		return u
	}
	return SchemeMarker + u
}

// StripMarker returns the plain http(s) url.
func StripMarker(u string) string {
	return strings.TrimPrefix(u, SchemeMarker)
}

// FolderURL makes sure a folder url ends with '/'. It is idempotent.
func FolderURL(u string) string {
	if strings.HasSuffix(u, "/") {
		return u
	}
	return u + "/"
}

// ParentFolderURL returns u when it is already a folder, else the folder containing it.
func ParentFolderURL(u string) string {
	idx := strings.LastIndex(u, "/")
	if idx < 0 {
		return u
	}
	return u[:idx+1]
}

// ServerID identifies the server a url belongs to: scheme://host:port, with the default port
// filled in and the user info dropped.
func ServerID(raw string) (string, error) {
	u, err := url.Parse(StripMarker(raw))
	if err != nil {
		return "", fmt.Errorf("parse url failed, url:%s, err:%w", raw, err)
	}
	if len(u.Scheme) == 0 || len(u.Host) == 0 {
		return "", fmt.Errorf("url without scheme or host, url:%s", raw)
	}
	return u.Scheme + "://" + HostPort(u), nil
}

// HostPort returns host:port of u, using the scheme's default port when none is given.
func HostPort(u *url.URL) string {
	port := u.Port()
	if len(port) == 0 {
		port = defaultPortsMap[strings.ToLower(u.Scheme)]
	}
	return u.Hostname() + ":" + port
}

// ClearUserInfo removes any user:password@ part.
func ClearUserInfo(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	u.User = nil
	return u.String()
}
