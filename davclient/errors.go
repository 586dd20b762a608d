package davclient

import (
	"errors"
	"fmt"
)

var (
	ErrUnauthorized = errors.New("webdav server requires authentication")
)

// StatusError is returned for any answer the connector does not expect.
type StatusError struct {
	Method string
	URL    string
	Code   int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("webdav %s failed, url:%s, status:%d", e.Method, e.URL, e.Code)
}

// IsStatus reports whether err is a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code == code
	}
	return false
}
