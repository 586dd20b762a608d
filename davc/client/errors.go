package client

import (
	"errors"
	"fmt"
)

var (
	ErrAuthRequired = errors.New("authentication required")
)

// AuthRequiredError is returned when the webdav server behind the connector asks for
// credentials. Context tells which operation should be retried after login.
type AuthRequiredError struct {
	Context string
	URL     string
}

func (e *AuthRequiredError) Error() string {
	return fmt.Sprintf("authentication required, context:%s, url:%s", e.Context, e.URL)
}

func (e *AuthRequiredError) Is(target error) bool {
	return target == ErrAuthRequired
}

type StatusError struct {
	API     string
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("call api failed, api:%s, code:%d, msg:%s", e.API, e.Code, e.Message)
}
