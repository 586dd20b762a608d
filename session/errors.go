package session

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidURL        = errors.New("invalid url")
	ErrCannotOpen        = errors.New("cannot open url")
	ErrLoginCanceled     = errors.New("login canceled")
	ErrNoRepository      = errors.New("no repository configured")
	ErrSelectionRequired = errors.New("server selection required")
)

// SelectionRequiredError lists the enforced servers the user has to choose from.
type SelectionRequiredError struct {
	Choices     []string
	Preselected string
}

func (e *SelectionRequiredError) Error() string {
	return fmt.Sprintf("server selection required, choices:[%s]", strings.Join(e.Choices, ","))
}

func (e *SelectionRequiredError) Is(target error) bool {
	return target == ErrSelectionRequired
}
