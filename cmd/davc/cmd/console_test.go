package cmd

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xxxsen/davconnector/session"
)

func newTestConsole(input string) (*Console, *bytes.Buffer) {
	out := &bytes.Buffer{}
	return NewConsole(strings.NewReader(input), out), out
}

func TestPromptCredential(t *testing.T) {
	c, out := newTestConsole("alice\nsecret\n")
	cred, err := c.PromptCredential(context.Background(), "http://h/", "", nil)
	require.NoError(t, err)
	assert.Equal(t, "alice", cred.Username)
	assert.Equal(t, "secret", cred.Password)
	assert.Contains(t, out.String(), "http://h/")
}

func TestPromptCredentialPrefill(t *testing.T) {
	c, out := newTestConsole("\npw")
	cred, err := c.PromptCredential(context.Background(), "http://h/", "bob", errors.New("bad password"))
	require.NoError(t, err)
	assert.Equal(t, "bob", cred.Username)
	assert.Equal(t, "pw", cred.Password)
	assert.Contains(t, out.String(), "bad password")
	assert.Contains(t, out.String(), "[bob]")
}

func TestPromptCredentialCanceled(t *testing.T) {
	c, _ := newTestConsole("")
	_, err := c.PromptCredential(context.Background(), "http://h/", "", nil)
	assert.True(t, errors.Is(err, session.ErrLoginCanceled))
}

func TestConfirm(t *testing.T) {
	c, _ := newTestConsole("y\nno\n")
	assert.True(t, c.Confirm("Logout", "sure?"))
	assert.False(t, c.Confirm("Logout", "sure?"))
	assert.False(t, c.Confirm("Logout", "sure?"))
}

func TestChoose(t *testing.T) {
	choices := []string{"http://a/", "http://b/"}
	c, _ := newTestConsole("2\n\nx\n")
	idx, ok := c.Choose("Server URL:", choices, "")
	assert.True(t, ok)
	assert.Equal(t, 1, idx)

	_, ok = c.Choose("Server URL:", choices, "")
	assert.False(t, ok)

	c, _ = newTestConsole("\n")
	idx, ok = c.Choose("Server URL:", choices, "http://b/")
	assert.True(t, ok)
	assert.Equal(t, 1, idx)
}
