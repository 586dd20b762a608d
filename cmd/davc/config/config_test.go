package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	f := filepath.Join(t.TempDir(), "davc.json")
	require.NoError(t, os.WriteFile(f, []byte(`{"server":"https://connector:8443","autosave_interval":0,"enforced_urls":["http://a/dav/"]}`), 0644))
	c, err := Parse(f)
	require.NoError(t, err)
	assert.Equal(t, "https://connector:8443", c.Server)
	assert.Equal(t, "./davc_state.json", c.StateFile)
	require.NotNil(t, c.AutosaveInterval)
	assert.Equal(t, 0, *c.AutosaveInterval)
	assert.Equal(t, []string{"http://a/dav/"}, c.EnforcedURLs)

	require.NoError(t, os.WriteFile(f, []byte(`{}`), 0644))
	c, err = Parse(f)
	require.NoError(t, err)
	assert.Nil(t, c.AutosaveInterval)
	assert.Equal(t, int64(30), c.Timeout)
}
