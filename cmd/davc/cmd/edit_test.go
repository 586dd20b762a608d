package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentSaverChanged(t *testing.T) {
	file := filepath.Join(t.TempDir(), "a.xml")
	require.NoError(t, os.WriteFile(file, []byte("<a/>"), 0644))
	s := &documentSaver{file: file}
	s.remember([]byte("<a/>"))
	assert.False(t, s.changed())

	require.NoError(t, os.WriteFile(file, []byte("<b/>"), 0644))
	assert.True(t, s.changed())
	assert.False(t, s.changed())

	require.NoError(t, os.Remove(file))
	assert.False(t, s.changed())
}
