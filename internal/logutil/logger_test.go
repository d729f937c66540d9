package logutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_WritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "sitebook.log")

	log, closer, err := New("info", path)
	require.NoError(t, err)

	log.Debug().Msg("hidden")
	log.Info().Str("kind", "update_status").Msg("command executed")
	closer()

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(b)
	assert.Contains(t, out, `"kind":"update_status"`)
	assert.Contains(t, out, `"service":"sitebook"`)
	assert.NotContains(t, out, "hidden")
	assert.Equal(t, 1, strings.Count(out, "\n"))
}

func TestNew_BadLevel(t *testing.T) {
	_, closer, err := New("loud", "")
	require.Error(t, err)
	closer()
}
