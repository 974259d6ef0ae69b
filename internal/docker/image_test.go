package docker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDrainPushStream covers the daemon's in-stream error reporting: a
// push that fails mid-stream must surface the error entry, and a clean
// stream must replay status lines to the progress writer.
func TestDrainPushStream(t *testing.T) {
	t.Run("clean stream", func(t *testing.T) {
		stream := `{"status":"The push refers to repository [localhost:32000/livepatch]"}
{"status":"Pushed"}
{"status":"1.0: digest: sha256:abc size: 1234"}`

		var out strings.Builder
		err := drainPushStream(strings.NewReader(stream), &out)
		require.NoError(t, err)
		assert.Contains(t, out.String(), "digest: sha256:abc")
	})

	t.Run("error entry aborts", func(t *testing.T) {
		stream := `{"status":"Preparing"}
{"error":"connection refused: localhost:32000"}`

		err := drainPushStream(strings.NewReader(stream), nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "connection refused")
	})

	t.Run("malformed stream", func(t *testing.T) {
		err := drainPushStream(strings.NewReader(`{"status":`), nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "malformed push progress stream")
	})

	t.Run("empty stream", func(t *testing.T) {
		assert.NoError(t, drainPushStream(strings.NewReader(""), nil))
	})
}
