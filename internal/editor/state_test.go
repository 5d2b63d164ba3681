package editor

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "views.yaml")
	store := NewStateStore(path)

	views, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, views)

	want := []ViewState{
		{URL: "http://localhost:8177/server/client", Publisher: "react"},
		{URL: "http://localhost:8178/client"},
		{URL: "http://localhost:8179/client", Publisher: map[string]interface{}{"id": "vue", "name": "Vue"}},
	}
	require.NoError(t, store.Save(want))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "publisher: react")

	got, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestStateStoreDisabled(t *testing.T) {
	store := NewStateStore("")
	require.NoError(t, store.Save([]ViewState{{URL: "http://x"}}))

	views, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, views)
}

func TestStateStoreRejectsGarbage(t *testing.T) {
	path := writeFile(t, t.TempDir(), "views.yaml", "views: [unclosed")
	_, err := NewStateStore(path).Load()
	assert.Error(t, err)
}
