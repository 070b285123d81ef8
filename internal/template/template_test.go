package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Lookup(t *testing.T) {
	r := NewRegistry()

	t.Run("known template", func(t *testing.T) {
		tpl, err := r.Lookup("zoom-ambient")
		require.NoError(t, err)
		assert.Equal(t, StyleZoom, tpl.Style)
		assert.Equal(t, 6, tpl.DurationSeconds)
		assert.Equal(t, "ambient.mp3", tpl.MusicFile)
	})

	t.Run("unknown template", func(t *testing.T) {
		_, err := r.Lookup("vhs-grunge")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrTemplateNotFound)
	})
}

func TestRegistry_List(t *testing.T) {
	r := NewRegistry()
	list := r.List()

	require.Len(t, list, len(defaults))

	// Sorted by ID, each registered exactly once.
	seen := make(map[string]int)
	for i := 1; i < len(list); i++ {
		assert.Less(t, list[i-1].ID, list[i].ID)
	}
	for _, tpl := range list {
		seen[tpl.ID]++
	}
	for id, n := range seen {
		assert.Equal(t, 1, n, "template %s listed more than once", id)
	}
}

func TestDefaults_AllValid(t *testing.T) {
	for _, tpl := range defaults {
		assert.NoError(t, tpl.validate(), "template %s", tpl.ID)
		assert.Positive(t, tpl.DurationSeconds)
		assert.True(t, tpl.Style.IsValid())
	}
}

func TestNewRegistryWith(t *testing.T) {
	t.Run("rejects duplicate IDs", func(t *testing.T) {
		_, err := NewRegistryWith([]Template{
			{ID: "a", Style: StyleZoom, DurationSeconds: 5, MusicFile: "a.mp3"},
			{ID: "a", Style: StyleSlide, DurationSeconds: 5, MusicFile: "b.mp3"},
		})
		require.Error(t, err)
	})

	t.Run("rejects zero duration", func(t *testing.T) {
		_, err := NewRegistryWith([]Template{
			{ID: "a", Style: StyleZoom, DurationSeconds: 0, MusicFile: "a.mp3"},
		})
		require.Error(t, err)
	})

	t.Run("rejects unknown style", func(t *testing.T) {
		_, err := NewRegistryWith([]Template{
			{ID: "a", Style: Style("wobble"), DurationSeconds: 5, MusicFile: "a.mp3"},
		})
		require.Error(t, err)
	})
}
