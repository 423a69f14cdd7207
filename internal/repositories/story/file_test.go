package story

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/orgball2608/insta-stories-viewer/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileRepository_List(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stories.json")
	data := `[
		{"id":"s1","type":"image","url":"/a.jpg","duration":3000,"userId":"u1","userName":"Ann","userAvatarUrl":"/ann.png"},
		{"id":"s2","type":"video","url":"/b.mp4","userId":"u2","userName":"Bob","userAvatarUrl":"/bob.png"}
	]`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	stories, err := NewFileRepository(path).List(context.Background())
	require.NoError(t, err)
	require.Len(t, stories, 2)

	assert.Equal(t, "s1", stories[0].ID)
	assert.Equal(t, domain.MediaTypeImage, stories[0].Type)
	require.NotNil(t, stories[0].Duration)
	assert.EqualValues(t, 3000, *stories[0].Duration)
	assert.Equal(t, "/ann.png", stories[0].UserAvatarURL)

	assert.Equal(t, domain.MediaTypeVideo, stories[1].Type)
	assert.Nil(t, stories[1].Duration)
}

func TestFileRepository_Missing(t *testing.T) {
	_, err := NewFileRepository(filepath.Join(t.TempDir(), "nope.json")).List(context.Background())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFileRepository_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stories.json")
	require.NoError(t, os.WriteFile(path, []byte(`{not json`), 0o644))

	_, err := NewFileRepository(path).List(context.Background())
	assert.ErrorIs(t, err, ErrMalformed)
}
