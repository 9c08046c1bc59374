package gallery

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadTagCategories(t *testing.T) {
	presets, err := LoadTagCategories()
	require.NoError(t, err)

	assert.Contains(t, presets.Tags, "wallpaper")
	assert.Contains(t, presets.Categories, "poster")
}

func TestSpaceLevels(t *testing.T) {
	levels := SpaceLevels()
	require.Len(t, levels, 3)
	assert.Equal(t, int64(100), levels[0].MaxCount)
	assert.Equal(t, int64(100*mb), levels[0].MaxSize)
	assert.Equal(t, int64(10000), SpaceLevelFlagship.Quota().MaxCount)

	levels[0].MaxCount = 1
	assert.Equal(t, int64(100), SpaceLevelCommon.Quota().MaxCount)
	assert.False(t, SpaceLevel(7).Valid())
}
