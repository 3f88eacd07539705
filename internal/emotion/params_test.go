package emotion

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetadata_Roundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metadata.json")
	meta := NewMetadata(DefaultLabels)

	require.NoError(t, SaveMetadata(path, meta))

	loaded, err := LoadMetadata(path)
	require.NoError(t, err)
	assert.Equal(t, meta.Classes, loaded.Classes)
	assert.Equal(t, []int{InputSize, InputSize, 1}, loaded.InputShape)
	assert.Equal(t, InputSize, loaded.ImageSize)
}

func TestMetadata_Validate(t *testing.T) {
	valid := NewMetadata(DefaultLabels)
	assert.NoError(t, valid.Validate())

	tooFew := NewMetadata(DefaultLabels[:3])
	assert.Error(t, tooFew.Validate())

	wrongSize := NewMetadata(DefaultLabels)
	wrongSize.ImageSize = 64
	assert.Error(t, wrongSize.Validate())
}

func TestLoadMetadata_RejectsWrongClassCount(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metadata.json")
	require.NoError(t, os.WriteFile(path,
		[]byte(`{"classes":["Happy","Sad"],"input_shape":[48,48,1],"image_size":48}`), 0644))

	_, err := LoadMetadata(path)
	assert.Error(t, err)
}

func TestLoadMetadata_MissingFile(t *testing.T) {
	_, err := LoadMetadata(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}
