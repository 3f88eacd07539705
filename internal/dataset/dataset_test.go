package dataset

import (
	"image"
	"image/png"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mood-mirror-go/internal/vision"
)

var testClasses = []string{"angry", "disgust", "fear", "happy", "neutral", "sad", "surprise"}

// writeTestTree legt einen Verzeichnisbaum mit count Bildern pro Klasse an.
func writeTestTree(t *testing.T, dir string, classes []string, count int) {
	t.Helper()
	for _, class := range classes {
		classDir := filepath.Join(dir, class)
		require.NoError(t, os.MkdirAll(classDir, 0755))
		for i := 0; i < count; i++ {
			writeTestImage(t, filepath.Join(classDir, "img"+string(rune('a'+i))+".png"))
		}
	}
}

func writeTestImage(t *testing.T, path string) {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 48, 48))
	for i := range img.Pix {
		img.Pix[i] = uint8(i % 256)
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func TestScan_ClassOrderIsLexicographicAndStable(t *testing.T) {
	dir := t.TempDir()
	writeTestTree(t, dir, testClasses, 1)

	first, err := Scan(dir)
	require.NoError(t, err)
	assert.Equal(t, testClasses, first.Classes())

	// Wiederholtes Einlesen eines unveränderten Baums liefert dieselbe
	// Indexzuordnung
	for i := 0; i < 3; i++ {
		again, err := Scan(dir)
		require.NoError(t, err)
		assert.Equal(t, first.Classes(), again.Classes())
	}
}

func TestScan_EmptyClassDirIsConfigurationError(t *testing.T) {
	dir := t.TempDir()
	writeTestTree(t, dir, testClasses, 1)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "bored"), 0755))

	_, err := Scan(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bored")
}

func TestScan_MissingRootIsConfigurationError(t *testing.T) {
	_, err := Scan(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}

func TestSplit_Fractions(t *testing.T) {
	dir := t.TempDir()
	writeTestTree(t, dir, testClasses, 5)

	set, err := Scan(dir)
	require.NoError(t, err)
	require.Equal(t, 35, set.Len())

	train, val := set.Split(0.2, rand.New(rand.NewSource(1)))
	assert.Equal(t, 7, val.Len())
	assert.Equal(t, 28, train.Len())
	assert.Equal(t, set.Classes(), train.Classes())
	assert.Equal(t, set.Classes(), val.Classes())
}

func TestBatches_DropsIncompleteRemainder(t *testing.T) {
	dir := t.TempDir()
	writeTestTree(t, dir, testClasses, 2) // 14 Beispiele

	set, err := Scan(dir)
	require.NoError(t, err)

	batches := set.Batches(4)
	require.Len(t, batches, 3)
	for _, b := range batches {
		assert.Len(t, b, 4)
	}
}

func TestLoadPatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "face.png")
	writeTestImage(t, path)

	patch, err := LoadPatch(path)
	require.NoError(t, err)
	assert.Len(t, patch, vision.PatchSize*vision.PatchSize)
	for _, v := range patch {
		assert.GreaterOrEqual(t, v, float32(0))
		assert.LessOrEqual(t, v, float32(1))
	}
}
