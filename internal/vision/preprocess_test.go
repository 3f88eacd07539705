package vision

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize_OutputShape(t *testing.T) {
	// Beliebige Eingabegrößen müssen auf exakt 48×48 abgebildet werden
	for _, size := range []image.Rectangle{
		image.Rect(0, 0, 48, 48),
		image.Rect(0, 0, 17, 93),
		image.Rect(0, 0, 300, 200),
		image.Rect(0, 0, 1, 1),
	} {
		img := image.NewGray(size)
		patch := Normalize(img)
		assert.Len(t, patch, PatchSize*PatchSize, "size %v", size)
	}
}

func TestNormalize_ValuesInUnitRange(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, color.RGBA{uint8(x * 4), uint8(y * 4), 255, 255})
		}
	}

	patch := Normalize(img)
	for i, v := range patch {
		if v < 0 || v > 1 {
			t.Fatalf("patch[%d] = %v liegt außerhalb von [0,1]", i, v)
		}
	}
}

func TestNormalize_AllZeroRegionStaysZero(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 100, 80))

	patch := Normalize(img)
	for i, v := range patch {
		assert.Zero(t, v, "patch[%d]", i)
	}
}

func TestNormalize_WhiteRegionIsOne(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 48, 48))
	for i := range img.Pix {
		img.Pix[i] = 255
	}

	patch := Normalize(img)
	for i, v := range patch {
		assert.InDelta(t, 1.0, v, 1e-6, "patch[%d]", i)
	}
}
