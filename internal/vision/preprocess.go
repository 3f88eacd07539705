package vision

import (
	"image"

	"github.com/disintegration/imaging"
)

// PatchSize ist die Kantenlänge der quadratischen Graustufen-Eingabe des Klassifikators.
const PatchSize = 48

// Patch ist ein normalisiertes 48×48-Graustufenbild mit Werten in [0,1],
// zeilenweise abgelegt (Index y*PatchSize+x).
type Patch []float32

// Normalize wandelt einen beliebig großen Bildausschnitt in einen Patch um:
// Verkleinerung auf 48×48, Umwandlung in Graustufen, Skalierung mit 1/255.
func Normalize(img image.Image) Patch {
	resized := imaging.Resize(img, PatchSize, PatchSize, imaging.Lanczos)
	gray := imaging.Grayscale(resized)

	patch := make(Patch, PatchSize*PatchSize)
	for y := 0; y < PatchSize; y++ {
		for x := 0; x < PatchSize; x++ {
			// Nach Grayscale gilt R == G == B
			patch[y*PatchSize+x] = float32(gray.NRGBAAt(x, y).R) / 255.0
		}
	}
	return patch
}
