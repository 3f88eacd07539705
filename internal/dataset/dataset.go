package dataset

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	log "github.com/sirupsen/logrus"

	"mood-mirror-go/internal/vision"
)

// Example ist ein gelabeltes Trainingsbild: Pfad plus Klassenindex.
type Example struct {
	Path  string
	Class int
}

// Set ist ein eingelesener Datensatz mit fester Klassenzuordnung.
// Die Klassenindizes ergeben sich aus der lexikographischen Reihenfolge
// der Unterverzeichnisse; diese Zuordnung ist die Vertragsgrundlage
// zwischen Training und Inferenz.
type Set struct {
	classes  []string
	examples []Example
}

// Scan liest einen Verzeichnisbaum mit einem Unterverzeichnis pro Klasse ein.
// Ein fehlendes oder leeres Klassenverzeichnis ist ein Konfigurationsfehler,
// keine stille Degradierung.
func Scan(dir string) (*Set, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("konnte datensatzverzeichnis nicht lesen: %w", err)
	}

	// os.ReadDir sortiert bereits lexikographisch nach Dateinamen
	var classes []string
	for _, e := range entries {
		if e.IsDir() {
			classes = append(classes, e.Name())
		}
	}
	if len(classes) == 0 {
		return nil, fmt.Errorf("datensatzverzeichnis %s enthält keine klassenverzeichnisse", dir)
	}

	var examples []Example
	for idx, class := range classes {
		classDir := filepath.Join(dir, class)
		files, err := os.ReadDir(classDir)
		if err != nil {
			return nil, fmt.Errorf("konnte klassenverzeichnis %s nicht lesen: %w", classDir, err)
		}

		count := 0
		for _, f := range files {
			if f.IsDir() || !isImageFile(f.Name()) {
				continue
			}
			examples = append(examples, Example{
				Path:  filepath.Join(classDir, f.Name()),
				Class: idx,
			})
			count++
		}
		if count == 0 {
			return nil, fmt.Errorf("klassenverzeichnis %s enthält keine bilder", classDir)
		}
		log.Debugf("Klasse %d (%s): %d Bilder", idx, class, count)
	}

	log.Infof("Datensatz %s eingelesen: %d Klassen, %d Bilder", dir, len(classes), len(examples))
	return &Set{classes: classes, examples: examples}, nil
}

// Classes gibt die geordnete Label-Tabelle des Datensatzes zurück.
func (s *Set) Classes() []string {
	out := make([]string, len(s.classes))
	copy(out, s.classes)
	return out
}

// Len gibt die Anzahl der Beispiele zurück.
func (s *Set) Len() int {
	return len(s.examples)
}

// Shuffle mischt die Beispiele in place.
func (s *Set) Shuffle(rng *rand.Rand) {
	rng.Shuffle(len(s.examples), func(i, j int) {
		s.examples[i], s.examples[j] = s.examples[j], s.examples[i]
	})
}

// Split trennt einen Validierungsanteil vom Datensatz ab. Die Aufteilung
// erfolgt nach dem Mischen, damit alle Klassen in beiden Teilen vorkommen.
func (s *Set) Split(fraction float64, rng *rand.Rand) (train, val *Set) {
	shuffled := &Set{classes: s.classes, examples: append([]Example(nil), s.examples...)}
	shuffled.Shuffle(rng)

	n := int(float64(len(shuffled.examples)) * fraction)
	val = &Set{classes: s.classes, examples: shuffled.examples[:n]}
	train = &Set{classes: s.classes, examples: shuffled.examples[n:]}
	return train, val
}

// Batches zerlegt den Datensatz in Stapel fester Größe.
// Ein unvollständiger Reststapel wird verworfen, da der Berechnungsgraph
// eine feste Stapelgröße besitzt.
func (s *Set) Batches(batchSize int) [][]Example {
	var batches [][]Example
	for i := 0; i+batchSize <= len(s.examples); i += batchSize {
		batches = append(batches, s.examples[i:i+batchSize])
	}
	return batches
}

// LoadPatch lädt ein Beispielbild und normalisiert es auf die Eingabeform
// des Klassifikators (48×48 Graustufen, Werte in [0,1]).
func LoadPatch(path string) (vision.Patch, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return nil, fmt.Errorf("konnte bild %s nicht laden: %w", path, err)
	}
	return vision.Normalize(img), nil
}

func isImageFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg", ".png", ".bmp", ".gif", ".tif", ".tiff":
		return true
	}
	return false
}
