package emotion

import (
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"time"

	gorgonia "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"

	"mood-mirror-go/internal/vision"
)

// Metadata beschreibt ein persistiertes Modell. Die Label-Tabelle wird
// bewusst neben den Gewichten abgelegt, statt sie beim Laden erneut aus
// der Verzeichnisreihenfolge abzuleiten oder doppelt zu hartkodieren.
type Metadata struct {
	Classes    []string  `json:"classes"`
	InputShape []int     `json:"input_shape"`
	ImageSize  int       `json:"image_size"`
	TrainedAt  time.Time `json:"trained_at"`
}

// NewMetadata erstellt die Metadaten für eine trainierte Label-Tabelle.
func NewMetadata(classes []string) Metadata {
	return Metadata{
		Classes:    append([]string(nil), classes...),
		InputShape: []int{InputSize, InputSize, 1},
		ImageSize:  InputSize,
		TrainedAt:  time.Now(),
	}
}

// Validate prüft, ob die Metadaten zur Netzarchitektur passen.
func (m Metadata) Validate() error {
	if len(m.Classes) != NumClasses {
		return fmt.Errorf("metadaten enthalten %d klassen, erwartet %d", len(m.Classes), NumClasses)
	}
	if m.ImageSize != vision.PatchSize {
		return fmt.Errorf("metadaten erwarten bildgröße %d, unterstützt wird %d", m.ImageSize, vision.PatchSize)
	}
	return nil
}

// SaveMetadata schreibt die Modell-Metadaten als JSON.
func SaveMetadata(path string, meta Metadata) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("konnte metadaten nicht serialisieren: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("konnte metadaten nicht schreiben: %w", err)
	}
	return nil
}

// LoadMetadata liest und validiert die Modell-Metadaten.
func LoadMetadata(path string) (Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Metadata{}, fmt.Errorf("konnte metadaten nicht lesen: %w", err)
	}
	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return Metadata{}, fmt.Errorf("konnte metadaten nicht parsen: %w", err)
	}
	if err := meta.Validate(); err != nil {
		return Metadata{}, err
	}
	return meta, nil
}

// saveWeights persistiert die lernbaren Parameter als gob-kodierte Tensoren
// in der Reihenfolge von learnables().
func saveWeights(path string, learnables gorgonia.Nodes) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("konnte gewichtsdatei nicht anlegen: %w", err)
	}
	defer f.Close()

	enc := gob.NewEncoder(f)
	for _, node := range learnables {
		dense, ok := node.Value().(*tensor.Dense)
		if !ok {
			return fmt.Errorf("parameter %s hat keinen dichten tensor-wert", node.Name())
		}
		if err := enc.Encode(dense); err != nil {
			return fmt.Errorf("konnte parameter %s nicht kodieren: %w", node.Name(), err)
		}
	}
	return nil
}

// loadWeights liest persistierte Gewichte und bindet sie an die Parameter
// eines frisch aufgebauten Graphen. Formabweichungen schlagen laut fehl.
func loadWeights(path string, learnables gorgonia.Nodes) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("konnte gewichtsdatei nicht öffnen: %w", err)
	}
	defer f.Close()

	dec := gob.NewDecoder(f)
	for _, node := range learnables {
		var dense tensor.Dense
		if err := dec.Decode(&dense); err != nil {
			return fmt.Errorf("konnte parameter %s nicht dekodieren: %w", node.Name(), err)
		}
		if !dense.Shape().Eq(node.Shape()) {
			return fmt.Errorf("parameter %s: gespeicherte form %v passt nicht zu %v",
				node.Name(), dense.Shape(), node.Shape())
		}
		if err := gorgonia.Let(node, &dense); err != nil {
			return fmt.Errorf("konnte parameter %s nicht binden: %w", node.Name(), err)
		}
	}
	return nil
}
