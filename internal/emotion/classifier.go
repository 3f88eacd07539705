package emotion

import (
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"
	gorgonia "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"

	"mood-mirror-go/internal/vision"
)

// Prediction ist das Klassifikationsergebnis für einen einzelnen Patch.
type Prediction struct {
	Label      string    // Name der wahrscheinlichsten Emotion
	Index      int       // Klassenindex der wahrscheinlichsten Emotion
	Confidence float32   // Softmax-Wert der wahrscheinlichsten Emotion
	Scores     []float32 // Vollständige Verteilung über alle Klassen
}

// Classifier ist das nach dem Laden unveränderliche Inferenz-Handle.
// Es wird explizit an die Aufrufer übergeben statt als globaler Zustand
// geteilt; der interne Mutex serialisiert nur den Graphdurchlauf.
type Classifier struct {
	mu     sync.Mutex
	net    *network
	vm     gorgonia.VM
	x      *gorgonia.Node
	labels []string
}

// LoadClassifier baut den Inferenzgraphen (Stapelgröße 1, ohne Dropout)
// und bindet die persistierten Gewichte samt Label-Tabelle.
func LoadClassifier(weightsPath, metadataPath string) (*Classifier, error) {
	meta, err := LoadMetadata(metadataPath)
	if err != nil {
		return nil, err
	}

	g := gorgonia.NewGraph()
	net := newNetwork(g)
	x := gorgonia.NewTensor(g, tensor.Float32, 4,
		gorgonia.WithShape(1, 1, InputSize, InputSize), gorgonia.WithName("x"))
	if err := net.fwd(x, 1, 0, false); err != nil {
		return nil, fmt.Errorf("konnte inferenzgraph nicht aufbauen: %w", err)
	}

	if err := loadWeights(weightsPath, net.learnables()); err != nil {
		return nil, err
	}

	log.Infof("Klassifikator geladen: %s (%d Klassen: %v)", weightsPath, len(meta.Classes), meta.Classes)
	return &Classifier{
		net:    net,
		vm:     gorgonia.NewTapeMachine(g),
		x:      x,
		labels: meta.Classes,
	}, nil
}

// Predict klassifiziert einen normalisierten Patch. Eine falsch geformte
// Eingabe ist ein Programmierfehler und schlägt laut fehl.
func (c *Classifier) Predict(patch vision.Patch) (Prediction, error) {
	if len(patch) != InputSize*InputSize {
		return Prediction{}, fmt.Errorf("patch hat %d werte, erwartet %d", len(patch), InputSize*InputSize)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	backing := make([]float32, len(patch))
	copy(backing, patch)
	xVal := tensor.New(tensor.Of(tensor.Float32),
		tensor.WithShape(1, 1, InputSize, InputSize), tensor.WithBacking(backing))

	if err := gorgonia.Let(c.x, xVal); err != nil {
		return Prediction{}, fmt.Errorf("konnte eingabe nicht binden: %w", err)
	}
	if err := c.vm.RunAll(); err != nil {
		return Prediction{}, fmt.Errorf("inferenz fehlgeschlagen: %w", err)
	}
	defer c.vm.Reset()

	raw, ok := c.net.out.Value().Data().([]float32)
	if !ok || len(raw) != NumClasses {
		return Prediction{}, fmt.Errorf("unerwartete ausgabeform des klassifikators")
	}

	scores := make([]float32, NumClasses)
	copy(scores, raw)

	best := 0
	for i, s := range scores {
		if s > scores[best] {
			best = i
		}
	}

	return Prediction{
		Label:      c.labels[best],
		Index:      best,
		Confidence: scores[best],
		Scores:     scores,
	}, nil
}

// Labels gibt die geordnete Label-Tabelle des geladenen Modells zurück.
func (c *Classifier) Labels() []string {
	out := make([]string, len(c.labels))
	copy(out, c.labels)
	return out
}

// Close gibt die Ressourcen der virtuellen Maschine frei.
func (c *Classifier) Close() error {
	return c.vm.Close()
}
