package emotion

import (
	"fmt"

	gorgonia "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

const (
	// InputSize ist die Kantenlänge der Graustufen-Eingabe
	InputSize = 48
	// NumClasses ist die Größe des festen Emotions-Vokabulars
	NumClasses = 7

	conv1Filters = 64
	conv2Filters = 128
	denseUnits   = 128

	// Nach zwei valid-Faltungen (48→46, 23→21) und zwei 2×2-Poolings
	// (46→23, 21→10) bleiben 10×10 Aktivierungen pro Filter übrig
	flatSize = conv2Filters * 10 * 10
)

// DefaultLabels ist das kanonische Sieben-Klassen-Vokabular. Die
// Klassenreihenfolge eines Modells bestimmt allein die mit den Gewichten
// persistierte Tabelle; sie ergibt sich beim Training aus der
// lexikographischen Ordnung der Klassenverzeichnisse.
var DefaultLabels = []string{"Angry", "Disgust", "Fear", "Happy", "Sad", "Surprise", "Neutral"}

// network hält den Berechnungsgraphen und die lernbaren Parameter:
// zwei Faltungskerne sowie Gewichte und Bias der beiden Dense-Schichten.
type network struct {
	g *gorgonia.ExprGraph

	w0 *gorgonia.Node // conv 64×1×3×3
	w1 *gorgonia.Node // conv 128×64×3×3
	w2 *gorgonia.Node // dense 12800×128
	b2 *gorgonia.Node
	w3 *gorgonia.Node // dense 128×7
	b3 *gorgonia.Node

	out *gorgonia.Node // softmax-Ausgabe (batch×7)
}

// newNetwork legt die lernbaren Parameter mit Glorot-Initialisierung an.
func newNetwork(g *gorgonia.ExprGraph) *network {
	return &network{
		g: g,
		w0: gorgonia.NewTensor(g, tensor.Float32, 4,
			gorgonia.WithShape(conv1Filters, 1, 3, 3),
			gorgonia.WithName("w0"), gorgonia.WithInit(gorgonia.GlorotN(1.0))),
		w1: gorgonia.NewTensor(g, tensor.Float32, 4,
			gorgonia.WithShape(conv2Filters, conv1Filters, 3, 3),
			gorgonia.WithName("w1"), gorgonia.WithInit(gorgonia.GlorotN(1.0))),
		w2: gorgonia.NewMatrix(g, tensor.Float32,
			gorgonia.WithShape(flatSize, denseUnits),
			gorgonia.WithName("w2"), gorgonia.WithInit(gorgonia.GlorotN(1.0))),
		b2: gorgonia.NewMatrix(g, tensor.Float32,
			gorgonia.WithShape(1, denseUnits),
			gorgonia.WithName("b2"), gorgonia.WithInit(gorgonia.Zeroes())),
		w3: gorgonia.NewMatrix(g, tensor.Float32,
			gorgonia.WithShape(denseUnits, NumClasses),
			gorgonia.WithName("w3"), gorgonia.WithInit(gorgonia.GlorotN(1.0))),
		b3: gorgonia.NewMatrix(g, tensor.Float32,
			gorgonia.WithShape(1, NumClasses),
			gorgonia.WithName("b3"), gorgonia.WithInit(gorgonia.Zeroes())),
	}
}

// learnables gibt die Parameter in fester Reihenfolge zurück.
// Diese Reihenfolge bestimmt auch das Layout der persistierten Gewichte.
func (n *network) learnables() gorgonia.Nodes {
	return gorgonia.Nodes{n.w0, n.w1, n.w2, n.b2, n.w3, n.b3}
}

// fwd baut den Vorwärtspfad auf: zwei Faltungs-/Pooling-Blöcke, ein
// Dense-Kopf mit Dropout und eine Softmax-Ausgabe. Dropout ist nur im
// Trainingsgraphen aktiv.
func (n *network) fwd(x *gorgonia.Node, batchSize int, dropout float64, training bool) error {
	// Block 1: 48×48×1 → 46×46×64 → 23×23×64
	c0, err := gorgonia.Conv2d(x, n.w0, tensor.Shape{3, 3}, []int{0, 0}, []int{1, 1}, []int{1, 1})
	if err != nil {
		return fmt.Errorf("conv1: %w", err)
	}
	a0, err := gorgonia.Rectify(c0)
	if err != nil {
		return fmt.Errorf("relu1: %w", err)
	}
	p0, err := gorgonia.MaxPool2D(a0, tensor.Shape{2, 2}, []int{0, 0}, []int{2, 2})
	if err != nil {
		return fmt.Errorf("pool1: %w", err)
	}

	// Block 2: 23×23×64 → 21×21×128 → 10×10×128
	c1, err := gorgonia.Conv2d(p0, n.w1, tensor.Shape{3, 3}, []int{0, 0}, []int{1, 1}, []int{1, 1})
	if err != nil {
		return fmt.Errorf("conv2: %w", err)
	}
	a1, err := gorgonia.Rectify(c1)
	if err != nil {
		return fmt.Errorf("relu2: %w", err)
	}
	p1, err := gorgonia.MaxPool2D(a1, tensor.Shape{2, 2}, []int{0, 0}, []int{2, 2})
	if err != nil {
		return fmt.Errorf("pool2: %w", err)
	}

	// Dense-Kopf
	flat, err := gorgonia.Reshape(p1, tensor.Shape{batchSize, flatSize})
	if err != nil {
		return fmt.Errorf("flatten: %w", err)
	}
	fc, err := gorgonia.Mul(flat, n.w2)
	if err != nil {
		return fmt.Errorf("dense1: %w", err)
	}
	fc, err = gorgonia.BroadcastAdd(fc, n.b2, nil, []byte{0})
	if err != nil {
		return fmt.Errorf("dense1 bias: %w", err)
	}
	h, err := gorgonia.Rectify(fc)
	if err != nil {
		return fmt.Errorf("relu3: %w", err)
	}
	if training && dropout > 0 {
		h, err = gorgonia.Dropout(h, dropout)
		if err != nil {
			return fmt.Errorf("dropout: %w", err)
		}
	}

	logits, err := gorgonia.Mul(h, n.w3)
	if err != nil {
		return fmt.Errorf("dense2: %w", err)
	}
	logits, err = gorgonia.BroadcastAdd(logits, n.b3, nil, []byte{0})
	if err != nil {
		return fmt.Errorf("dense2 bias: %w", err)
	}

	out, err := gorgonia.SoftMax(logits, 1)
	if err != nil {
		return fmt.Errorf("softmax: %w", err)
	}
	n.out = out
	return nil
}
