package events

import (
	"image"
	"time"
)

// Box ist ein achsenparalleles Begrenzungsrechteck in Framekoordinaten.
type Box struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// BoxFromRect wandelt ein image.Rectangle in eine Box um.
func BoxFromRect(r image.Rectangle) Box {
	return Box{X: r.Min.X, Y: r.Min.Y, Width: r.Dx(), Height: r.Dy()}
}

// DetectionEvent beschreibt ein klassifiziertes Gesicht in einem Frame.
// Jedes Event steht für sich; es gibt keine Identität über Frames hinweg.
type DetectionEvent struct {
	Timestamp  time.Time          `json:"timestamp"`
	Source     string             `json:"source"`
	Label      string             `json:"label"`
	Confidence float64            `json:"confidence"`
	Box        Box                `json:"box"`
	Scores     map[string]float64 `json:"scores"`
}

// Sink konsumiert Detektions-Events. Implementierungen dürfen die
// Frame-Schleife nicht nennenswert blockieren und melden Fehler selbst.
type Sink interface {
	Publish(ev DetectionEvent)
}
