package vision

import (
	"fmt"
	"image"
	"os"

	pigo "github.com/esimov/pigo/core"
	log "github.com/sirupsen/logrus"
	gocv "gocv.io/x/gocv"

	"mood-mirror-go/config"
)

// Mindestgüte einer pigo-Detektion, darunter gilt sie als Fehldetektion
const pigoQualityThreshold = 5.0

// Locator lokalisiert Gesichter in einem Graustufen-Frame.
// Eine leere Ergebnisliste ist kein Fehler.
type Locator interface {
	Detect(gray gocv.Mat) []image.Rectangle
	Close() error
}

// NewLocator erstellt den konfigurierten Gesichtslokalisator.
// Das Kaskaden-Artefakt ist eine extern gelieferte Datei; fehlt sie,
// ist das ein Konfigurationsfehler beim Start.
func NewLocator(cfg config.DetectorConfig) (Locator, error) {
	switch cfg.Method {
	case config.DetectorHaar, "":
		return newHaarLocator(cfg)
	case config.DetectorPigo:
		return newPigoLocator(cfg)
	default:
		return nil, fmt.Errorf("unbekannte detektor-methode %q", cfg.Method)
	}
}

// haarLocator verwendet die OpenCV-Kaskadenklassifikation
type haarLocator struct {
	cfg        config.DetectorConfig
	classifier gocv.CascadeClassifier
}

func newHaarLocator(cfg config.DetectorConfig) (*haarLocator, error) {
	classifier := gocv.NewCascadeClassifier()
	if !classifier.Load(cfg.CascadePath) {
		classifier.Close()
		return nil, fmt.Errorf("konnte kaskaden-artefakt nicht laden: %s", cfg.CascadePath)
	}
	log.Infof("Haar-Kaskade geladen: %s (scale=%.2f, neighbors=%d, min=%dx%d)",
		cfg.CascadePath, cfg.ScaleFactor, cfg.MinNeighbors, cfg.MinSizeWidth, cfg.MinSizeHeight)
	return &haarLocator{cfg: cfg, classifier: classifier}, nil
}

func (h *haarLocator) Detect(gray gocv.Mat) []image.Rectangle {
	return h.classifier.DetectMultiScaleWithParams(
		gray,
		h.cfg.ScaleFactor,
		h.cfg.MinNeighbors,
		0,
		image.Pt(h.cfg.MinSizeWidth, h.cfg.MinSizeHeight),
		image.Pt(0, 0),
	)
}

func (h *haarLocator) Close() error {
	return h.classifier.Close()
}

// pigoLocator verwendet den Pure-Go-Kaskadendetektor als Alternative,
// wenn keine OpenCV-Kaskade eingesetzt werden soll
type pigoLocator struct {
	cfg      config.DetectorConfig
	detector *pigo.Pigo
}

func newPigoLocator(cfg config.DetectorConfig) (*pigoLocator, error) {
	cascade, err := os.ReadFile(cfg.CascadePath)
	if err != nil {
		return nil, fmt.Errorf("konnte kaskaden-artefakt nicht lesen: %w", err)
	}

	detector, err := pigo.NewPigo().Unpack(cascade)
	if err != nil {
		return nil, fmt.Errorf("konnte kaskaden-artefakt nicht entpacken: %w", err)
	}

	log.Infof("Pigo-Kaskade geladen: %s (scale=%.2f, min=%d)",
		cfg.CascadePath, cfg.ScaleFactor, cfg.MinSizeWidth)
	return &pigoLocator{cfg: cfg, detector: detector}, nil
}

func (p *pigoLocator) Detect(gray gocv.Mat) []image.Rectangle {
	rows := gray.Rows()
	cols := gray.Cols()
	if rows == 0 || cols == 0 {
		return nil
	}

	pixels, err := gray.DataPtrUint8()
	if err != nil {
		// Mat ist nicht zusammenhängend, Kopie verwenden
		pixels = gray.ToBytes()
	}

	maxSize := rows
	if cols > rows {
		maxSize = cols
	}

	params := pigo.CascadeParams{
		MinSize:     p.cfg.MinSizeWidth,
		MaxSize:     maxSize,
		ShiftFactor: 0.1,
		ScaleFactor: p.cfg.ScaleFactor,
		ImageParams: pigo.ImageParams{
			Pixels: pixels,
			Rows:   rows,
			Cols:   cols,
			Dim:    cols,
		},
	}

	// Detektionen berechnen und überlappende Kandidaten clustern;
	// das Clustering übernimmt hier die Rolle des Nachbarschaftskriteriums
	dets := p.detector.RunCascade(params, 0.0)
	dets = p.detector.ClusterDetections(dets, 0.2)

	rects := make([]image.Rectangle, 0, len(dets))
	for _, d := range dets {
		if d.Q < pigoQualityThreshold {
			continue
		}
		half := d.Scale / 2
		rects = append(rects, image.Rect(d.Col-half, d.Row-half, d.Col+half, d.Row+half))
	}
	return rects
}

func (p *pigoLocator) Close() error {
	return nil
}
