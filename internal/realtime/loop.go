package realtime

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"time"

	log "github.com/sirupsen/logrus"
	gocv "gocv.io/x/gocv"

	"mood-mirror-go/internal/emotion"
	"mood-mirror-go/internal/events"
	"mood-mirror-go/internal/vision"
)

// Predictor klassifiziert einen normalisierten Patch.
type Predictor interface {
	Predict(patch vision.Patch) (emotion.Prediction, error)
}

// Farben für die Annotation
var (
	boxColor   = color.RGBA{0, 255, 0, 0}
	labelColor = color.RGBA{255, 0, 0, 0}
)

// Options konfiguriert die Echtzeitschleife.
type Options struct {
	StopKey   int    // Tastencode, der die Schleife beendet
	Source    string // Quellenname für Detektions-Events
	Snapshots *SnapshotBuffer
	Sinks     []events.Sink
}

// Loop ist die Echtzeitschleife: pro Frame wird gelesen, in Graustufen
// gewandelt, lokalisiert, pro Gesicht klassifiziert, annotiert und
// angezeigt. Sie kennt zwei Zustände, laufend und gestoppt; gestoppt
// ist terminal und gibt alle Ressourcen genau einmal frei.
type Loop struct {
	source    Source
	display   Display // nil im Headless-Betrieb
	locator   vision.Locator
	predictor Predictor
	opts      Options
}

// NewLoop verdrahtet die Schleife. Quelle, Lokalisator und Klassifikator
// müssen bereits initialisiert sein; Startfehler behandeln die Aufrufer.
func NewLoop(source Source, display Display, locator vision.Locator, predictor Predictor, opts Options) *Loop {
	if opts.StopKey == 0 {
		opts.StopKey = 'q'
	}
	if opts.Source == "" {
		opts.Source = "camera"
	}
	return &Loop{
		source:    source,
		display:   display,
		locator:   locator,
		predictor: predictor,
		opts:      opts,
	}
}

// Run treibt die Schleife bis zum Stopp-Signal, Stromende oder Abbruch
// des Kontexts. Das Ende des Videostroms ist kein Fehler.
func (l *Loop) Run(ctx context.Context) error {
	defer func() {
		if err := l.source.Close(); err != nil {
			log.Warnf("Konnte Aufnahmegerät nicht sauber freigeben: %v", err)
		}
		if l.display != nil {
			if err := l.display.Close(); err != nil {
				log.Warnf("Konnte Anzeigefenster nicht sauber schließen: %v", err)
			}
		}
	}()

	frame := gocv.NewMat()
	defer frame.Close()
	gray := gocv.NewMat()
	defer gray.Close()

	log.Info("Echtzeitschleife gestartet")
	frames := 0

	for {
		// Abbruch wird einmal pro Frame-Tick geprüft
		select {
		case <-ctx.Done():
			log.Info("Echtzeitschleife durch Kontext beendet")
			return nil
		default:
		}

		if ok := l.source.Read(&frame); !ok {
			log.Info("Videostrom beendet, Echtzeitschleife stoppt")
			return nil
		}
		if frame.Empty() {
			continue
		}
		frames++

		gocv.CvtColor(frame, &gray, gocv.ColorBGRToGray)

		// Keine Gesichter sind kein Fehler, das Frame läuft unannotiert durch
		regions := l.locator.Detect(gray)
		for _, region := range regions {
			if err := l.processFace(&frame, gray, region); err != nil {
				log.Errorf("Gesichtsverarbeitung fehlgeschlagen: %v", err)
			}
		}

		if l.opts.Snapshots != nil {
			l.opts.Snapshots.Update(frame)
		}

		if l.display != nil {
			l.display.Show(frame)
			if key := l.display.PollKey(1); key == l.opts.StopKey {
				log.Infof("Stopp-Taste empfangen nach %d Frames", frames)
				return nil
			}
		}
	}
}

// processFace klassifiziert eine Gesichtsregion und annotiert das Frame.
// Die Regionen eines Frames werden strikt sequenziell auf denselben
// Framepuffer gezeichnet.
func (l *Loop) processFace(frame *gocv.Mat, gray gocv.Mat, region image.Rectangle) error {
	bounds := image.Rect(0, 0, gray.Cols(), gray.Rows())
	clipped := region.Intersect(bounds)
	if clipped.Empty() {
		return nil
	}

	roi := gray.Region(clipped)
	defer roi.Close()

	img, err := roi.ToImage()
	if err != nil {
		return fmt.Errorf("konnte gesichtsregion nicht extrahieren: %w", err)
	}

	pred, err := l.predictor.Predict(vision.Normalize(img))
	if err != nil {
		return err
	}

	gocv.Rectangle(frame, clipped, boxColor, 2)
	textOrigin := image.Pt(clipped.Min.X, clipped.Min.Y-10)
	if textOrigin.Y < 10 {
		textOrigin.Y = clipped.Min.Y + 20
	}
	gocv.PutText(frame, pred.Label, textOrigin, gocv.FontHersheyPlain, 1.5, labelColor, 2)

	l.publish(pred, clipped)
	return nil
}

func (l *Loop) publish(pred emotion.Prediction, region image.Rectangle) {
	if len(l.opts.Sinks) == 0 {
		return
	}

	scores := make(map[string]float64, len(pred.Scores))
	// Scores sind bereits in Label-Reihenfolge; die Tabelle liefert der Prädiktor
	if labeled, ok := l.predictor.(interface{ Labels() []string }); ok {
		for i, label := range labeled.Labels() {
			if i < len(pred.Scores) {
				scores[label] = float64(pred.Scores[i])
			}
		}
	}

	ev := events.DetectionEvent{
		Timestamp:  time.Now(),
		Source:     l.opts.Source,
		Label:      pred.Label,
		Confidence: float64(pred.Confidence),
		Box:        events.BoxFromRect(region),
		Scores:     scores,
	}
	for _, sink := range l.opts.Sinks {
		sink.Publish(ev)
	}
}
