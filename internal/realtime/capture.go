package realtime

import (
	"fmt"
	"strconv"

	gocv "gocv.io/x/gocv"
)

// Source liefert Frames von einem Aufnahmegerät. Read gibt false zurück,
// wenn der Strom endet oder das Gerät getrennt wurde.
type Source interface {
	Read(dst *gocv.Mat) bool
	Close() error
}

// Display zeigt annotierte Frames an und liefert Tastendrücke zum
// Abfragen des Stopp-Signals.
type Display interface {
	Show(img gocv.Mat)
	PollKey(delayMs int) int
	Close() error
}

// CameraSource bindet eine OpenCV-VideoCapture als Source an.
type CameraSource struct {
	capture *gocv.VideoCapture
}

// OpenCamera öffnet das Aufnahmegerät. Ein numerischer Wert wird als
// Geräteindex interpretiert, alles andere als URI oder Dateipfad.
func OpenCamera(device string) (*CameraSource, error) {
	var capture *gocv.VideoCapture
	var err error

	if idx, convErr := strconv.Atoi(device); convErr == nil {
		capture, err = gocv.OpenVideoCapture(idx)
	} else {
		capture, err = gocv.OpenVideoCapture(device)
	}
	if err != nil {
		return nil, fmt.Errorf("konnte aufnahmegerät %q nicht öffnen: %w", device, err)
	}
	if !capture.IsOpened() {
		_ = capture.Close()
		return nil, fmt.Errorf("aufnahmegerät %q ist nicht geöffnet", device)
	}

	return &CameraSource{capture: capture}, nil
}

func (c *CameraSource) Read(dst *gocv.Mat) bool {
	return c.capture.Read(dst)
}

func (c *CameraSource) Close() error {
	return c.capture.Close()
}

// WindowDisplay zeigt Frames in einem OpenCV-Fenster an.
type WindowDisplay struct {
	window *gocv.Window
}

// NewWindowDisplay öffnet das Anzeigefenster.
func NewWindowDisplay(title string) *WindowDisplay {
	return &WindowDisplay{window: gocv.NewWindow(title)}
}

func (w *WindowDisplay) Show(img gocv.Mat) {
	w.window.IMShow(img)
}

func (w *WindowDisplay) PollKey(delayMs int) int {
	return w.window.WaitKey(delayMs)
}

func (w *WindowDisplay) Close() error {
	return w.window.Close()
}
