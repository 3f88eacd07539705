package realtime

import (
	"context"
	"errors"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gocv "gocv.io/x/gocv"

	"mood-mirror-go/internal/emotion"
	"mood-mirror-go/internal/events"
	"mood-mirror-go/internal/vision"
)

// scriptedSource liefert eine feste Anzahl Frames und meldet danach das
// Ende des Videostroms.
type scriptedSource struct {
	frames    int
	delivered int
	closed    int
}

func (s *scriptedSource) Read(dst *gocv.Mat) bool {
	if s.delivered >= s.frames {
		return false
	}
	s.delivered++
	frame := gocv.NewMatWithSize(240, 320, gocv.MatTypeCV8UC3)
	defer frame.Close()
	frame.CopyTo(dst)
	return true
}

func (s *scriptedSource) Close() error {
	s.closed++
	return nil
}

// fakeDisplay zählt Anzeigen und liefert auf Wunsch die Stopp-Taste.
type fakeDisplay struct {
	shown     int
	stopAfter int // Stopp-Taste ab diesem Frame, 0 = nie
	closed    int
}

func (d *fakeDisplay) Show(img gocv.Mat) { d.shown++ }

func (d *fakeDisplay) PollKey(delayMs int) int {
	if d.stopAfter > 0 && d.shown >= d.stopAfter {
		return 'q'
	}
	return -1
}

func (d *fakeDisplay) Close() error {
	d.closed++
	return nil
}

// fakeLocator meldet ein Gesicht nur im konfigurierten Frame.
type fakeLocator struct {
	faceOnCall int
	calls      int
	region     image.Rectangle
	closed     int
}

func (l *fakeLocator) Detect(gray gocv.Mat) []image.Rectangle {
	l.calls++
	if l.calls == l.faceOnCall {
		return []image.Rectangle{l.region}
	}
	return nil
}

func (l *fakeLocator) Close() error {
	l.closed++
	return nil
}

// fakePredictor liefert eine feste Vorhersage oder einen Fehler.
type fakePredictor struct {
	calls int
	err   error
}

func (p *fakePredictor) Predict(patch vision.Patch) (emotion.Prediction, error) {
	p.calls++
	if p.err != nil {
		return emotion.Prediction{}, p.err
	}
	scores := make([]float32, emotion.NumClasses)
	scores[3] = 0.9
	return emotion.Prediction{Label: "Happy", Index: 3, Confidence: 0.9, Scores: scores}, nil
}

func (p *fakePredictor) Labels() []string {
	return emotion.DefaultLabels
}

// captureSink sammelt alle veröffentlichten Events ein.
type captureSink struct {
	events []events.DetectionEvent
}

func (s *captureSink) Publish(ev events.DetectionEvent) {
	s.events = append(s.events, ev)
}

func TestLoop_ClassifiesAndPublishesPerFace(t *testing.T) {
	source := &scriptedSource{frames: 3}
	display := &fakeDisplay{}
	locator := &fakeLocator{faceOnCall: 2, region: image.Rect(40, 40, 120, 120)}
	predictor := &fakePredictor{}
	sink := &captureSink{}

	loop := NewLoop(source, display, locator, predictor, Options{
		Source: "testcam",
		Sinks:  []events.Sink{sink},
	})

	require.NoError(t, loop.Run(context.Background()))

	// Drei Frames angezeigt, genau ein Gesicht klassifiziert
	assert.Equal(t, 3, display.shown)
	assert.Equal(t, 3, locator.calls)
	assert.Equal(t, 1, predictor.calls)

	require.Len(t, sink.events, 1)
	ev := sink.events[0]
	assert.Equal(t, "testcam", ev.Source)
	assert.Equal(t, "Happy", ev.Label)
	assert.InDelta(t, 0.9, ev.Confidence, 1e-6)
	assert.Equal(t, events.Box{X: 40, Y: 40, Width: 80, Height: 80}, ev.Box)
	assert.InDelta(t, 0.9, ev.Scores["Happy"], 1e-6)
	assert.Len(t, ev.Scores, emotion.NumClasses)

	// Ressourcen werden genau einmal freigegeben
	assert.Equal(t, 1, source.closed)
	assert.Equal(t, 1, display.closed)
}

func TestLoop_StopKeyEndsLoop(t *testing.T) {
	source := &scriptedSource{frames: 100}
	display := &fakeDisplay{stopAfter: 3}
	locator := &fakeLocator{}

	loop := NewLoop(source, display, locator, &fakePredictor{}, Options{StopKey: 'q'})
	require.NoError(t, loop.Run(context.Background()))

	assert.Equal(t, 3, display.shown)
	assert.Equal(t, 1, source.closed)
	assert.Equal(t, 1, display.closed)
}

func TestLoop_ContextCancelEndsLoop(t *testing.T) {
	source := &scriptedSource{frames: 100}
	display := &fakeDisplay{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	loop := NewLoop(source, display, &fakeLocator{}, &fakePredictor{}, Options{})
	require.NoError(t, loop.Run(ctx))

	assert.Equal(t, 0, display.shown)
	assert.Equal(t, 1, source.closed)
	assert.Equal(t, 1, display.closed)
}

func TestLoop_HeadlessUpdatesSnapshots(t *testing.T) {
	source := &scriptedSource{frames: 1}
	snapshots := NewSnapshotBuffer()

	loop := NewLoop(source, nil, &fakeLocator{}, &fakePredictor{}, Options{Snapshots: snapshots})
	require.NoError(t, loop.Run(context.Background()))

	data, taken, ok := snapshots.Latest()
	require.True(t, ok)
	assert.NotEmpty(t, data)
	assert.False(t, taken.IsZero())
	assert.Equal(t, 1, source.closed)
}

func TestLoop_PredictorErrorDoesNotStopLoop(t *testing.T) {
	source := &scriptedSource{frames: 3}
	display := &fakeDisplay{}
	locator := &fakeLocator{faceOnCall: 1, region: image.Rect(0, 0, 48, 48)}
	predictor := &fakePredictor{err: errors.New("kaputt")}
	sink := &captureSink{}

	loop := NewLoop(source, display, locator, predictor, Options{Sinks: []events.Sink{sink}})
	require.NoError(t, loop.Run(context.Background()))

	assert.Equal(t, 3, display.shown)
	assert.Empty(t, sink.events)
}

func TestLoop_ClipsRegionsToFrameBounds(t *testing.T) {
	source := &scriptedSource{frames: 1}
	display := &fakeDisplay{}
	// Region ragt über den Framerand hinaus
	locator := &fakeLocator{faceOnCall: 1, region: image.Rect(280, 200, 400, 320)}
	predictor := &fakePredictor{}
	sink := &captureSink{}

	loop := NewLoop(source, display, locator, predictor, Options{Sinks: []events.Sink{sink}})
	require.NoError(t, loop.Run(context.Background()))

	require.Len(t, sink.events, 1)
	assert.Equal(t, events.Box{X: 280, Y: 200, Width: 40, Height: 40}, sink.events[0].Box)
}
