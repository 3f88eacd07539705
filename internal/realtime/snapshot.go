package realtime

import (
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	gocv "gocv.io/x/gocv"
)

// SnapshotBuffer hält das zuletzt annotierte Frame JPEG-kodiert vor,
// damit der HTTP-Server es ausliefern kann, ohne die Schleife zu berühren.
type SnapshotBuffer struct {
	mu    sync.RWMutex
	jpeg  []byte
	taken time.Time
}

// NewSnapshotBuffer erstellt einen leeren Puffer.
func NewSnapshotBuffer() *SnapshotBuffer {
	return &SnapshotBuffer{}
}

// Update kodiert das Frame und ersetzt den Pufferinhalt.
func (b *SnapshotBuffer) Update(frame gocv.Mat) {
	buf, err := gocv.IMEncode(".jpg", frame)
	if err != nil {
		log.Warnf("Konnte Frame nicht als JPEG kodieren: %v", err)
		return
	}
	defer buf.Close()

	data := buf.GetBytes()
	b.mu.Lock()
	b.jpeg = append(b.jpeg[:0], data...)
	b.taken = time.Now()
	b.mu.Unlock()
}

// Latest gibt eine Kopie des letzten Snapshots zurück.
func (b *SnapshotBuffer) Latest() ([]byte, time.Time, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if len(b.jpeg) == 0 {
		return nil, time.Time{}, false
	}
	out := make([]byte, len(b.jpeg))
	copy(out, b.jpeg)
	return out, b.taken, true
}
