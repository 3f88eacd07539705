package server

import (
	"io"
	"net/http"
	"strconv"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"mood-mirror-go/internal/db/repository"
	"mood-mirror-go/internal/realtime"
	"mood-mirror-go/internal/server/sse"
	"mood-mirror-go/internal/utils"
)

// API bündelt die HTTP-Endpunkte des serve-Modus: Detektionshistorie,
// Statistiken, Label-Tabelle, Systemauslastung, letzter Snapshot und
// ein SSE-Strom mit Live-Detektionen.
type API struct {
	repo      *repository.Repository
	hub       *sse.Hub
	snapshots *realtime.SnapshotBuffer
	labels    []string
}

// NewAPI erstellt die API mit ihren Abhängigkeiten.
func NewAPI(repo *repository.Repository, hub *sse.Hub, snapshots *realtime.SnapshotBuffer, labels []string) *API {
	return &API{repo: repo, hub: hub, snapshots: snapshots, labels: labels}
}

// Router baut den gin-Router mit allen Routen auf.
func (a *API) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.Default())

	api := r.Group("/api")
	{
		api.GET("/detections", a.listDetections)
		api.GET("/detections/stats", a.detectionStats)
		api.GET("/labels", a.listLabels)
		api.GET("/system", a.systemStats)
		api.GET("/snapshot", a.latestSnapshot)
	}
	r.GET("/events", a.streamEvents)

	return r
}

func (a *API) listDetections(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	detections, err := a.repo.Recent(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"detections": detections})
}

func (a *API) detectionStats(c *gin.Context) {
	stats, err := a.repo.Stats()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (a *API) listLabels(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"labels": a.labels})
}

func (a *API) systemStats(c *gin.Context) {
	c.JSON(http.StatusOK, utils.CollectSystemStats())
}

func (a *API) latestSnapshot(c *gin.Context) {
	data, taken, ok := a.snapshots.Latest()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "noch kein snapshot verfügbar"})
		return
	}
	c.Header("X-Snapshot-Taken", taken.Format("2006-01-02T15:04:05.000Z07:00"))
	c.Data(http.StatusOK, "image/jpeg", data)
}

// streamEvents hängt einen SSE-Client an den Hub und streamt Detektionen,
// bis der Client die Verbindung schließt.
func (a *API) streamEvents(c *gin.Context) {
	client := make(sse.Client, 16)
	a.hub.Register(client)
	defer a.hub.Unregister(client)

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	c.Stream(func(w io.Writer) bool {
		select {
		case msg, ok := <-client:
			if !ok {
				return false
			}
			c.SSEvent("detection", string(msg))
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}
