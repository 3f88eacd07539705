package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mood-mirror-go/config"
	"mood-mirror-go/internal/db"
	"mood-mirror-go/internal/db/repository"
	"mood-mirror-go/internal/emotion"
	"mood-mirror-go/internal/events"
	"mood-mirror-go/internal/realtime"
	"mood-mirror-go/internal/server/sse"
)

func newTestAPI(t *testing.T) (*API, *repository.Repository, *realtime.SnapshotBuffer) {
	t.Helper()
	conn, err := db.Open(config.DBConfig{File: ":memory:"})
	require.NoError(t, err)
	repo := repository.New(conn)
	snapshots := realtime.NewSnapshotBuffer()
	hub := sse.NewHub()
	go hub.Run()
	return NewAPI(repo, hub, snapshots, emotion.DefaultLabels), repo, snapshots
}

func doRequest(api *API, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	api.Router().ServeHTTP(w, req)
	return w
}

func TestAPI_ListLabels(t *testing.T) {
	api, _, _ := newTestAPI(t)

	w := doRequest(api, "/api/labels")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Labels []string `json:"labels"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, emotion.DefaultLabels, body.Labels)
}

func TestAPI_ListDetections(t *testing.T) {
	api, repo, _ := newTestAPI(t)
	now := time.Now()
	require.NoError(t, repo.Record(events.DetectionEvent{Timestamp: now.Add(-time.Minute), Source: "camera", Label: "Sad", Confidence: 0.4}))
	require.NoError(t, repo.Record(events.DetectionEvent{Timestamp: now, Source: "camera", Label: "Happy", Confidence: 0.9}))

	w := doRequest(api, "/api/detections?limit=1")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Detections []struct {
			Label string `json:"Label"`
		} `json:"detections"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Detections, 1)
	assert.Equal(t, "Happy", body.Detections[0].Label)
}

func TestAPI_DetectionStats(t *testing.T) {
	api, repo, _ := newTestAPI(t)
	require.NoError(t, repo.Record(events.DetectionEvent{Timestamp: time.Now(), Source: "camera", Label: "Fear", Confidence: 0.6}))

	w := doRequest(api, "/api/detections/stats")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		TotalDetections int64 `json:"total_detections"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, int64(1), body.TotalDetections)
}

func TestAPI_SnapshotNotFoundBeforeFirstFrame(t *testing.T) {
	api, _, _ := newTestAPI(t)

	w := doRequest(api, "/api/snapshot")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAPI_SystemStats(t *testing.T) {
	api, _, _ := newTestAPI(t)

	w := doRequest(api, "/api/system")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		NumCPU int `json:"num_cpu"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Greater(t, body.NumCPU, 0)
}
