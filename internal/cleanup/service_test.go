package cleanup

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mood-mirror-go/config"
	"mood-mirror-go/internal/db"
	"mood-mirror-go/internal/db/repository"
	"mood-mirror-go/internal/events"
)

func openTestRepo(t *testing.T) *repository.Repository {
	t.Helper()
	conn, err := db.Open(config.DBConfig{File: ":memory:"})
	require.NoError(t, err)
	return repository.New(conn)
}

func TestNewService_DisabledWhenRetentionZero(t *testing.T) {
	assert.Nil(t, NewService(openTestRepo(t), 0, time.Hour))
	assert.Nil(t, NewService(nil, 7, time.Hour))
}

func TestRunCleanupCycle_DeletesExpiredDetections(t *testing.T) {
	repo := openTestRepo(t)

	old := events.DetectionEvent{Timestamp: time.Now().AddDate(0, 0, -10), Source: "camera", Label: "Sad", Confidence: 0.5}
	fresh := events.DetectionEvent{Timestamp: time.Now(), Source: "camera", Label: "Happy", Confidence: 0.9}
	require.NoError(t, repo.Record(old))
	require.NoError(t, repo.Record(fresh))

	svc := NewService(repo, 7, time.Hour)
	require.NotNil(t, svc)
	svc.RunCleanupCycle()

	remaining, err := repo.Recent(10)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, "Happy", remaining[0].Label)
}

func TestStopBackgroundCleanup_IsIdempotent(t *testing.T) {
	svc := NewService(openTestRepo(t), 7, time.Hour)
	require.NotNil(t, svc)

	svc.StartBackgroundCleanup()
	svc.StopBackgroundCleanup()
	svc.StopBackgroundCleanup()

	// A nil service is a safe no-op everywhere
	var disabled *Service
	disabled.StartBackgroundCleanup()
	disabled.StopBackgroundCleanup()
	disabled.RunCleanupCycle()
}
