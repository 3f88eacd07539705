package sse

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mood-mirror-go/internal/events"
)

func TestHub_BroadcastReachesRegisteredClients(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	first := make(Client, 10)
	second := make(Client, 10)
	hub.Register(first)
	hub.Register(second)

	hub.Broadcast([]byte("hallo"))

	for _, client := range []Client{first, second} {
		select {
		case msg := <-client:
			assert.Equal(t, []byte("hallo"), msg)
		case <-time.After(time.Second):
			t.Fatal("Client hat keine Broadcast-Nachricht erhalten")
		}
	}
}

func TestHub_UnregisterClosesClientChannel(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	client := make(Client, 10)
	hub.Register(client)
	hub.Unregister(client)

	select {
	case _, open := <-client:
		assert.False(t, open)
	case <-time.After(time.Second):
		t.Fatal("Client-Kanal wurde nicht geschlossen")
	}
}

func TestHub_PublishDeliversDetectionEventAsJSON(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	client := make(Client, 10)
	hub.Register(client)

	hub.Publish(events.DetectionEvent{
		Timestamp:  time.Now(),
		Source:     "camera",
		Label:      "Surprise",
		Confidence: 0.8,
		Box:        events.Box{X: 1, Y: 2, Width: 3, Height: 4},
	})

	select {
	case msg := <-client:
		var ev events.DetectionEvent
		require.NoError(t, json.Unmarshal(msg, &ev))
		assert.Equal(t, "Surprise", ev.Label)
		assert.Equal(t, events.Box{X: 1, Y: 2, Width: 3, Height: 4}, ev.Box)
	case <-time.After(time.Second):
		t.Fatal("Client hat kein Event erhalten")
	}
}

func TestHub_SlowClientIsDropped(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	// Kanal ohne Puffer und ohne wartenden Empfänger: die Zustellung
	// schlägt fehl und der Hub entfernt den Client
	slow := make(Client)
	hub.Register(slow)

	hub.Broadcast([]byte("eins"))

	require.Eventually(t, func() bool {
		select {
		case _, open := <-slow:
			return !open
		default:
			return false
		}
	}, time.Second, 10*time.Millisecond, "Langsamer Client wurde nicht entfernt")
}
