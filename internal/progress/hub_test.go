package progress_test

import (
	"bufio"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"novelhub/internal/progress"
	"novelhub/internal/queue"
)

func TestHub_BroadcastsToTCPClients(t *testing.T) {
	hub := progress.NewHub()

	server, client := net.Pipe()
	defer client.Close()
	hub.Add(server)

	ev := queue.ProgressEvent{
		Type:           queue.EventCacheProgress,
		TaskID:         "task-1",
		NovelURL:       "https://www.alicesw.com/novel/42.html",
		CachedChapters: 3,
		TotalChapters:  10,
		At:             time.Now().UTC(),
	}

	done := make(chan queue.ProgressEvent, 1)
	go func() {
		sc := bufio.NewScanner(client)
		if sc.Scan() {
			var got queue.ProgressEvent
			if json.Unmarshal(sc.Bytes(), &got) == nil {
				done <- got
			}
		}
	}()

	hub.Publish(ev)

	select {
	case got := <-done:
		assert.Equal(t, "task-1", got.TaskID)
		assert.Equal(t, 3, got.CachedChapters)
		assert.Equal(t, 10, got.TotalChapters)
		assert.Equal(t, queue.EventCacheProgress, got.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("no event received over TCP")
	}
}

func TestHub_DropsDeadClients(t *testing.T) {
	hub := progress.NewHub()

	server, client := net.Pipe()
	hub.Add(server)
	require.Equal(t, 1, hub.Stats().TCPClients)

	_ = client.Close()

	// first write fails against the closed pipe and evicts the client
	hub.Publish(queue.ProgressEvent{Type: queue.EventCacheProgress})
	assert.Equal(t, 0, hub.Stats().TCPClients)
}

func TestHub_WelcomeHandshake(t *testing.T) {
	hub := progress.NewHub()
	server, client := net.Pipe()
	defer client.Close()
	hub.Add(server)

	got := make(chan map[string]any, 1)
	go func() {
		sc := bufio.NewScanner(client)
		if sc.Scan() {
			var obj map[string]any
			if json.Unmarshal(sc.Bytes(), &obj) == nil {
				got <- obj
			}
		}
	}()

	hub.Welcome(server)

	select {
	case obj := <-got:
		assert.Equal(t, "welcome", obj["type"])
		assert.Equal(t, "tcp", obj["transport"])
		assert.Equal(t, float64(1), obj["observers"])
	case <-time.After(2 * time.Second):
		t.Fatal("no handshake line received")
	}
}

func TestHub_Stats(t *testing.T) {
	hub := progress.NewHub()
	server, client := net.Pipe()
	defer client.Close()

	hub.Add(server)
	stats := hub.Stats()
	assert.Equal(t, 1, stats.TCPClients)
	assert.Equal(t, 0, stats.WSClients)

	hub.Remove(server)
	assert.Equal(t, 0, hub.Stats().TCPClients)
}
