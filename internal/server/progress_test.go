// file: internal/server/progress_test.go
// version: 1.0.0
// guid: 6f7a8b9c-0d1e-2f3a-4b5c-6d7e8f9a0b1c

package server

import (
	"testing"
	"time"
)

func TestNewClient(t *testing.T) {
	client := NewClient("test-client-123")
	if client.ID != "test-client-123" {
		t.Errorf("expected client ID test-client-123, got %s", client.ID)
	}
	if client.Channel == nil {
		t.Error("expected non-nil channel")
	}
}

func TestClientFollowFiltersByRun(t *testing.T) {
	client := NewClient("c1")
	client.Follow("run-1")

	if !client.wants("run-1") {
		t.Error("client should want events for its followed run")
	}
	if client.wants("run-2") {
		t.Error("client should not want events for a different run")
	}
	if !client.wants("") {
		t.Error("client should receive run-less (system) events")
	}
}

func TestClientFollowEmptyWantsEverything(t *testing.T) {
	client := NewClient("c1")
	if !client.wants("run-1") || !client.wants("run-2") {
		t.Error("a client following no run should receive every run's events")
	}
}

func TestEventHubRegisterUnregister(t *testing.T) {
	hub := NewEventHub()
	client := NewClient("client-1")

	hub.RegisterClient(client)
	if hub.GetClientCount() != 1 {
		t.Errorf("expected 1 client, got %d", hub.GetClientCount())
	}

	hub.UnregisterClient(client.ID)
	if hub.GetClientCount() != 0 {
		t.Errorf("expected 0 clients, got %d", hub.GetClientCount())
	}
}

func TestEventHubBroadcastFiltersByRun(t *testing.T) {
	hub := NewEventHub()

	following := NewClient("follower")
	following.Follow("run-1")
	unfiltered := NewClient("listener")

	hub.RegisterClient(following)
	hub.RegisterClient(unfiltered)

	hub.SendProgress("run-2", "update_file", 1, 10, "copying")

	select {
	case <-following.Channel:
		t.Error("follower of run-1 should not receive run-2's event")
	case <-time.After(50 * time.Millisecond):
	}

	select {
	case event := <-unfiltered.Channel:
		if event.RunID != "run-2" {
			t.Errorf("expected run-2, got %s", event.RunID)
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("unfiltered listener should receive every run's events")
	}
}

func TestEventHubSendProgress(t *testing.T) {
	hub := NewEventHub()
	client := NewClient("client-1")
	client.Follow("run-123")
	hub.RegisterClient(client)

	hub.SendProgress("run-123", "add", 50, 100, "copying tracks")

	select {
	case event := <-client.Channel:
		if event.Type != EventSyncProgress {
			t.Error("received wrong event type")
		}
		if event.Data["stage"] != "add" {
			t.Error("wrong stage")
		}
		if event.Data["percentage"] != 50 {
			t.Error("wrong percentage calculation")
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("did not receive progress event")
	}
}

func TestEventHubSendStatus(t *testing.T) {
	hub := NewEventHub()
	client := NewClient("client-1")
	client.Follow("run-123")
	hub.RegisterClient(client)

	hub.SendStatus("run-123", "committed", map[string]any{"added": 3})

	select {
	case event := <-client.Channel:
		if event.Type != EventSyncStatus {
			t.Error("received wrong event type")
		}
		if event.Data["status"] != "committed" {
			t.Error("wrong status")
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("did not receive status event")
	}
}

func TestCalculatePercentage(t *testing.T) {
	tests := []struct {
		current, total, expected int
	}{
		{0, 100, 0},
		{50, 100, 50},
		{100, 100, 100},
		{150, 100, 100},
		{0, 0, 0},
		{10, 0, 0},
	}
	for _, tt := range tests {
		if got := calculatePercentage(tt.current, tt.total); got != tt.expected {
			t.Errorf("calculatePercentage(%d, %d) = %d, want %d", tt.current, tt.total, got, tt.expected)
		}
	}
}
