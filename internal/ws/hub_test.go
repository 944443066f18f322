package ws

import (
	"encoding/json"
	"testing"
	"time"

	"city-pulse/internal/domain"
)

func TestHubBroadcastReachesRegisteredClient(t *testing.T) {
	h := NewHub(nil)
	go h.Run()

	c := &Client{hub: h, send: make(chan []byte, 4)}
	h.Register(c)

	deadline := time.After(2 * time.Second)
	for h.ClientCount() == 0 {
		select {
		case <-deadline:
			t.Fatal("client never registered")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	h.Broadcast([]byte("hello"))
	select {
	case msg := <-c.send:
		if string(msg) != "hello" {
			t.Fatalf("message = %q", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("broadcast never delivered")
	}
}

func TestHubUnregisterClosesSend(t *testing.T) {
	h := NewHub(nil)
	go h.Run()

	c := &Client{hub: h, send: make(chan []byte, 1)}
	h.Register(c)
	for h.ClientCount() == 0 {
		time.Sleep(time.Millisecond)
	}

	h.Unregister(c)
	select {
	case _, ok := <-c.send:
		if ok {
			t.Fatal("expected closed send channel")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("send channel never closed")
	}
	if h.ClientCount() != 0 {
		t.Fatalf("ClientCount = %d, want 0", h.ClientCount())
	}
}

func TestPassNotifierBroadcastsEvent(t *testing.T) {
	h := NewHub(nil)
	go h.Run()

	c := &Client{hub: h, send: make(chan []byte, 4)}
	h.Register(c)
	for h.ClientCount() == 0 {
		time.Sleep(time.Millisecond)
	}

	n := NewPassNotifier(h)
	n.PassCompleted(domain.ReadinessReport{Mode: "status", Ready: true})

	select {
	case msg := <-c.send:
		var event struct {
			Type   string                 `json:"type"`
			Report domain.ReadinessReport `json:"report"`
		}
		if err := json.Unmarshal(msg, &event); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if event.Type != "pass_completed" {
			t.Fatalf("type = %q", event.Type)
		}
		if !event.Report.Ready || event.Report.Mode != "status" {
			t.Fatalf("report = %+v", event.Report)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("event never delivered")
	}
}

func TestBroadcastWithNoClients(t *testing.T) {
	h := NewHub(nil)
	go h.Run()
	// Must not block or panic.
	h.Broadcast([]byte("into the void"))
	if h.ClientCount() != 0 {
		t.Fatalf("ClientCount = %d, want 0", h.ClientCount())
	}
}
