package ws

import (
	"encoding/json"

	"city-pulse/internal/domain"
)

type passCompletedEvent struct {
	Type   string                  `json:"type"`
	Report *domain.ReadinessReport `json:"report"`
}

// PassNotifier adapts the hub to the orchestrator's Notifier interface.
type PassNotifier struct {
	hub *Hub
}

func NewPassNotifier(hub *Hub) *PassNotifier {
	return &PassNotifier{hub: hub}
}

func (n *PassNotifier) PassCompleted(report domain.ReadinessReport) {
	if n == nil || n.hub == nil {
		return
	}
	b, err := json.Marshal(passCompletedEvent{Type: "pass_completed", Report: &report})
	if err != nil {
		return
	}
	n.hub.Broadcast(b)
}
