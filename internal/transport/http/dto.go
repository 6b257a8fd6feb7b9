package http

import (
	"encoding/json"

	"github.com/cwrk-planet/rendezvous/internal/transport/ws"
)

type JoinRequest struct {
	Name string `json:"name"`
}

type JoinResponse struct {
	UserID string `json:"userId"`
}

const (
	pollWaiting = "waiting"
	pollMatched = "matched"
)

type PollResponse struct {
	Status       string `json:"status"`
	Queued       bool   `json:"queued"`
	PartnerName  string `json:"partnerName,omitempty"`
	SessionToken string `json:"sessionToken,omitempty"`
	Role         string `json:"role,omitempty"`
}

type EventsResponse struct {
	Events []ws.Message `json:"events"`
}

// RelayRequest carries either opaque signaling Data or chat Message,
// selected by Kind.
type RelayRequest struct {
	UserID  string          `json:"userId"`
	Kind    string          `json:"kind"`
	Data    json.RawMessage `json:"data,omitempty"`
	Message string          `json:"message,omitempty"`
}

type UserRequest struct {
	UserID string `json:"userId"`
	Reason string `json:"reason,omitempty"`
}

type StatusResponse struct {
	Status string `json:"status"`
}
