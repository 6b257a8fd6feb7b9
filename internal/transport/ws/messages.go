package ws

import (
	"encoding/json"

	"github.com/cwrk-planet/rendezvous/internal/domain"
)

// Client -> server
const (
	TypeStartChat  = "start_chat"
	TypeNextChat   = "next_chat"
	TypeReportUser = "report_user"
	TypeBanMe      = "ban_me"
	TypeLeave      = "leave"
)

// Server -> client
const (
	TypeMatchFound          = "match_found"
	TypePartnerDisconnected = "partner_disconnected"
	TypeBanned              = "banned"
	TypeError               = "error"
)

// Both directions
const (
	TypeOffer        = string(domain.PayloadOffer)
	TypeAnswer       = string(domain.PayloadAnswer)
	TypeICECandidate = string(domain.PayloadICECandidate)
	TypeChatMessage  = string(domain.PayloadChat)
)

type Message struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// inbound defers payload decoding until the type is known.
type inbound struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type NamePayload struct {
	Name string `json:"name"`
}

type ReasonPayload struct {
	Reason string `json:"reason,omitempty"`
}

type ChatPayload struct {
	From    string `json:"from,omitempty"`
	Message string `json:"message"`
}

type SignalPayload struct {
	From string          `json:"from"`
	Data json.RawMessage `json:"data"`
}

type MatchFoundPayload struct {
	PartnerName  string `json:"partnerName"`
	SessionToken string `json:"sessionToken"`
	Role         string `json:"role"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

// EventMessage renders an engine event in wire form. It is shared by the
// socket writer and the HTTP event drain.
func EventMessage(ev domain.Event) Message {
	switch ev.Type {
	case domain.EventMatchFound:
		m := ev.Match
		if m == nil {
			m = &domain.MatchInfo{}
		}
		return Message{Type: TypeMatchFound, Payload: MatchFoundPayload{
			PartnerName:  m.PartnerName,
			SessionToken: m.SessionToken.String(),
			Role:         string(m.Role),
		}}
	case domain.EventPartnerDisconnected:
		return Message{Type: TypePartnerDisconnected}
	case domain.EventBanned:
		return Message{Type: TypeBanned, Payload: ReasonPayload{Reason: ev.Reason}}
	case domain.EventRelay:
		if ev.Payload == nil {
			break
		}
		if ev.Payload.Kind == domain.PayloadChat {
			return Message{Type: TypeChatMessage, Payload: ChatPayload{
				From:    domain.FromPartner,
				Message: ev.Payload.Text,
			}}
		}
		data := ev.Payload.Data
		if len(data) == 0 {
			data = json.RawMessage("null")
		}
		return Message{Type: string(ev.Payload.Kind), Payload: SignalPayload{
			From: domain.FromPartner,
			Data: data,
		}}
	}
	return Message{Type: TypeError, Payload: ErrorPayload{Message: "unknown event"}}
}

func errorMessage(msg string) Message {
	return Message{Type: TypeError, Payload: ErrorPayload{Message: msg}}
}
