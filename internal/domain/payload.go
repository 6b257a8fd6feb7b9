package domain

import (
	"encoding/json"
	"fmt"
)

type PayloadKind string

const (
	PayloadOffer        PayloadKind = "offer"
	PayloadAnswer       PayloadKind = "answer"
	PayloadICECandidate PayloadKind = "ice_candidate"
	PayloadChat         PayloadKind = "chat_message"
)

func (k PayloadKind) Signaling() bool {
	switch k {
	case PayloadOffer, PayloadAnswer, PayloadICECandidate:
		return true
	}
	return false
}

func ParsePayloadKind(s string) (PayloadKind, error) {
	k := PayloadKind(s)
	if k.Signaling() || k == PayloadChat {
		return k, nil
	}
	return "", fmt.Errorf("%w: unknown kind %q", ErrInvalidPayload, s)
}

// Payload is relayed between partners. Data is never interpreted; Text is
// only set for chat and is subject to the content policy.
type Payload struct {
	Kind PayloadKind
	Data json.RawMessage
	Text string
}

func SignalPayload(kind PayloadKind, data json.RawMessage) Payload {
	return Payload{Kind: kind, Data: data}
}

func ChatPayload(text string) Payload {
	return Payload{Kind: PayloadChat, Text: text}
}
