package peer

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Delivery paths recorded in Envelope.Via.
const (
	ViaImmediate = "immediate"
	ViaDurable   = "durable"
)

var (
	// ErrUnknownType is returned when decoding an envelope of an unknown domain.
	ErrUnknownType = errors.New("peer: unknown message type")
	// ErrMalformed is returned for envelopes missing their id or type.
	ErrMalformed = errors.New("peer: malformed envelope")
)

// Envelope is the wire form of a message.
type Envelope struct {
	ID      string          `json:"id"`
	Type    Domain          `json:"type"`
	SentAt  time.Time       `json:"sent_at"`
	Via     string          `json:"via,omitempty"`
	Payload json.RawMessage `json:"payload"`
}

// Wrap encodes msg into a new envelope.
func Wrap(msg Message, now time.Time) (Envelope, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s: %w", msg.Domain(), err)
	}
	return Envelope{
		ID:      uuid.NewString(),
		Type:    msg.Domain(),
		SentAt:  now.UTC(),
		Payload: payload,
	}, nil
}

// Encode returns the JSON bytes of the envelope.
func (e Envelope) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// DecodeEnvelope parses and sanity checks an envelope.
func DecodeEnvelope(data []byte) (Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if e.ID == "" || e.Type == "" {
		return Envelope{}, ErrMalformed
	}
	return e, nil
}

// Message decodes the payload into its concrete type.
func (e Envelope) Message() (Message, error) {
	var (
		msg Message
		err error
	)
	switch e.Type {
	case DomainNavigation:
		var m NavigationUpdate
		err = json.Unmarshal(e.Payload, &m)
		msg = m
	case DomainRecommendations:
		var m RecommendationPush
		err = json.Unmarshal(e.Payload, &m)
		msg = m
	case DomainCollection:
		var m CollectionNotice
		err = json.Unmarshal(e.Payload, &m)
		msg = m
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, e.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s payload: %v", ErrMalformed, e.Type, err)
	}
	return msg, nil
}
