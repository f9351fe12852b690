package outbox

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fashionmarket/storefront-backend/pkg/enums"
)

const envelopeVersion = 1

var ErrEmptyEventData = errors.New("outbox envelope carries no data")

// PayloadEnvelope is stored in outbox_events.payload_json and published as
// the Pub/Sub message body. Consumers dedupe on EventID.
type PayloadEnvelope struct {
	Version    int                   `json:"version"`
	EventID    string                `json:"event_id"`
	EventType  enums.OutboxEventType `json:"event_type,omitempty"`
	OccurredAt time.Time             `json:"occurred_at"`
	Data       json.RawMessage       `json:"data"`
}

// SealEnvelope marshals data inside a fresh envelope with a new event id.
func SealEnvelope(eventType enums.OutboxEventType, version int, occurredAt time.Time, data any) (PayloadEnvelope, []byte, error) {
	body, err := json.Marshal(data)
	if err != nil {
		return PayloadEnvelope{}, nil, fmt.Errorf("encode %s data: %w", eventType, err)
	}
	if version <= 0 {
		version = envelopeVersion
	}
	env := PayloadEnvelope{
		Version:    version,
		EventID:    uuid.NewString(),
		EventType:  eventType,
		OccurredAt: occurredAt.UTC(),
		Data:       body,
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return PayloadEnvelope{}, nil, fmt.Errorf("encode %s envelope: %w", eventType, err)
	}
	return env, raw, nil
}

// DecodeEnvelope parses a stored payload. JSON null and missing data are rejected.
func DecodeEnvelope(raw []byte) (PayloadEnvelope, error) {
	var env PayloadEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return PayloadEnvelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	data := bytes.TrimSpace(env.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return env, ErrEmptyEventData
	}
	return env, nil
}
