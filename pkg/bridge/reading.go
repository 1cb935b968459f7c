package bridge

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/norasector/ookbridge/pkg/ook"
)

// Reading is a decoded record stamped for delivery.
type Reading struct {
	ID        uuid.UUID
	Timestamp time.Time
	Protocol  string
	Fields    ook.DecodedFields
}

func NewReading(rec ook.Record, ts time.Time) *Reading {
	return &Reading{
		ID:        uuid.New(),
		Timestamp: ts,
		Protocol:  rec.Protocol,
		Fields:    rec.Fields,
	}
}

// Payload is the JSON shape shared by the message based outputs.
type Payload struct {
	ID        string                 `json:"id"`
	Timestamp time.Time              `json:"timestamp"`
	Protocol  string                 `json:"protocol"`
	Fields    map[string]interface{} `json:"fields"`
}

func (r *Reading) Payload() Payload {
	return Payload{
		ID:        r.ID.String(),
		Timestamp: r.Timestamp,
		Protocol:  r.Protocol,
		Fields:    r.Fields.Map(),
	}
}

// DeviceKey identifies the transmitting device: the protocol plus its id field when present.
func (r *Reading) DeviceKey() string {
	for _, f := range r.Fields {
		if f.Name == "id" {
			return fmt.Sprintf("%s/%08X", r.Protocol, f.Value)
		}
	}
	return r.Protocol
}
