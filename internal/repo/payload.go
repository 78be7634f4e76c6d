package repo

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/engagestack/engagement-intel/internal/models"
)

// Payload is the dashboard data document served by the backend. Engagement
// records stay raw so ingestion can validate each one on its own.
type Payload struct {
	models.ServerAggregates
	Engagements   []json.RawMessage `json:"engagements"`
	Summary       string            `json:"summary,omitempty"`
	WeeklySummary string            `json:"weekly_summary,omitempty"`
}

// ErrEmptyPayload is returned for a zero-length document.
var ErrEmptyPayload = errors.New("empty payload")

// DecodePayload accepts either the full dashboard document or a bare JSON
// array of engagement records.
func DecodePayload(data []byte) (Payload, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return Payload{}, ErrEmptyPayload
	}

	var p Payload
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &p.Engagements); err != nil {
			return Payload{}, fmt.Errorf("decode engagement array: %w", err)
		}
		return p, nil
	}
	if err := json.Unmarshal(trimmed, &p); err != nil {
		return Payload{}, fmt.Errorf("decode dashboard payload: %w", err)
	}
	if p.Summary == "" {
		p.Summary = p.WeeklySummary
	}
	return p, nil
}
