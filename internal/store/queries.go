package store

import (
	"encoding/json"
	"fmt"

	"github.com/croncatio/tm-indexer/internal/domain"
)

// jsonEvent mirrors domain.Event for JSONB storage.
type jsonEvent struct {
	Type       string     `json:"type"`
	Attributes []jsonAttr `json:"attributes"`
}

type jsonAttr struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// encodeEvents marshals a transaction's decoded events into the JSONB
// shape the transaction.events column stores.
func encodeEvents(events []domain.Event) ([]byte, error) {
	out := make([]jsonEvent, 0, len(events))
	for _, e := range events {
		attrs := make([]jsonAttr, 0, len(e.Attributes))
		for _, a := range e.Attributes {
			attrs = append(attrs, jsonAttr{Key: a.Key, Value: a.Value})
		}
		out = append(out, jsonEvent{Type: e.Type, Attributes: attrs})
	}

	data, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("marshal events: %w", err)
	}
	return data, nil
}

// decodeEvents reverses encodeEvents, used when re-reading events back
// for the filter engine or historical reprocessing.
func decodeEvents(data []byte) ([]domain.Event, error) {
	if len(data) == 0 {
		return nil, nil
	}

	var in []jsonEvent
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, fmt.Errorf("unmarshal events: %w", err)
	}

	events := make([]domain.Event, 0, len(in))
	for _, e := range in {
		attrs := make([]domain.Attribute, 0, len(e.Attributes))
		for _, a := range e.Attributes {
			attrs = append(attrs, domain.Attribute{Key: a.Key, Value: a.Value})
		}
		events = append(events, domain.Event{Type: e.Type, Attributes: attrs})
	}
	return events, nil
}
