package sync

import (
	"bytes"
	"encoding/json"
)

// PreviewSize is how many summary entries a response carries
const PreviewSize = 10

// Action is the change recorded for one remote record
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
)

// SummaryEntry describes one create or update. It serialises as
// {"action", "entity", "tinyId", <LabelKey>: Label}.
type SummaryEntry struct {
	Action   Action
	Entity   string
	TinyID   string
	LabelKey string
	Label    string
}

// MarshalJSON keeps the field order stable and uses LabelKey as the label's key
func (e SummaryEntry) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	pairs := [][2]string{
		{"action", string(e.Action)},
		{"entity", e.Entity},
		{"tinyId", e.TinyID},
	}
	if e.LabelKey != "" {
		pairs = append(pairs, [2]string{e.LabelKey, e.Label})
	}
	for i, p := range pairs {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(p[0])
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(p[1])
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Stats are the counters of one run
type Stats struct {
	ItemsProcessed int `json:"itemsProcessed"`
	ItemsCreated   int `json:"itemsCreated"`
	ItemsUpdated   int `json:"itemsUpdated"`
	ItemsSkipped   int `json:"itemsSkipped"`
	APICallsUsed   int `json:"apiCallsUsed"`
	MaxCalls       int `json:"maxCalls"`
}
