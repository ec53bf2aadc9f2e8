package amqp

import (
	"encoding/json"
	"time"

	"costdash/internal/core"
)

// UploadEvent announces that a dataset was ingested. It carries metadata
// only; the rows stay in the server's memory.
type UploadEvent struct {
	DatasetID      string    `json:"dataset_id"`
	File           string    `json:"file"`
	Source         string    `json:"source"`
	Records        int       `json:"records"`
	SkippedDates   int       `json:"skipped_dates"`
	SkippedAmounts int       `json:"skipped_amounts"`
	Start          string    `json:"start,omitempty"`
	End            string    `json:"end,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// NewUploadEvent builds an event from upload metadata
func NewUploadEvent(meta core.UploadMeta) *UploadEvent {
	ts := meta.CreatedAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	return &UploadEvent{
		DatasetID:      meta.DatasetID,
		File:           meta.File,
		Source:         meta.Source,
		Records:        meta.Records,
		SkippedDates:   meta.SkippedDates,
		SkippedAmounts: meta.SkippedAmounts,
		Start:          meta.Start.String(),
		End:            meta.End.String(),
		Timestamp:      ts,
	}
}

// Meta converts the event back into upload metadata. Unparseable dates
// come back as zero dates.
func (m *UploadEvent) Meta() core.UploadMeta {
	start, _ := core.ParseDate(m.Start)
	end, _ := core.ParseDate(m.End)
	return core.UploadMeta{
		DatasetID:      m.DatasetID,
		File:           m.File,
		Source:         m.Source,
		Records:        m.Records,
		SkippedDates:   m.SkippedDates,
		SkippedAmounts: m.SkippedAmounts,
		Start:          start,
		End:            end,
		CreatedAt:      m.Timestamp,
	}
}

// ToJSON converts the message to JSON bytes
func (m *UploadEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// UploadEventFromJSON creates a message from JSON bytes
func UploadEventFromJSON(data []byte) (*UploadEvent, error) {
	var msg UploadEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
