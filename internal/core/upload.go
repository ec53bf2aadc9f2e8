package core

import "time"

// UploadMeta describes one ingestion without any of its rows.
type UploadMeta struct {
	DatasetID      string
	File           string
	Source         string
	Records        int
	SkippedDates   int
	SkippedAmounts int
	Start          Date // zero for an empty dataset
	End            Date
	CreatedAt      time.Time
}
