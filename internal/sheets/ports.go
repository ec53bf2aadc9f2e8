package sheets

import (
	"context"

	"costdash/internal/ingest"
)

// Ports for outbound adapters.
type (
	// CostReader loads a full cost sheet from an external source.
	CostReader interface {
		// ReadCosts returns every parsable row of the configured sheet.
		ReadCosts(ctx context.Context) (ingest.Dataset, error)
	}

	// Describer is implemented by sources that can name themselves in logs
	// and upload metadata.
	Describer interface {
		Describe() string
	}
)
