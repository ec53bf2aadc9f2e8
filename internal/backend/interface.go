package backend

import (
	"context"

	"costdash/internal/sheets"
)

// Source is an import source for cost datasets.
type Source interface {
	sheets.CostReader
	sheets.Describer
}

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// Result contains the source instance and optional cleanup function
type Result struct {
	Source  Source
	Cleanup CleanupFunc
}

// Factory creates import sources based on configuration
type Factory interface {
	CreateSource(ctx context.Context, config Config) (*Result, error)
}

// Config holds configuration for source creation
type Config struct {
	Type BackendType

	// Google Sheets specific
	GoogleSpreadsheetID string
	GoogleSheetName     string

	// Memory backend specific
	DataDirectory string
}

// BackendType represents the type of import source
type BackendType string

const (
	SheetsBackend BackendType = "sheets"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SheetsBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
