package domain

import "time"

// Run records one persisted reconciliation over a settlement date range.
type Run struct {
	ID          string          `json:"id"`
	From        time.Time       `json:"from"`
	To          time.Time       `json:"to"`
	Strategy    string          `json:"strategy"`
	Exclusive   bool            `json:"exclusive"`
	StartedAt   time.Time       `json:"started_at"`
	CompletedAt time.Time       `json:"completed_at"`
	Summary     Summary         `json:"summary"`
	Metrics     CurrencyMetrics `json:"metrics"`
}

// ImportBatch records one ingested export file.
type ImportBatch struct {
	ID           string    `json:"id"`
	Kind         string    `json:"kind"`
	Format       string    `json:"format"`
	FileHash     string    `json:"file_hash"`
	RecordCount  int       `json:"record_count"`
	SkippedCount int       `json:"skipped_count"`
	IngestedAt   time.Time `json:"ingested_at"`
}
