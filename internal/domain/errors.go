package domain

import "errors"

// Record validation errors. Records failing validation are skipped by the
// engine and ingestion parsers, never fatal to a batch.
var (
	ErrMissingID       = errors.New("missing identifier")
	ErrMissingDate     = errors.New("missing date")
	ErrNegativeAmount  = errors.New("negative amount")
	ErrInvalidCurrency = errors.New("invalid currency code")
)
