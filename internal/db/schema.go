package db

import _ "embed"

//go:embed schema.sql
var Schema string

// availability values stored in variant_state, mirroring the extractor's
// enum ordering
type AvailabilityState int64

const (
	STATE_AVAILABLE AvailabilityState = iota
	STATE_LIMITED
	STATE_OUT
)
