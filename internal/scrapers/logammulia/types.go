package logammulia

import (
	"errors"
	"time"
)

var (
	// ErrExhausted means every profile in the main schedule and the
	// alternative-access pool failed to produce a usable page.
	ErrExhausted = errors.New("all retrieval attempts exhausted")
	// ErrUnknownBranch means the requested branch code is not in the
	// location directory. This is a configuration error, not retryable.
	ErrUnknownBranch = errors.New("unknown branch code")
	// ErrMissingToken means the landing page carried no anti-forgery token
	// in either its meta tag or its hidden form field.
	ErrMissingToken = errors.New("missing anti-forgery token")
	// ErrSelectionFailed means the location-change request was rejected.
	ErrSelectionFailed = errors.New("branch selection failed")
)

type BranchType int

const (
	BRANCH_REGULAR BranchType = iota
	BRANCH_PICKUP_ONLY
	BRANCH_SHIPPING_ONLY
)

func (t BranchType) String() string {
	switch t {
	case BRANCH_PICKUP_ONLY:
		return "Pickup Only"
	case BRANCH_SHIPPING_ONLY:
		return "Shipping Only"
	}
	return "Regular"
}

// Branch is one physical retail location with its own catalogue scoping.
// Immutable once parsed, identified by Code.
type Branch struct {
	Code        string
	Name        string
	City        string
	Type        BranchType
	CanShip     bool
	FullAddress string
}

type Availability int

const (
	STOCK_AVAILABLE Availability = iota
	STOCK_LIMITED
	STOCK_OUT
)

func (a Availability) String() string {
	switch a {
	case STOCK_LIMITED:
		return "Limited Stock"
	case STOCK_OUT:
		return "Out of Stock"
	}
	return "Available"
}

// ProductVariant is one purchasable configuration distinguished by weight.
// Produced fresh on every extraction, never mutated.
type ProductVariant struct {
	WeightGrams  float64
	PriceIdr     int64
	MaxQuantity  int64
	Availability Availability
	InputId      string
}

// StockSnapshot is the full availability result for one branch at one point
// in time. TotalScanned counts every price-bearing element in the document,
// including variants dropped by a target-weight filter.
type StockSnapshot struct {
	Branch       Branch
	CheckedAt    time.Time
	Variants     []ProductVariant
	TotalScanned int
}

type AttemptOutcome int

const (
	OUTCOME_SUCCESS AttemptOutcome = iota
	OUTCOME_HTTP_ERROR
	OUTCOME_TIMEOUT
	OUTCOME_CONNECTION_FAILURE
)

func (o AttemptOutcome) String() string {
	switch o {
	case OUTCOME_SUCCESS:
		return "success"
	case OUTCOME_TIMEOUT:
		return "timeout"
	case OUTCOME_CONNECTION_FAILURE:
		return "connection failure"
	}
	return "http error"
}

// RetrievalAttempt describes one attempt of a fetch, kept only for the
// duration of the call that produced it (plus a copy on the client for debug
// output).
type RetrievalAttempt struct {
	Index              int
	Profile            string
	Outcome            AttemptOutcome
	StatusCode         int
	DelayBeforeAttempt time.Duration
}
