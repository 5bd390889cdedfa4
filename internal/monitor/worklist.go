package monitor

import "goldwatch/internal/scrapers/logammulia"

// priorityCities are checked first when building a work list from the full
// directory. Ordering within the slice is the priority order.
var priorityCities = []string{"Jakarta", "Surabaya", "Bandung", "Medan", "Semarang"}

// defaultBranchCodes covers the major branches, used when the caller gives
// no explicit branch list and no directory is available.
var defaultBranchCodes = []string{"ASB1", "ABDG", "AJK2", "ASMG", "AJOG"}

// WorkListOptions tunes BuildWorkList.
type WorkListOptions struct {
	// MaxBranches caps the list length. Zero means no cap.
	MaxBranches int
	// ShippingOnly drops branches that cannot ship orders.
	ShippingOnly bool
}

// DefaultBranchCodes returns the fallback branch list for callers that have
// no parsed directory.
func DefaultBranchCodes() []string {
	out := make([]string, len(defaultBranchCodes))
	copy(out, defaultBranchCodes)
	return out
}

// BuildWorkList orders the directory's branches for checking: branches in
// priority cities first (in priority-city order), then everything else in
// directory order.
func BuildWorkList(directory *logammulia.Directory, opts WorkListOptions) []string {
	include := func(b logammulia.Branch) bool {
		return !opts.ShippingOnly || b.CanShip
	}

	var codes []string
	seen := map[string]bool{}
	byCity := directory.ByCity()
	for _, city := range priorityCities {
		for _, branch := range byCity[city] {
			if include(branch) && !seen[branch.Code] {
				codes = append(codes, branch.Code)
				seen[branch.Code] = true
			}
		}
	}
	for _, branch := range directory.Branches() {
		if include(branch) && !seen[branch.Code] {
			codes = append(codes, branch.Code)
			seen[branch.Code] = true
		}
	}

	if opts.MaxBranches > 0 && len(codes) > opts.MaxBranches {
		codes = codes[:opts.MaxBranches]
	}
	return codes
}
