package syncer

// PlanItem is one source message scheduled for transfer, with its
// derived identity.
type PlanItem struct {
	Listing
	Identity Identity
}

// Plan is the ordered set of source messages absent from the target.
// Insertion order is source listing order. A plan is recomputed fresh
// each run and never persisted.
type Plan struct {
	Items []PlanItem
}

// PlanFailure records a source message excluded from the plan because
// its identity could not be derived.
type PlanFailure struct {
	SeqNum uint32
	Err    error
}

// BuildPlan selects, in listing order, every source message whose
// identity is absent from the target index. Pure function: deterministic
// given identical inputs, no network access. A derivation failure
// excludes that one message and is reported; it never fails the plan.
func BuildPlan(source []Listing, idx *Index) (Plan, []PlanFailure) {
	var plan Plan
	var failures []PlanFailure
	for _, l := range source {
		id, err := DeriveIdentity(l)
		if err != nil {
			failures = append(failures, PlanFailure{SeqNum: l.SeqNum, Err: err})
			continue
		}
		if idx.Contains(id) {
			continue
		}
		plan.Items = append(plan.Items, PlanItem{Listing: l, Identity: id})
	}
	return plan, failures
}
