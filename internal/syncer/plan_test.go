package syncer

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func planIdentities(p Plan) []Identity {
	ids := make([]Identity, 0, len(p.Items))
	for _, it := range p.Items {
		ids = append(ids, it.Identity)
	}
	return ids
}

func TestBuildPlanOrderPreserved(t *testing.T) {
	source := []Listing{
		{SeqNum: 1, MessageID: "<a@x>"},
		{SeqNum: 2, MessageID: "<b@x>"},
		{SeqNum: 3, MessageID: "<c@x>"},
	}
	idx := BuildIndex([]Listing{{SeqNum: 9, MessageID: "<b@x>"}})

	plan, failures := BuildPlan(source, idx)
	if len(failures) != 0 {
		t.Fatalf("unexpected failures: %v", failures)
	}
	want := []Identity{"<a@x>", "<c@x>"}
	if diff := cmp.Diff(want, planIdentities(plan)); diff != "" {
		t.Fatalf("plan mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildPlanEmptySource(t *testing.T) {
	plan, failures := BuildPlan(nil, BuildIndex(nil))
	if len(plan.Items) != 0 || len(failures) != 0 {
		t.Fatalf("expected empty plan, got %d items, %d failures", len(plan.Items), len(failures))
	}
}

func TestBuildPlanMalformedExcluded(t *testing.T) {
	source := []Listing{
		{SeqNum: 1, MessageID: "<a@x>"},
		{SeqNum: 2}, // no identity inputs at all
		{SeqNum: 3, MessageID: "<c@x>"},
	}
	plan, failures := BuildPlan(source, BuildIndex(nil))
	if len(failures) != 1 || failures[0].SeqNum != 2 {
		t.Fatalf("expected one failure for seq 2, got %v", failures)
	}
	want := []Identity{"<a@x>", "<c@x>"}
	if diff := cmp.Diff(want, planIdentities(plan)); diff != "" {
		t.Fatalf("plan mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildPlanDeterministic(t *testing.T) {
	source := []Listing{
		{SeqNum: 1, MessageID: "<a@x>"},
		{SeqNum: 2, Sender: "b@x", Subject: "s"},
	}
	idx := BuildIndex(nil)
	p1, _ := BuildPlan(source, idx)
	p2, _ := BuildPlan(source, idx)
	if diff := cmp.Diff(planIdentities(p1), planIdentities(p2)); diff != "" {
		t.Fatalf("plan not deterministic:\n%s", diff)
	}
}
