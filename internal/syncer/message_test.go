package syncer

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestFlagSetStringsSorted(t *testing.T) {
	fs := NewFlagSet(FlagSeen, FlagAnswered, "custom-keyword")
	want := []string{"\\Answered", "\\Seen", "custom-keyword"}
	if diff := cmp.Diff(want, fs.Strings()); diff != "" {
		t.Fatalf("flag strings mismatch (-want +got):\n%s", diff)
	}
}

func TestParseFlags(t *testing.T) {
	fs := ParseFlags([]string{"\\Seen", "\\Flagged", ""})
	if len(fs) != 2 {
		t.Fatalf("expected 2 flags, got %d", len(fs))
	}
	if !fs.Has(FlagSeen) || !fs.Has(FlagFlagged) {
		t.Fatal("expected flags missing")
	}
	if fs.Has(FlagDeleted) {
		t.Fatal("unexpected flag present")
	}
}

func TestFlagSetEqual(t *testing.T) {
	a := NewFlagSet(FlagSeen, FlagFlagged)
	b := ParseFlags([]string{"\\Flagged", "\\Seen"})
	if !a.Equal(b) {
		t.Fatal("expected equal flag sets")
	}
	if a.Equal(NewFlagSet(FlagSeen)) {
		t.Fatal("expected unequal flag sets")
	}
	if a.Equal(NewFlagSet(FlagSeen, FlagDraft)) {
		t.Fatal("expected unequal flag sets")
	}
}
