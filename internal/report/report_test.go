package report

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestSummaryCounts(t *testing.T) {
	s := New("INBOX", false)
	s.AddExamined(3)
	s.AddSkipped(1)
	s.AddCopied()
	s.AddFailure("<a@x>", errors.New("quota exceeded"))
	s.Finish()

	examined, skipped, copied, failed := s.Counts()
	if examined != 3 || skipped != 1 || copied != 1 || failed != 1 {
		t.Fatalf("got %d/%d/%d/%d, want 3/1/1/1", examined, skipped, copied, failed)
	}
	if len(s.Failures) != 1 || s.Failures[0].Message != "<a@x>" || s.Failures[0].Reason != "quota exceeded" {
		t.Fatalf("unexpected failures: %+v", s.Failures)
	}
}

func TestSave(t *testing.T) {
	s := New("INBOX", true)
	s.AddExamined(2)
	s.AddCopied()
	s.AddCopied()
	s.Finish()

	path := filepath.Join(t.TempDir(), "report.json")
	if err := Save(path, []*Summary{s}); err != nil {
		t.Fatalf("save: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var got []Summary
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(got) != 1 || got[0].Folder != "INBOX" || !got[0].DryRun || got[0].Copied != 2 {
		t.Fatalf("unexpected report: %+v", got)
	}
}

func TestSaveEmptyPath(t *testing.T) {
	if err := Save("", nil); err != nil {
		t.Fatalf("empty path should be a no-op, got %v", err)
	}
}
