package report

import (
	"encoding/json"
	"os"
	"sync"
	"time"
)

// Failure records one message that could not be transferred, with the
// message's identity (or a best-effort descriptor when identity
// derivation itself failed) and the reason.
type Failure struct {
	Message string `json:"message"`
	Reason  string `json:"reason"`
}

// Summary aggregates the outcome of syncing one folder. It is written
// during the run and read-only after Finish.
type Summary struct {
	mu sync.Mutex

	Folder     string    `json:"folder"`
	DryRun     bool      `json:"dry_run"`
	Examined   int       `json:"examined"`
	Skipped    int       `json:"skipped"`
	Copied     int       `json:"copied"`
	Failed     int       `json:"failed"`
	Failures   []Failure `json:"failures,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

func New(folder string, dryRun bool) *Summary {
	return &Summary{Folder: folder, DryRun: dryRun, StartedAt: time.Now()}
}

func (s *Summary) AddExamined(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Examined += n
}

func (s *Summary) AddSkipped(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Skipped += n
}

func (s *Summary) AddCopied() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Copied++
}

func (s *Summary) AddFailure(message string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Failed++
	reason := ""
	if err != nil {
		reason = err.Error()
	}
	s.Failures = append(s.Failures, Failure{Message: message, Reason: reason})
}

func (s *Summary) Finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.FinishedAt = time.Now()
}

// Counts returns the aggregate counters in one consistent read.
func (s *Summary) Counts() (examined, skipped, copied, failed int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Examined, s.Skipped, s.Copied, s.Failed
}

// Save writes the summaries as JSON. The report is output only; it is
// never read back on a later run.
func Save(path string, sums []*Summary) error {
	if path == "" {
		return nil
	}
	for _, s := range sums {
		s.mu.Lock()
	}
	b, err := json.MarshalIndent(sums, "", "  ")
	for _, s := range sums {
		s.mu.Unlock()
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o600)
}
