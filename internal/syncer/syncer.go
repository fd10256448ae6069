package syncer

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/pepperpark/imapsync/internal/report"
)

// Mailbox is the capability surface the engine needs from one
// authenticated IMAP session. internal/imaputil provides the production
// implementation; tests run against in-memory fakes.
type Mailbox interface {
	// SelectFolder makes name the current folder. Fails if the folder
	// does not exist on that server.
	SelectFolder(ctx context.Context, name string, readOnly bool) error
	// ListMessages returns, in server-native order, the envelope subset
	// of every message in the current folder.
	ListMessages(ctx context.Context) ([]Listing, error)
	// FetchFull retrieves one message's raw content, flags and internal
	// date.
	FetchFull(ctx context.Context, seqNum uint32) (*MessageRecord, error)
	// Append stores a message into the current folder with the record's
	// exact flag set and internal date.
	Append(ctx context.Context, rec *MessageRecord) error
}

type Options struct {
	DryRun bool
}

// FolderPair maps a source folder onto a target folder name.
type FolderPair struct {
	Src, Dst string
}

// Syncer copies the messages of source folders that are missing from
// the corresponding target folders. One source and one target session,
// used strictly sequentially: one message body in flight at a time.
type Syncer struct {
	src, dst Mailbox
	log      *slog.Logger
	opts     Options

	mu     sync.Mutex
	events chan Event
	closed bool
}

func New(src, dst Mailbox, log *slog.Logger, opts Options) *Syncer {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Syncer{src: src, dst: dst, log: log, opts: opts, events: make(chan Event, 128)}
}

// Events returns a read-only channel of progress events.
func (s *Syncer) Events() <-chan Event { return s.events }

func (s *Syncer) emit(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.events <- ev:
	default:
		// drop if slow consumer
	}
}

func (s *Syncer) closeEvents() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.events)
	}
}

// Run syncs each folder pair in order and closes the event channel when
// done. A fatal error in one folder is collected and the remaining
// folders are still attempted, unless the context was cancelled.
func (s *Syncer) Run(ctx context.Context, pairs []FolderPair) ([]*report.Summary, []error) {
	defer s.closeEvents()
	var sums []*report.Summary
	var errs []error
	for _, p := range pairs {
		sum, err := s.SyncFolder(ctx, p.Src, p.Dst)
		if sum != nil {
			sums = append(sums, sum)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", p.Src, err))
			if ctx.Err() != nil {
				break
			}
		}
	}
	return sums, errs
}

// SyncFolder runs one end-to-end folder sync: select both folders,
// snapshot the target's identities, plan, then transfer. The returned
// error is non-nil only for fatal failures; per-message failures are
// aggregated into the summary and the run still completes.
func (s *Syncer) SyncFolder(ctx context.Context, srcName, dstName string) (*report.Summary, error) {
	s.emit(Event{Type: EventFolderStart, Folder: srcName})
	s.log.Info("folder sync start", "source", srcName, "target", dstName, "dry_run", s.opts.DryRun)

	if err := s.src.SelectFolder(ctx, srcName, true); err != nil {
		return nil, wrap(KindFolderNotFound, "select source folder "+srcName, err)
	}
	var idx *Index
	switch err := s.dst.SelectFolder(ctx, dstName, false); {
	case err == nil:
		targetListing, lerr := s.dst.ListMessages(ctx)
		if lerr != nil {
			return nil, wrap(KindConnection, "list target folder "+dstName, lerr)
		}
		idx = BuildIndex(targetListing)
	case s.opts.DryRun:
		// A dry run creates no folders, so a target folder that would
		// have been created is treated as empty instead of fatal.
		s.log.Warn("target folder missing, treated as empty for dry run", "folder", dstName, "err", err)
		idx = BuildIndex(nil)
	default:
		return nil, wrap(KindFolderNotFound, "select target folder "+dstName, err)
	}
	s.log.Debug("target index built", "folder", dstName, "identities", idx.Len())

	sourceListing, err := s.src.ListMessages(ctx)
	if err != nil {
		return nil, wrap(KindConnection, "list source folder "+srcName, err)
	}

	sum := report.New(srcName, s.opts.DryRun)
	sum.AddExamined(len(sourceListing))

	plan, planFailures := BuildPlan(sourceListing, idx)
	for _, pf := range planFailures {
		desc := fmt.Sprintf("message %d", pf.SeqNum)
		sum.AddFailure(desc, pf.Err)
		s.log.Warn("cannot derive identity, excluded from plan", "folder", srcName, "seq", pf.SeqNum, "err", pf.Err)
		s.emit(Event{Type: EventMessageFailed, Folder: srcName, Message: desc, Err: pf.Err})
	}
	sum.AddSkipped(len(sourceListing) - len(plan.Items) - len(planFailures))
	s.log.Info("plan computed", "folder", srcName, "examined", len(sourceListing), "to_copy", len(plan.Items))
	s.emit(Event{Type: EventProgress, Folder: srcName, Total: len(plan.Items), Done: 0})

	if err := s.execute(ctx, plan, sum); err != nil {
		sum.Finish()
		return sum, err
	}

	sum.Finish()
	s.emit(Event{Type: EventFolderDone, Folder: srcName})
	examined, skipped, copied, failed := sum.Counts()
	s.log.Info("folder sync done", "folder", srcName,
		"examined", examined, "skipped", skipped, "copied", copied, "failed", failed)
	return sum, nil
}

// execute transfers planned messages in order, one at a time. A single
// message's fetch or append failure is recorded and the loop moves on;
// only cancellation aborts, and only between messages, so one transfer
// either fully completes or fully fails.
func (s *Syncer) execute(ctx context.Context, plan Plan, sum *report.Summary) error {
	done := 0
	total := len(plan.Items)
	for _, item := range plan.Items {
		if err := ctx.Err(); err != nil {
			return err
		}

		rec, err := s.src.FetchFull(ctx, item.SeqNum)
		if err != nil {
			err = wrap(KindFetch, "fetch message "+string(item.Identity), err)
			sum.AddFailure(string(item.Identity), err)
			s.log.Warn("fetch failed", "identity", item.Identity, "err", err)
			s.emit(Event{Type: EventMessageFailed, Folder: sum.Folder, Message: string(item.Identity), Err: err})
			continue
		}

		if s.opts.DryRun {
			s.log.Info("would copy", "identity", item.Identity, "flags", rec.Flags.Strings())
			sum.AddCopied()
			done++
			s.emit(Event{Type: EventProgress, Folder: sum.Folder, Total: total, Done: done})
			continue
		}

		if err := s.dst.Append(ctx, rec); err != nil {
			err = wrap(KindAppend, "append message "+string(item.Identity), err)
			sum.AddFailure(string(item.Identity), err)
			s.log.Warn("append failed", "identity", item.Identity, "err", err)
			s.emit(Event{Type: EventMessageFailed, Folder: sum.Folder, Message: string(item.Identity), Err: err})
			continue
		}

		sum.AddCopied()
		done++
		s.log.Debug("copied", "identity", item.Identity, "flags", rec.Flags.Strings())
		s.emit(Event{Type: EventProgress, Folder: sum.Folder, Total: total, Done: done})
	}
	return nil
}
