package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/emersion/go-mbox"
	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"

	"github.com/pepperpark/imapsync/internal/imaputil"
	"github.com/pepperpark/imapsync/internal/report"
	"github.com/pepperpark/imapsync/internal/syncer"
)

// runMboxImport copies messages from a local mbox file into the target
// folder, with the same identity-based deduplication as the IMAP path.
// Mbox files carry no IMAP flags, so imported messages arrive unflagged.
func runMboxImport(ctx context.Context, o *syncOptions, logger *slog.Logger, dst *imaputil.Session) error {
	f, err := os.Open(o.mboxPath)
	if err != nil {
		return fmt.Errorf("open mbox: %w", err)
	}
	defer f.Close()

	dstFolder := o.folder2
	if dstFolder == "" {
		dstFolder = o.folder
	}
	if err := dst.SelectFolder(ctx, dstFolder, false); err != nil {
		return fmt.Errorf("select target folder %s: %w", dstFolder, err)
	}
	targetListing, err := dst.ListMessages(ctx)
	if err != nil {
		return fmt.Errorf("list target folder %s: %w", dstFolder, err)
	}
	idx := syncer.BuildIndex(targetListing)
	logger.Info("mbox import start", "mbox", o.mboxPath, "target", dstFolder, "dry_run", o.dryRun)

	sum := report.New(o.mboxPath, o.dryRun)
	r := mbox.NewReader(f)
	seq := uint32(0)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		mr, err := r.NextMessage()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("read mbox: %w", err)
		}
		raw, err := io.ReadAll(mr)
		if err != nil {
			return fmt.Errorf("read message: %w", err)
		}
		seq++
		sum.AddExamined(1)

		l := listingFromRaw(seq, raw)
		id, err := syncer.DeriveIdentity(l)
		if err != nil {
			desc := fmt.Sprintf("message %d", seq)
			sum.AddFailure(desc, err)
			logger.Warn("cannot derive identity, skipped", "seq", seq, "err", err)
			continue
		}
		if idx.Contains(id) {
			sum.AddSkipped(1)
			logger.Debug("already present", "identity", id)
			continue
		}
		if o.dryRun {
			logger.Info("would copy", "identity", id)
			sum.AddCopied()
			continue
		}
		rec := &syncer.MessageRecord{SeqNum: seq, Flags: syncer.NewFlagSet(), InternalDate: l.Date, Raw: raw}
		if err := dst.Append(ctx, rec); err != nil {
			sum.AddFailure(string(id), err)
			logger.Warn("append failed", "identity", id, "err", err)
			continue
		}
		sum.AddCopied()
		logger.Debug("copied", "identity", id)
	}
	sum.Finish()

	printSummary(os.Stdout, []*report.Summary{sum})
	if err := report.Save(o.reportFile, []*report.Summary{sum}); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

// listingFromRaw extracts the identity-relevant header subset from a raw
// RFC 822 message. Parse failures leave fields empty; identity
// derivation decides whether what remains is enough.
func listingFromRaw(seq uint32, raw []byte) syncer.Listing {
	l := syncer.Listing{SeqNum: seq}
	entity, err := message.Read(bytes.NewReader(raw))
	if entity == nil {
		return l
	}
	if err != nil && !message.IsUnknownCharset(err) {
		return l
	}
	h := mail.Header{Header: entity.Header}
	l.MessageID = strings.TrimSpace(entity.Header.Get("Message-Id"))
	if subj, err := h.Subject(); err == nil {
		l.Subject = subj
	} else {
		l.Subject = entity.Header.Get("Subject")
	}
	if d, err := h.Date(); err == nil {
		l.Date = d
	}
	if addrs, err := h.AddressList("From"); err == nil && len(addrs) > 0 && addrs[0] != nil {
		l.Sender = addrs[0].Address
	}
	return l
}
