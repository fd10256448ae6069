package imaputil

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"

	"github.com/pepperpark/imapsync/internal/syncer"
)

// Endpoint is one connection target: host, credentials and TLS mode.
// Immutable once constructed.
type Endpoint struct {
	Host     string
	Port     int
	User     string
	Password string
	StartTLS bool
	TLS      *tls.Config
	Timeout  time.Duration
}

// Session wraps one authenticated IMAP connection and adapts it to the
// syncer.Mailbox contract.
type Session struct {
	c      *client.Client
	host   string
	folder string
	closed bool
}

// Open dials and authenticates one session. The caller owns the session
// and must Close it on every exit path.
func Open(ctx context.Context, ep Endpoint) (*Session, error) {
	c, err := DialAndLogin(ctx, ep.Host, ep.Port, ep.User, ep.Password, ep.StartTLS, ep.TLS, ep.Timeout)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", ep.Host, err)
	}
	return &Session{c: c, host: ep.Host}, nil
}

// Close logs out and releases the connection. Idempotent.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.c.Logout()
}

func (s *Session) Host() string { return s.host }

// Folders returns all folder names on the server.
func (s *Session) Folders(ctx context.Context) ([]string, error) {
	return ListMailboxes(ctx, s.c)
}

// EnsureFolder selects the folder, creating it first if missing.
func (s *Session) EnsureFolder(name string) error {
	return EnsureMailbox(s.c, name)
}

func (s *Session) SelectFolder(ctx context.Context, name string, readOnly bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := SelectMailbox(s.c, name, readOnly); err != nil {
		return err
	}
	s.folder = name
	return nil
}

// ListMessages fetches the envelope of every message in the selected
// folder, in server-native order. Envelopes carry enough metadata to
// derive identities without pulling bodies over the wire.
func (s *Session) ListMessages(ctx context.Context) ([]syncer.Listing, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	status := s.c.Mailbox()
	if status == nil {
		return nil, fmt.Errorf("no folder selected on %s", s.host)
	}
	if status.Messages == 0 {
		return nil, nil
	}

	seq := new(imap.SeqSet)
	seq.AddRange(1, status.Messages)
	ch := make(chan *imap.Message, 64)
	done := make(chan error, 1)
	go func() {
		done <- s.c.Fetch(seq, []imap.FetchItem{imap.FetchEnvelope}, ch)
	}()

	listing := make([]syncer.Listing, 0, status.Messages)
	for msg := range ch {
		if msg == nil {
			continue
		}
		l := syncer.Listing{SeqNum: msg.SeqNum}
		if env := msg.Envelope; env != nil {
			l.MessageID = env.MessageId
			l.Subject = env.Subject
			l.Date = env.Date
			if len(env.From) > 0 && env.From[0] != nil {
				l.Sender = env.From[0].Address()
			}
		}
		listing = append(listing, l)
	}
	if err := <-done; err != nil {
		return nil, err
	}
	return listing, nil
}

// FetchFull retrieves one message's raw RFC 822 content, flags and
// internal date. BODY.PEEK keeps the fetch from setting \Seen on the
// source.
func (s *Session) FetchFull(ctx context.Context, seqNum uint32) (*syncer.MessageRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	seq := new(imap.SeqSet)
	seq.AddNum(seqNum)
	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{section.FetchItem(), imap.FetchFlags, imap.FetchInternalDate}
	ch := make(chan *imap.Message, 1)
	done := make(chan error, 1)
	go func() {
		done <- s.c.Fetch(seq, items, ch)
	}()

	var rec *syncer.MessageRecord
	var readErr error
	for msg := range ch {
		if msg == nil {
			continue
		}
		lit := msg.GetBody(section)
		if lit == nil {
			continue
		}
		raw, err := io.ReadAll(lit)
		if err != nil {
			readErr = err
			continue
		}
		rec = &syncer.MessageRecord{
			SeqNum:       msg.SeqNum,
			Flags:        syncer.ParseFlags(msg.Flags),
			InternalDate: msg.InternalDate,
			Raw:          raw,
		}
	}
	if err := <-done; err != nil {
		return nil, err
	}
	if readErr != nil {
		return nil, readErr
	}
	if rec == nil {
		return nil, fmt.Errorf("message %d: no body returned", seqNum)
	}
	return rec, nil
}

// Append stores the record into the selected folder with its exact flag
// set and internal date. Flags are passed through untranslated; a flag
// the server rejects fails the append rather than being dropped.
func (s *Session) Append(ctx context.Context, rec *syncer.MessageRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.folder == "" {
		return fmt.Errorf("no folder selected on %s", s.host)
	}
	date := rec.InternalDate
	if date.IsZero() {
		date = time.Now()
	}
	return s.c.Append(s.folder, rec.Flags.Strings(), date, bytes.NewReader(rec.Raw))
}
