package syncer

import (
	"sort"
	"time"
)

// Flag is one per-message IMAP attribute. The RFC 3501 system flags are
// enumerated below; server-defined keywords pass through as opaque values.
type Flag string

const (
	FlagSeen     Flag = "\\Seen"
	FlagAnswered Flag = "\\Answered"
	FlagFlagged  Flag = "\\Flagged"
	FlagDeleted  Flag = "\\Deleted"
	FlagDraft    Flag = "\\Draft"
	FlagRecent   Flag = "\\Recent"
)

// FlagSet is an unordered set of flags. Membership only; a copy carries
// the exact set read from the source, with no translation or filtering.
type FlagSet map[Flag]struct{}

func NewFlagSet(flags ...Flag) FlagSet {
	fs := make(FlagSet, len(flags))
	for _, f := range flags {
		fs[f] = struct{}{}
	}
	return fs
}

// ParseFlags builds a FlagSet from wire-format flag strings.
func ParseFlags(ss []string) FlagSet {
	fs := make(FlagSet, len(ss))
	for _, s := range ss {
		if s == "" {
			continue
		}
		fs[Flag(s)] = struct{}{}
	}
	return fs
}

func (fs FlagSet) Has(f Flag) bool {
	_, ok := fs[f]
	return ok
}

// Strings returns the flags in wire format, sorted for stable output.
func (fs FlagSet) Strings() []string {
	out := make([]string, 0, len(fs))
	for f := range fs {
		out = append(out, string(f))
	}
	sort.Strings(out)
	return out
}

func (fs FlagSet) Equal(other FlagSet) bool {
	if len(fs) != len(other) {
		return false
	}
	for f := range fs {
		if !other.Has(f) {
			return false
		}
	}
	return true
}

// Listing is the minimal per-message metadata needed to derive an
// identity without fetching the full body: the envelope subset returned
// by a FETCH ENVELOPE, in server-native order.
type Listing struct {
	SeqNum    uint32
	MessageID string
	Sender    string
	Subject   string
	Date      time.Time
}

// MessageRecord is one message as fetched from a server: flag state,
// internal date and the raw RFC 822 content. The sequence number is
// server-local and never carried across servers. Records are built on
// fetch and not mutated afterwards.
type MessageRecord struct {
	SeqNum       uint32
	Flags        FlagSet
	InternalDate time.Time
	Raw          []byte
}
