package syncer

import (
	"errors"
	"fmt"
	"strings"
)

// Identity is the deduplication key for one logical message. Two
// messages with equal identities are considered the same message and
// must not both exist on the target after a sync.
type Identity string

var errNoIdentity = errors.New("no Message-ID and no sender/subject/date to fall back on")

// DeriveIdentity computes the identity of a message from its listing
// metadata. A non-empty Message-ID header is used verbatim (whitespace
// trimmed). Without one, the identity falls back to a composite of
// sender, subject and send time at second precision. Distinct messages
// that legitimately share all three (automated digests, resent
// notifications) collapse into one identity under the fallback; that is
// a known limitation of the scheme, accepted rather than papered over
// with a content hash.
func DeriveIdentity(l Listing) (Identity, error) {
	if id := strings.TrimSpace(l.MessageID); id != "" {
		return Identity(id), nil
	}
	if l.Sender == "" && l.Subject == "" && l.Date.IsZero() {
		return "", wrap(KindIdentity, fmt.Sprintf("message %d", l.SeqNum), errNoIdentity)
	}
	return Identity(fmt.Sprintf("%s|%s|%d", l.Sender, l.Subject, l.Date.Unix())), nil
}

// Index is a point-in-time snapshot of the identities present in a
// folder. It is built once per run and treated as read-only afterwards;
// messages appended to the target while the run is in flight are not
// reflected.
type Index struct {
	ids map[Identity]struct{}
}

// BuildIndex derives an identity for every listed message and collects
// them into a set. A message whose identity cannot be derived simply
// cannot take part in deduplication and is left out.
func BuildIndex(listing []Listing) *Index {
	idx := &Index{ids: make(map[Identity]struct{}, len(listing))}
	for _, l := range listing {
		id, err := DeriveIdentity(l)
		if err != nil {
			continue
		}
		idx.ids[id] = struct{}{}
	}
	return idx
}

func (x *Index) Contains(id Identity) bool {
	_, ok := x.ids[id]
	return ok
}

func (x *Index) Len() int { return len(x.ids) }
