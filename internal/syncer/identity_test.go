package syncer

import (
	"testing"
	"time"
)

func TestDeriveIdentityMessageID(t *testing.T) {
	l := Listing{SeqNum: 1, MessageID: "  <abc@example.com>\t", Subject: "ignored"}
	id, err := DeriveIdentity(l)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "<abc@example.com>" {
		t.Fatalf("expected trimmed Message-ID, got %q", id)
	}
}

func TestDeriveIdentityStable(t *testing.T) {
	l := Listing{SeqNum: 7, MessageID: "<abc@example.com>"}
	a, err := DeriveIdentity(l)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Same header on a different server position yields the same identity.
	l.SeqNum = 99
	b, err := DeriveIdentity(l)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a != b {
		t.Fatalf("identity not stable: %q vs %q", a, b)
	}
}

func TestDeriveIdentityFallback(t *testing.T) {
	date := time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC)
	l := Listing{SeqNum: 2, Sender: "alice@example.com", Subject: "digest", Date: date}
	a, err := DeriveIdentity(l)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, _ := DeriveIdentity(l)
	if a != b {
		t.Fatalf("fallback identity not deterministic: %q vs %q", a, b)
	}
	// Second precision: sub-second differences collapse.
	l2 := l
	l2.Date = date.Add(200 * time.Millisecond)
	c, _ := DeriveIdentity(l2)
	if a != c {
		t.Fatalf("expected second-precision collapse, got %q vs %q", a, c)
	}
	l3 := l
	l3.Date = date.Add(time.Second)
	d, _ := DeriveIdentity(l3)
	if a == d {
		t.Fatalf("distinct send times should not collide")
	}
}

func TestDeriveIdentityError(t *testing.T) {
	_, err := DeriveIdentity(Listing{SeqNum: 3})
	if err == nil {
		t.Fatal("expected error for message without any identity input")
	}
	if ErrKind(err) != KindIdentity {
		t.Fatalf("expected KindIdentity, got %v", ErrKind(err))
	}
	if IsFatal(err) {
		t.Fatal("identity derivation failure must not be fatal")
	}
}

func TestBuildIndex(t *testing.T) {
	listing := []Listing{
		{SeqNum: 1, MessageID: "<a@x>"},
		{SeqNum: 2}, // underivable, cannot take part in dedup
		{SeqNum: 3, MessageID: "<b@x>"},
		{SeqNum: 4, MessageID: "<a@x>"}, // duplicate on the server itself
	}
	idx := BuildIndex(listing)
	if idx.Len() != 2 {
		t.Fatalf("expected 2 identities, got %d", idx.Len())
	}
	if !idx.Contains("<a@x>") || !idx.Contains("<b@x>") {
		t.Fatal("expected identities missing from index")
	}
	if idx.Contains("<c@x>") {
		t.Fatal("unexpected identity in index")
	}
}
