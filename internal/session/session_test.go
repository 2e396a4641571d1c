package session

import (
	"errors"
	"testing"

	"github.com/dmkorneev/go-gift-relay/internal/giftcatalog"
)

func newManager() *Manager {
	return NewManager(giftcatalog.Default())
}

func TestSelectGift_UnknownKey(t *testing.T) {
	m := newManager()

	err := m.SelectGift(42, "golden_unicorn")
	if !errors.Is(err, giftcatalog.ErrUnknownGift) {
		t.Fatalf("expected ErrUnknownGift, got %v", err)
	}
	if m.Active(42) {
		t.Fatal("failed selection must not create a session")
	}
}

func TestAttachNote_NoSelection(t *testing.T) {
	m := newManager()

	if _, err := m.AttachNote(42, nil); !errors.Is(err, ErrNoActiveSelection) {
		t.Fatalf("expected ErrNoActiveSelection, got %v", err)
	}
}

func TestAttachNote_SnapshotsWithoutClearing(t *testing.T) {
	m := newManager()
	if err := m.SelectGift(42, "heart_14feb"); err != nil {
		t.Fatalf("select: %v", err)
	}

	note := "Happy day"
	intent, err := m.AttachNote(42, &note)
	if err != nil {
		t.Fatalf("attach note: %v", err)
	}
	if intent.UserID != 42 || intent.GiftKey != "heart_14feb" || intent.Note == nil || *intent.Note != "Happy day" {
		t.Fatalf("wrong intent: %+v", intent)
	}

	// the session survives until a terminal outcome
	if !m.Active(42) {
		t.Fatal("session must not be cleared by AttachNote")
	}
}

func TestSelectGift_ReplacesPriorSelection(t *testing.T) {
	m := newManager()
	if err := m.SelectGift(42, "heart_14feb"); err != nil {
		t.Fatalf("select: %v", err)
	}
	if err := m.SelectGift(42, "newyear_bear"); err != nil {
		t.Fatalf("reselect: %v", err)
	}

	intent, err := m.AttachNote(42, nil)
	if err != nil {
		t.Fatalf("attach note: %v", err)
	}
	if intent.GiftKey != "newyear_bear" {
		t.Fatalf("prior selection not replaced: %+v", intent)
	}
}

func TestClear_Idempotent(t *testing.T) {
	m := newManager()
	if err := m.SelectGift(42, "heart_14feb"); err != nil {
		t.Fatalf("select: %v", err)
	}

	m.Clear(42)
	m.Clear(42) // must be safe on an already-cleared session
	if m.Active(42) {
		t.Fatal("session still active after Clear")
	}
	if _, err := m.AttachNote(42, nil); !errors.Is(err, ErrNoActiveSelection) {
		t.Fatalf("expected ErrNoActiveSelection after Clear, got %v", err)
	}
}

func TestSessions_PerUserIsolation(t *testing.T) {
	m := newManager()
	if err := m.SelectGift(1, "heart_14feb"); err != nil {
		t.Fatalf("select: %v", err)
	}
	if err := m.SelectGift(2, "bear_14feb"); err != nil {
		t.Fatalf("select: %v", err)
	}

	m.Clear(1)
	if m.Active(1) {
		t.Fatal("user 1 session should be gone")
	}
	if !m.Active(2) {
		t.Fatal("user 2 session must be untouched")
	}
}
