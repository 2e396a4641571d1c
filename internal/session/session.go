// Package session holds transient per-user purchase intent between gift
// selection and invoice issuance. Sessions live only in process memory: a
// session exists from a selection event until a terminal outcome, and a new
// selection silently replaces an unterminated one. No expiry is applied to
// abandoned sessions; they are overwritten by the next selection.
package session

import (
	"errors"
	"sync"

	"github.com/dmkorneev/go-gift-relay/internal/giftcatalog"
)

// ErrNoActiveSelection indicates an operation that requires a selected gift
// when the user has none.
var ErrNoActiveSelection = errors.New("no active gift selection")

// Intent is an immutable snapshot of a purchase, consumed by invoice issuance.
type Intent struct {
	UserID  int64
	GiftKey string
	Note    *string
}

// Manager owns the per-user session table.
type Manager struct {
	catalog *giftcatalog.Catalog

	mu       sync.Mutex
	selected map[int64]string // user id -> selected gift key
}

// NewManager returns an empty session table backed by the given catalog.
func NewManager(catalog *giftcatalog.Catalog) *Manager {
	return &Manager{
		catalog:  catalog,
		selected: make(map[int64]string),
	}
}

// SelectGift starts (or restarts) a purchase session for the user.
// An unterminated prior selection is discarded without side effects.
func (m *Manager) SelectGift(userID int64, giftKey string) error {
	if _, err := m.catalog.Resolve(giftKey); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.selected[userID] = giftKey
	return nil
}

// AttachNote snapshots the session into an Intent. The session itself is not
// cleared here; it survives until a terminal payment outcome.
func (m *Manager) AttachNote(userID int64, note *string) (Intent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	giftKey, ok := m.selected[userID]
	if !ok {
		return Intent{}, ErrNoActiveSelection
	}
	return Intent{UserID: userID, GiftKey: giftKey, Note: note}, nil
}

// Active reports whether the user has a selected gift awaiting a note.
func (m *Manager) Active(userID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.selected[userID]
	return ok
}

// Clear drops the user's session. Idempotent; safe on every terminal outcome.
func (m *Manager) Clear(userID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.selected, userID)
}
