package auth

import "github.com/sidgs/performance-management-sub001/internal/storage"

// Slot identifies one of the two persisted credential locations. Primary
// strictly dominates backup during resolution.
type Slot string

const (
	SlotPrimary Slot = "primary"
	SlotBackup  Slot = "backup"
)

// Persisted key names, shared with the portal's web surface.
const (
	keyPrimary    = "user_auth_token"
	keyBackup     = "epm_user_auth_token"
	keyLegacy     = "token"
	keyWidgetMode = "widgetMode"
)

// CredentialStore is pure key-value access over the two credential slots plus
// the legacy key. No validation, no decoding.
type CredentialStore struct {
	kv storage.Store
}

func NewCredentialStore(kv storage.Store) *CredentialStore {
	return &CredentialStore{kv: kv}
}

func (s *CredentialStore) Get(slot Slot) string {
	return s.kv.Get(slotKey(slot))
}

func (s *CredentialStore) Set(slot Slot, value string) error {
	return s.kv.Set(slotKey(slot), value)
}

func (s *CredentialStore) Clear(slot Slot) error {
	return s.kv.Delete(slotKey(slot))
}

// ClearAll removes both slots and the legacy key.
func (s *CredentialStore) ClearAll() error {
	if err := s.kv.Delete(keyPrimary); err != nil {
		return err
	}
	if err := s.kv.Delete(keyBackup); err != nil {
		return err
	}
	return s.kv.Delete(keyLegacy)
}

// StoredWidgetFlag reports the persisted widget-mode opt-in.
func (s *CredentialStore) StoredWidgetFlag() bool {
	return s.kv.Get(keyWidgetMode) == "true"
}

// EnableWidgetFlag persists the widget-mode opt-in.
func (s *CredentialStore) EnableWidgetFlag() error {
	return s.kv.Set(keyWidgetMode, "true")
}

// DisableWidgetFlag removes the widget-mode opt-in.
func (s *CredentialStore) DisableWidgetFlag() error {
	return s.kv.Delete(keyWidgetMode)
}

func slotKey(slot Slot) string {
	if slot == SlotBackup {
		return keyBackup
	}
	return keyPrimary
}
