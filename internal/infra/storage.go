package infra

import (
	"fmt"

	"github.com/eliteGoblin/focusd/app_usage/internal/domain"
)

// Storage backends accepted by OpenDayStore.
const (
	StorageJSON      = "json"
	StorageEncrypted = "encrypted"
)

// OpenDayStore opens the configured day store under dataDir.
// The encrypted backend creates its key on first use.
func OpenDayStore(backend, dataDir string) (domain.DayStore, error) {
	switch backend {
	case "", StorageJSON:
		return NewJSONDayStore(dataDir)
	case StorageEncrypted:
		return OpenEncryptedStore(dataDir)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", backend)
	}
}

// OpenEncryptedStore opens usage.db with the key from <dataDir>/usage.key.
// It also serves as the SecretStore for every backend.
func OpenEncryptedStore(dataDir string) (*EncryptedDayStore, error) {
	key, err := EnsureKey(NewFileKeyProvider(dataDir))
	if err != nil {
		return nil, fmt.Errorf("encryption key: %w", err)
	}
	return NewEncryptedDayStore(dataDir, key)
}
