package infra

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenDayStore(t *testing.T) {
	tests := []struct {
		backend string
		want    any
		wantErr bool
	}{
		{backend: "", want: &JSONDayStore{}},
		{backend: StorageJSON, want: &JSONDayStore{}},
		{backend: StorageEncrypted, want: &EncryptedDayStore{}},
		{backend: "redis", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.backend, func(t *testing.T) {
			store, err := OpenDayStore(tt.backend, t.TempDir())
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			defer store.Close()
			assert.IsType(t, tt.want, store)
		})
	}
}

func TestOpenEncryptedStore_ReusesKey(t *testing.T) {
	dir := t.TempDir()

	first, err := OpenEncryptedStore(dir)
	require.NoError(t, err)
	require.NoError(t, first.SetSecret("export.app_secret", "abc"))
	require.NoError(t, first.Close())

	second, err := OpenEncryptedStore(dir)
	require.NoError(t, err)
	defer second.Close()

	val, err := second.GetSecret("export.app_secret")
	require.NoError(t, err)
	assert.Equal(t, "abc", val)
}
