package persistence

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"fxfilter/pkg/config"
)

func testConfig(t *testing.T) config.PersistenceConfig {
	return config.PersistenceConfig{
		Enabled:          true,
		SnapshotDir:      t.TempDir(),
		CompressionLevel: 6,
		RetainSnapshots:  2,
	}
}

func TestCreateLoadRoundTrip(t *testing.T) {
	m := NewManager(testConfig(t), "checkout")
	script := []byte("if checkout == nil then checkout = fx.broken_sessions.new(1024) end\ncheckout:fromstring(3, \"abc\")\n")

	path, err := m.Create(script, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.FileExists(t, path)

	got, header, err := m.Load()
	require.NoError(t, err)
	require.Equal(t, script, got)
	require.Equal(t, "checkout", header.FilterName)
	require.Equal(t, uint32(snapshotVersion), header.Version)
}

func TestLoadReturnsLatestSnapshot(t *testing.T) {
	m := NewManager(testConfig(t), "checkout")
	_, err := m.Create([]byte("first"), time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	_, err = m.Create([]byte("second"), time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	got, _, err := m.Load()
	require.NoError(t, err)
	require.Equal(t, []byte("second"), got)
}

func TestPruneRemovesOldestSnapshots(t *testing.T) {
	cfg := testConfig(t)
	cfg.RetainSnapshots = 1
	m := NewManager(cfg, "checkout")

	_, err := m.Create([]byte("first"), time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	_, err = m.Create([]byte("second"), time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	files, err := m.listSnapshots()
	require.NoError(t, err)
	require.Len(t, files, 1)
	require.Contains(t, filepath.Base(files[0]), "checkout-20260102")
}

func TestLoadDetectsChecksumMismatch(t *testing.T) {
	m := NewManager(testConfig(t), "checkout")
	path, err := m.Create([]byte("payload"), time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	data[len(data)-1] ^= 0xff
	require.NoError(t, os.WriteFile(path, data, 0o644))

	_, _, err = m.LoadFile(path)
	require.Error(t, err)
}
