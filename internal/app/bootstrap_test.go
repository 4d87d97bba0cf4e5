package app

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/approvisionnement/internal/platform/blob"
	"github.com/odyssey-erp/approvisionnement/internal/procurement"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestOpenBackendsMemoryWithSeed(t *testing.T) {
	cfg := &Config{
		StoreDriver: StoreMemory,
		SeedPath:    filepath.Join("..", "..", "deploy", "seed", "approvisionnements.yml"),
	}
	b, err := OpenBackends(context.Background(), cfg, discardLogger())
	require.NoError(t, err)
	t.Cleanup(b.Close)
	require.Nil(t, b.Cache)

	recs, err := b.Store.List(context.Background(), procurement.Query{})
	require.NoError(t, err)
	require.Len(t, recs, 2)
	require.Equal(t, procurement.StatusReceived, recs[0].Status)

	sup, err := b.Catalog.Supplier(context.Background(), "2")
	require.NoError(t, err)
	require.Equal(t, "Mercerie Centrale", sup.Name)
}

func TestOpenBackendsMissingSeed(t *testing.T) {
	cfg := &Config{StoreDriver: StoreMemory, SeedPath: filepath.Join(t.TempDir(), "none.yml")}
	_, err := OpenBackends(context.Background(), cfg, discardLogger())
	require.Error(t, err)
}

func TestOpenBlobStoreFS(t *testing.T) {
	dir := t.TempDir()
	store, err := OpenBlobStore(context.Background(), &Config{ExportDriver: blob.DriverFS, ExportDir: dir})
	require.NoError(t, err)

	loc, err := store.Put(context.Background(), "exports/a.csv", "text/csv", []byte("x"))
	require.NoError(t, err)
	require.NotEmpty(t, loc)
	data, err := os.ReadFile(filepath.Join(dir, "exports", "a.csv"))
	require.NoError(t, err)
	require.Equal(t, "x", string(data))

	_, err = OpenBlobStore(context.Background(), &Config{ExportDriver: "ftp"})
	require.Error(t, err)
}
