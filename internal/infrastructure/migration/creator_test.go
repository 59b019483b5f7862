package migration

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erp/wooerp/migrations"
)

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"add sync columns", "add_sync_columns"},
		{"Add-Barcode-Cache", "add_barcode_cache"},
		{"add__external__id", "add_external_id"},
		{"   spaces   ", "spaces"},
		{"special!@#$chars", "specialchars"},
		{"_leading", "leading"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, sanitizeName(tt.input))
		})
	}
}

func TestCreateMigration_NumbersSequentially(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "000004_barcode_cache.up.sql"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "000004_barcode_cache.down.sql"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), nil, 0o644))

	mf, err := CreateMigration(dir, "Add order notes")
	require.NoError(t, err)
	assert.Equal(t, 5, mf.Version)
	assert.Equal(t, filepath.Join(dir, "000005_add_order_notes.up.sql"), mf.UpPath)
	assert.Equal(t, filepath.Join(dir, "000005_add_order_notes.down.sql"), mf.DownPath)

	content, err := os.ReadFile(mf.DownPath)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(content), "-- add_order_notes (down)"))

	next, err := CreateMigration(dir, "second")
	require.NoError(t, err)
	assert.Equal(t, 6, next.Version)
}

func TestCreateMigration_RejectsEmptyName(t *testing.T) {
	_, err := CreateMigration(t.TempDir(), "!!!")
	assert.Error(t, err)
}

func TestLatestVersion_MissingDir(t *testing.T) {
	v, err := LatestVersion(filepath.Join(t.TempDir(), "nope"))
	require.NoError(t, err)
	assert.Zero(t, v)
}

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	ups, err := fs.Glob(migrations.FS, "*.up.sql")
	require.NoError(t, err)
	require.NotEmpty(t, ups)

	for _, up := range ups {
		down := strings.TrimSuffix(up, ".up.sql") + ".down.sql"
		_, err := fs.Stat(migrations.FS, down)
		assert.NoError(t, err, "missing %s", down)
	}
}

func TestEmbeddedMigrations_UniqueIndexes(t *testing.T) {
	trade, err := fs.ReadFile(migrations.FS, "000003_trade.up.sql")
	require.NoError(t, err)
	assert.Contains(t, string(trade), "CREATE UNIQUE INDEX IF NOT EXISTS idx_orders_external_order_id ON orders (external_order_id)")

	catalog, err := fs.ReadFile(migrations.FS, "000001_catalog.up.sql")
	require.NoError(t, err)
	assert.Contains(t, string(catalog), "idx_products_code ON products (code)")
	assert.Contains(t, string(catalog), "idx_products_external_id ON products (external_id)")
}
