package archive_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invoicefetcher/internal/archive"
	"invoicefetcher/pkg/models"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestBuildIndexEmptyRoot(t *testing.T) {
	root := t.TempDir()

	ix, inconsistencies, err := archive.BuildIndex(root, "platform")
	require.NoError(t, err)
	assert.Empty(t, ix)
	assert.Empty(t, inconsistencies)
}

func TestBuildIndex(t *testing.T) {
	root := t.TempDir()
	team := filepath.Join(root, "platform")

	// Two well-formed invoices.
	writeFile(t, filepath.Join(team, "2025", "03", "2025-03-07--249.99--111-2223334-5556667.pdf"), "%PDF-1.4 a")
	writeFile(t, filepath.Join(team, "2025", "04", "2025-04-01--12.00--INV9.pdf"), "%PDF-1.4 b")

	// Noise that must be ignored silently.
	writeFile(t, filepath.Join(team, "2025", "03", "notes.txt"), "unrelated")
	writeFile(t, filepath.Join(team, "2025", "03", "2025-03-08--10.00--INV5.pdf.tmp-f00d"), "partial")
	writeFile(t, filepath.Join(team, "not-a-year", "03", "2025-03-09--10.00--INV6.pdf"), "%PDF")
	require.NoError(t, os.MkdirAll(filepath.Join(team, "2025", "03", "subdir"), 0o755))

	ix, inconsistencies, err := archive.BuildIndex(root, "platform")
	require.NoError(t, err)
	assert.Empty(t, inconsistencies)
	assert.Len(t, ix, 2)

	key := models.InvoiceKey{Year: 2025, Month: 3, Day: 7, Amount: "249.99", InvoiceNumber: "111-2223334-5556667"}
	require.True(t, ix.Has(key))
	entry := ix[key]
	assert.Equal(t, "platform", entry.Team)
	assert.Equal(t, int64(10), entry.SizeBytes)
	assert.Equal(t, filepath.Join(team, "2025", "03", "2025-03-07--249.99--111-2223334-5556667.pdf"), entry.FilePath)
}

func TestBuildIndexMisfiledFile(t *testing.T) {
	root := t.TempDir()
	team := filepath.Join(root, "platform")

	// Name says 2025/03, directory says 2024/12.
	writeFile(t, filepath.Join(team, "2024", "12", "2025-03-07--249.99--INV1.pdf"), "%PDF")

	ix, inconsistencies, err := archive.BuildIndex(root, "platform")
	require.NoError(t, err)

	key := models.InvoiceKey{Year: 2025, Month: 3, Day: 7, Amount: "249.99", InvoiceNumber: "INV1"}
	assert.False(t, ix.Has(key), "misfiled file must not count as present")
	require.Len(t, inconsistencies, 1)
	assert.Contains(t, inconsistencies[0].Reason, "misfiled")
}

func TestBuildIndexZeroByteFile(t *testing.T) {
	root := t.TempDir()
	team := filepath.Join(root, "platform")

	writeFile(t, filepath.Join(team, "2025", "03", "2025-03-07--249.99--INV1.pdf"), "")

	ix, inconsistencies, err := archive.BuildIndex(root, "platform")
	require.NoError(t, err)

	key := models.InvoiceKey{Year: 2025, Month: 3, Day: 7, Amount: "249.99", InvoiceNumber: "INV1"}
	assert.False(t, ix.Has(key), "zero-byte file must not block re-download")
	require.Len(t, inconsistencies, 1)
	assert.Contains(t, inconsistencies[0].Reason, "zero-byte")
}

func TestScanSortsAndFiltersByYear(t *testing.T) {
	root := t.TempDir()
	team := filepath.Join(root, "platform")

	writeFile(t, filepath.Join(team, "2025", "02", "2025-02-10--5.00--B.pdf"), "x")
	writeFile(t, filepath.Join(team, "2024", "11", "2024-11-30--5.00--A.pdf"), "x")
	writeFile(t, filepath.Join(team, "2025", "02", "2025-02-01--5.00--C.pdf"), "x")

	all, _, err := archive.Scan(root, "platform", 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "A", all[0].Key.InvoiceNumber)
	assert.Equal(t, "C", all[1].Key.InvoiceNumber)
	assert.Equal(t, "B", all[2].Key.InvoiceNumber)

	only2025, _, err := archive.Scan(root, "platform", 2025)
	require.NoError(t, err)
	assert.Len(t, only2025, 2)
}
