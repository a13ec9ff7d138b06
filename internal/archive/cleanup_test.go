package archive_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invoicefetcher/internal/archive"
)

func TestCleanupEmptyDirs(t *testing.T) {
	root := t.TempDir()
	team := filepath.Join(root, "platform")

	writeFile(t, filepath.Join(team, "2025", "03", "2025-03-07--249.99--INV1.pdf"), "%PDF")
	require.NoError(t, os.MkdirAll(filepath.Join(team, "2025", "04"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(team, "2024", "12"), 0o755))

	removed, err := archive.CleanupEmptyDirs(root, "platform")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		filepath.Join(team, "2025", "04"),
		filepath.Join(team, "2024", "12"),
		filepath.Join(team, "2024"),
	}, removed)

	// The populated partition and the team directory survive.
	assert.DirExists(t, filepath.Join(team, "2025", "03"))
	assert.NoDirExists(t, filepath.Join(team, "2024"))
	assert.DirExists(t, team)
}

func TestCleanupEmptyDirsLeavesForeignDirectories(t *testing.T) {
	root := t.TempDir()
	team := filepath.Join(root, "platform")

	// Non-canonical directory names are not ours to remove, even empty.
	require.NoError(t, os.MkdirAll(filepath.Join(team, "archive-backup"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(team, "2025", "not-a-month"), 0o755))

	removed, err := archive.CleanupEmptyDirs(root, "platform")
	require.NoError(t, err)
	assert.Empty(t, removed)
	assert.DirExists(t, filepath.Join(team, "archive-backup"))
	assert.DirExists(t, filepath.Join(team, "2025", "not-a-month"))
}

func TestCleanupEmptyDirsMissingTeam(t *testing.T) {
	removed, err := archive.CleanupEmptyDirs(t.TempDir(), "platform")
	require.NoError(t, err)
	assert.Empty(t, removed)
}
