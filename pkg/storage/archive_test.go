package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArchive_StoreAndRead(t *testing.T) {
	archive, err := NewArchive(t.TempDir())
	require.NoError(t, err)

	data := []byte("Date,Reference,Amount\n15/01/2026,HAR149,2500.00\n")
	stored, err := archive.Store("january statement.csv", data)
	require.NoError(t, err)

	assert.Equal(t, "january statement.csv", stored.FileName)
	assert.Equal(t, int64(len(data)), stored.Size)
	assert.Len(t, stored.Checksum, 64)
	assert.NotContains(t, stored.Path, " ")

	got, err := archive.Read(stored.Path)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestArchive_SameContentSameChecksum(t *testing.T) {
	archive, err := NewArchive(t.TempDir())
	require.NoError(t, err)

	a, err := archive.Store("a.csv", []byte("x"))
	require.NoError(t, err)
	b, err := archive.Store("b.csv", []byte("x"))
	require.NoError(t, err)

	assert.Equal(t, a.Checksum, b.Checksum)
	assert.NotEqual(t, a.Path, b.Path)
}

func TestArchive_ReadRejectsEscapingPaths(t *testing.T) {
	archive, err := NewArchive(t.TempDir())
	require.NoError(t, err)

	_, err = archive.Read("/etc/passwd")
	assert.Error(t, err)
}

func TestSanitizeFileName(t *testing.T) {
	assert.Equal(t, "jan_2026.csv", sanitizeFileName("jan 2026.csv"))
	assert.Equal(t, "passwd", sanitizeFileName("../../etc/passwd"))
	assert.Equal(t, "statement", sanitizeFileName(""))
}
