package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flora-crawler/pkg/models"
	"flora-crawler/pkg/utils"
)

func TestFileFailureLogger_Append(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log", "link_failures.txt")
	logger := NewFileFailureLogger(path)
	assert.Equal(t, path, logger.Path())

	require.NoError(t, logger.Append(pageA, models.ParseFailure))
	require.NoError(t, logger.Append(pageB, models.SaveFailure))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, pageA+",ParseFailure\n"+pageB+",SaveFailure\n", string(data))
}

func TestFileFailureLogger_AppendsToExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "failures.txt")
	require.NoError(t, os.WriteFile(path, []byte("old,ParseFailure\n"), 0644))

	require.NoError(t, NewFileFailureLogger(path).Append(pageA, models.SaveFailure))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "old,ParseFailure\n"+pageA+",SaveFailure\n", string(data))
}

func TestFileFailureLogger_Unwritable(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, nil, 0644))

	// Parent "directory" is a regular file
	err := NewFileFailureLogger(filepath.Join(blocker, "failures.txt")).Append(pageA, models.ParseFailure)
	require.Error(t, err)
	assert.ErrorIs(t, err, utils.ErrLogFailure)
	assert.Equal(t, "FailureLog_Write", utils.CategorizeError(err))
}
