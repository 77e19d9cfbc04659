package resolve

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDistance(t *testing.T) {
	assert.Equal(t, 0, Distance("closed", "Closed"))
	assert.Equal(t, 1, Distance("closed", "close"))
	assert.Equal(t, 3, Distance("kitten", "sitting"))
}

func TestSuggestionsOrdersByDistance(t *testing.T) {
	got := Suggestions("opne", []string{"open", "closed", "opened", "in_progress"}, 2)
	require.NotEmpty(t, got)
	assert.Equal(t, "open", got[0])
}

func TestFuzzyMatch(t *testing.T) {
	assert.True(t, FuzzyMatch("cls", "close-issue"))
	assert.False(t, FuzzyMatch("xyz", "close-issue"))
}

func TestNormalizeStatus(t *testing.T) {
	assert.Equal(t, "closed", NormalizeStatus("done"))
	assert.Equal(t, "in_progress", NormalizeStatus("WIP"))
	assert.Equal(t, "unknown-word", NormalizeStatus("unknown-word"))
}

func TestNormalizePriority(t *testing.T) {
	assert.Equal(t, "4", NormalizePriority("critical"))
	assert.Equal(t, "0", NormalizePriority("trivial"))
	assert.Equal(t, "3", NormalizePriority("P3"))
	assert.Equal(t, "2", NormalizePriority("2"))
}

func TestLoadPresetFileMergesAndOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "synonyms.toml")
	contents := `
[status]
shipped = "closed"
done = "open"

[priority]
someday = "0"
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	require.NoError(t, LoadPresetFile(path))

	assert.Equal(t, "closed", NormalizeStatus("shipped"))
	assert.Equal(t, "open", NormalizeStatus("done"), "project preset overrides the built-in synonym")
	assert.Equal(t, "0", NormalizePriority("someday"))
}

func TestLoadPresetFileRejectsMalformedToml(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("not valid [[[ toml"), 0o644))
	assert.Error(t, LoadPresetFile(path))
}
