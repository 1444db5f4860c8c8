package file

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/dossier/internal/core/ports/driven"
)

func newTestPromptStore(t *testing.T, dir string) *PromptStore {
	t.Helper()
	store, err := NewPromptStore(dir,
		WithDefault(driven.PromptSummarise, "Summarise in %d: %s"),
		WithDefault(driven.PromptDescribeImage, "Describe the image."),
	)
	require.NoError(t, err)
	return store
}

func TestNewPromptStore_DefaultDir(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("cannot determine home directory")
	}

	store, err := NewPromptStore("")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".dossier", "prompts"), store.Dir())
}

func TestPromptStore_Load_CreatesDefaultFiles(t *testing.T) {
	dir := t.TempDir()
	store := newTestPromptStore(t, dir)

	_, err := os.Stat(dir + "/summarise.txt")
	assert.True(t, os.IsNotExist(err), "constructor performs no I/O")

	prompt, err := store.Load(driven.PromptSummarise)
	require.NoError(t, err)
	assert.Equal(t, "Summarise in %d: %s", prompt)

	for _, f := range []string{"summarise.txt", "describe_image.txt", "README.md"} {
		_, err := os.Stat(filepath.Join(dir, f))
		assert.NoError(t, err, "expected file %s to exist", f)
	}

	readme, err := os.ReadFile(filepath.Join(dir, "README.md"))
	require.NoError(t, err)
	assert.Contains(t, string(readme), "`describe_image.txt`")
}

func TestPromptStore_Load_UserEditWins(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "summarise.txt"), []byte("  custom %d %s\n"), 0600))

	store := newTestPromptStore(t, dir)
	prompt, err := store.Load(driven.PromptSummarise)
	require.NoError(t, err)
	assert.Equal(t, "custom %d %s", prompt)

	data, err := os.ReadFile(filepath.Join(dir, "summarise.txt"))
	require.NoError(t, err)
	assert.Equal(t, "  custom %d %s\n", string(data), "existing file is not overwritten")
}

func TestPromptStore_Load_EmptyFileFallsBack(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "describe_image.txt"), []byte("\n"), 0600))

	prompt, err := newTestPromptStore(t, dir).Load(driven.PromptDescribeImage)
	require.NoError(t, err)
	assert.Equal(t, "Describe the image.", prompt)
}

func TestPromptStore_Load_Unknown(t *testing.T) {
	store := newTestPromptStore(t, t.TempDir())

	_, err := store.Load("nonexistent")
	assert.Error(t, err)

	_, err = store.Load("../escape")
	assert.Error(t, err)
}

func TestPromptStore_Load_ExtraFileWithoutDefault(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "insights.txt"), []byte("list %d facts: %s"), 0600))

	prompt, err := newTestPromptStore(t, dir).Load(driven.PromptInsights)
	require.NoError(t, err)
	assert.Equal(t, "list %d facts: %s", prompt)
}

func TestPromptStore_Reload(t *testing.T) {
	dir := t.TempDir()
	store := newTestPromptStore(t, dir)

	first, err := store.Load(driven.PromptSummarise)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "summarise.txt"), []byte("edited"), 0600))

	cached, err := store.Load(driven.PromptSummarise)
	require.NoError(t, err)
	assert.Equal(t, first, cached)

	store.Reload()
	fresh, err := store.Load(driven.PromptSummarise)
	require.NoError(t, err)
	assert.Equal(t, "edited", fresh)
}

func TestPromptStore_InitFailureUsesDefaults(t *testing.T) {
	parent := t.TempDir()
	blocker := filepath.Join(parent, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0600))

	store := newTestPromptStore(t, filepath.Join(blocker, "prompts"))

	prompt, err := store.Load(driven.PromptSummarise)
	require.NoError(t, err)
	assert.Equal(t, "Summarise in %d: %s", prompt)

	_, err = store.Load(driven.PromptInsights)
	assert.Error(t, err)
}

func TestPromptStore_ConcurrentLoad(t *testing.T) {
	store := newTestPromptStore(t, t.TempDir())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			prompt, err := store.Load(driven.PromptSummarise)
			assert.NoError(t, err)
			assert.Equal(t, "Summarise in %d: %s", prompt)
		}()
	}
	wg.Wait()
}

func TestPromptStore_Names(t *testing.T) {
	assert.Equal(t, []string{"describe_image", "summarise"}, newTestPromptStore(t, t.TempDir()).Names())
}
