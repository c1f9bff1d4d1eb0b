package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindRecipeWalksUp(t *testing.T) {
	root := t.TempDir()
	deep := filepath.Join(root, "a", "b", "c")
	require.NoError(t, os.MkdirAll(deep, 0o755))
	recipe := filepath.Join(root, recipeFileName)
	require.NoError(t, os.WriteFile(recipe, []byte("[build]\n"), 0o644))

	t.Chdir(deep)
	found, err := findRecipe()
	require.NoError(t, err)

	// resolve symlinks; macOS tempdirs live under /private
	wantReal, _ := filepath.EvalSymlinks(recipe)
	foundReal, _ := filepath.EvalSymlinks(found)
	assert.Equal(t, wantReal, foundReal)
}

func TestFindRecipeGivesUpPastSearchDepth(t *testing.T) {
	root := t.TempDir()
	deep := root
	for i := 0; i < recipeSearchDepth+2; i++ {
		deep = filepath.Join(deep, "d")
	}
	require.NoError(t, os.MkdirAll(deep, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, recipeFileName), []byte("[build]\n"), 0o644))

	t.Chdir(deep)
	_, err := findRecipe()
	assert.ErrorIs(t, err, errNoRecipe)
}

func TestFindRecipeHonorsOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "other.toml")
	require.NoError(t, os.WriteFile(path, []byte("[build]\n"), 0o644))

	flagRecipe = path
	defer func() { flagRecipe = "" }()

	found, err := findRecipe()
	require.NoError(t, err)
	assert.Equal(t, path, found)

	flagRecipe = filepath.Join(dir, "missing.toml")
	_, err = findRecipe()
	assert.ErrorIs(t, err, errNoRecipe)
}

func TestEnumValue(t *testing.T) {
	e := NewEnumValue("a", map[string]string{"a": "first", "b": "second"})
	assert.Equal(t, "a", e.Value())
	require.NoError(t, e.Set("b"))
	assert.Equal(t, "b", e.Value())
	assert.Error(t, e.Set("c"))
	assert.Equal(t, []string{"a", "b"}, e.AllowedKeys())
}
