package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/szhu/git-rescribe/cmd/git-rescribe/cli/testutil"
)

func TestResolveEditor_GitEditorWins(t *testing.T) {
	t.Setenv("GIT_EDITOR", "nano")
	assert.Equal(t, "nano", resolveEditor(context.Background(), "code --wait"))
}

func TestResolveEditor_Configured(t *testing.T) {
	t.Setenv("GIT_EDITOR", "")
	assert.Equal(t, "code --wait", resolveEditor(context.Background(), "code --wait"))
}

// isolateGitConfig keeps the user's core.editor out of git var.
func isolateGitConfig(t *testing.T) {
	t.Helper()
	t.Setenv("GIT_CONFIG_GLOBAL", os.DevNull)
	t.Setenv("GIT_CONFIG_NOSYSTEM", "1")
	t.Chdir(t.TempDir())
}

// unsetenv removes name for the rest of the test and restores it afterwards.
func unsetenv(t *testing.T, name string) {
	t.Helper()
	t.Setenv(name, "")
	require.NoError(t, os.Unsetenv(name))
}

func TestResolveEditor_FallsBackToGit(t *testing.T) {
	testutil.GitAvailable(t)
	unsetenv(t, "GIT_EDITOR")
	unsetenv(t, "VISUAL")
	t.Setenv("EDITOR", "ed")
	isolateGitConfig(t)

	assert.Equal(t, "ed", resolveEditor(context.Background(), ""))
}

func TestResolveEditor_EmptyVariablesAreSkipped(t *testing.T) {
	testutil.GitAvailable(t)
	t.Setenv("GIT_EDITOR", "")
	t.Setenv("VISUAL", "")
	t.Setenv("EDITOR", "ed")
	isolateGitConfig(t)

	assert.Equal(t, "ed", resolveEditor(context.Background(), ""))
}

func TestWithoutEmpty(t *testing.T) {
	env := []string{"VISUAL=", "EDITOR=ed", "HOME=", "GIT_EDITOR="}
	assert.Equal(t, []string{"EDITOR=ed", "HOME="}, withoutEmpty(env, "GIT_EDITOR", "VISUAL", "EDITOR"))
}

func TestEditFile_PassesPathAsArgument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plan with spaces.yaml")
	require.NoError(t, os.WriteFile(path, []byte("old\n"), 0o600))

	require.NoError(t, editFile(context.Background(), "sed -i -e s/old/new/", path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "new\n", string(data))
}

func TestEditFile_ReportsFailure(t *testing.T) {
	err := editFile(context.Background(), "false", filepath.Join(t.TempDir(), "plan.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `editor "false" failed`)
}
