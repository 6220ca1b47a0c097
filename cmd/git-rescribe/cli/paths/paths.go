// Package paths locates the repository and the directories git-rescribe
// keeps its state in.
package paths

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
)

// Directory and file constants
const (
	// StateDirName is created inside the git dir. Each worktree keeps its own
	// plan file and branch marker; logs live in the common dir.
	StateDirName = "rescribe"

	PlanFileName   = "plan.yaml"
	BranchFileName = "orig-branch"
	LogsDirName    = "logs"

	// SettingsDir holds user settings, relative to the repository root.
	SettingsDir = ".rescribe"
)

// repoRootCache caches the repository root to avoid repeated git commands.
// The cache is keyed by the current working directory to handle directory changes.
var (
	repoRootMu       sync.RWMutex
	repoRootCache    string
	repoRootCacheDir string
)

// RepoRoot returns the git repository root directory.
// Uses 'git rev-parse --show-toplevel' which works from any subdirectory.
// The result is cached per working directory.
func RepoRoot() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		cwd = ""
	}

	repoRootMu.RLock()
	if repoRootCache != "" && repoRootCacheDir == cwd {
		cached := repoRootCache
		repoRootMu.RUnlock()
		return cached, nil
	}
	repoRootMu.RUnlock()

	output, err := gitRevParse("--show-toplevel")
	if err != nil {
		return "", fmt.Errorf("failed to get git repository root: %w", err)
	}

	repoRootMu.Lock()
	repoRootCache = output
	repoRootCacheDir = cwd
	repoRootMu.Unlock()

	return output, nil
}

// ClearRepoRootCache clears the cached repository root.
// Tests that change directory between repositories must call this.
func ClearRepoRootCache() {
	repoRootMu.Lock()
	repoRootCache = ""
	repoRootCacheDir = ""
	repoRootMu.Unlock()
}

// AbsPath returns relPath joined onto the repository root.
func AbsPath(relPath string) (string, error) {
	if filepath.IsAbs(relPath) {
		return relPath, nil
	}
	root, err := RepoRoot()
	if err != nil {
		return "", err
	}
	return filepath.Join(root, relPath), nil
}

// GitCommonDir returns the absolute path to the shared git directory.
// In a linked worktree this is the main repository's .git, not .git/worktrees/<name>.
func GitCommonDir() (string, error) {
	dir, err := gitRevParse("--git-common-dir")
	if err != nil {
		return "", fmt.Errorf("failed to get git common dir: %w", err)
	}
	if !filepath.IsAbs(dir) {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("failed to get working directory: %w", err)
		}
		dir = filepath.Join(cwd, dir)
	}
	return filepath.Clean(dir), nil
}

// StateDir returns <git-dir>/rescribe for the current worktree. The
// directory is not created.
func StateDir() (string, error) {
	dir, err := gitRevParse("--absolute-git-dir")
	if err != nil {
		return "", fmt.Errorf("failed to get git dir: %w", err)
	}
	return filepath.Join(dir, StateDirName), nil
}

// LogsDir returns <git-common-dir>/rescribe/logs.
func LogsDir() (string, error) {
	common, err := GitCommonDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(common, StateDirName, LogsDirName), nil
}

func gitRevParse(arg string) (string, error) {
	cmd := exec.CommandContext(context.Background(), "git", "rev-parse", arg)
	output, err := cmd.Output()
	if err != nil {
		return "", err //nolint:wrapcheck // wrapped by callers
	}
	return strings.TrimSpace(string(output)), nil
}
