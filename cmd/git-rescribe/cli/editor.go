package cli

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"slices"
	"strings"
)

const defaultEditor = "vi"

// resolveEditor picks the plan editor: GIT_EDITOR, then the configured
// editor, then git's own choice (core.editor, VISUAL, EDITOR).
func resolveEditor(ctx context.Context, configured string) string {
	if e := os.Getenv("GIT_EDITOR"); e != "" {
		return e
	}
	if configured != "" {
		return configured
	}
	cmd := exec.CommandContext(ctx, "git", "var", "GIT_EDITOR")
	cmd.Env = withoutEmpty(os.Environ(), "GIT_EDITOR", "VISUAL", "EDITOR")
	out, err := cmd.Output()
	if err == nil {
		if e := strings.TrimSpace(string(out)); e != "" {
			return e
		}
	}
	return defaultEditor
}

// withoutEmpty drops the named variables from env when they are set but
// empty. git treats an empty VISUAL or GIT_EDITOR as a choice and reports
// no editor at all.
func withoutEmpty(env []string, names ...string) []string {
	out := make([]string, 0, len(env))
	for _, kv := range env {
		name, value, _ := strings.Cut(kv, "=")
		if value == "" && slices.Contains(names, name) {
			continue
		}
		out = append(out, kv)
	}
	return out
}

// editFile opens path in editor and waits for it to exit. The editor string
// goes through the shell so it may carry arguments, as git allows.
func editFile(ctx context.Context, editor, path string) error {
	cmd := exec.CommandContext(ctx, "sh", "-c", editor+` "$@"`, editor, path) //nolint:gosec // editor comes from the user's own configuration
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("editor %q failed: %w", editor, err)
	}
	return nil
}
