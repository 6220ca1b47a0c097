// Package state persists an in-progress rescribe between invocations: the
// plan file the user edits and the name of the branch being rewritten.
//
// There is no locking. Callers check InProgress before starting.
package state

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/szhu/git-rescribe/cmd/git-rescribe/cli/paths"
)

var (
	// ErrInProgress is returned when starting while a plan file exists.
	ErrInProgress = errors.New("a rescribe is already in progress")
	// ErrNotInProgress is returned when continuing or aborting without a plan file.
	ErrNotInProgress = errors.New("no rescribe in progress")
)

// Error reports an operation requested in the wrong state.
type Error struct {
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("cannot %s: %v (%s)", e.Op, e.Err, e.Path)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Dir holds the state files of one repository.
type Dir struct {
	path string
}

// New returns the state directory rooted at path.
func New(path string) *Dir {
	return &Dir{path: path}
}

// Default returns the state directory of the current repository.
func Default() (*Dir, error) {
	dir, err := paths.StateDir()
	if err != nil {
		return nil, err //nolint:wrapcheck // already descriptive
	}
	return New(dir), nil
}

// PlanPath is the file the user edits.
func (d *Dir) PlanPath() string {
	return filepath.Join(d.path, paths.PlanFileName)
}

func (d *Dir) branchPath() string {
	return filepath.Join(d.path, paths.BranchFileName)
}

// InProgress reports whether a plan file exists.
func (d *Dir) InProgress() bool {
	_, err := os.Stat(d.PlanPath())
	return err == nil
}

// Begin records the branch being rewritten and writes the initial plan.
func (d *Dir) Begin(branch string, plan []byte) error {
	if d.InProgress() {
		return &Error{Op: "start", Path: d.PlanPath(), Err: ErrInProgress}
	}
	if err := os.MkdirAll(d.path, 0o750); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}
	if err := os.WriteFile(d.branchPath(), []byte(branch+"\n"), 0o600); err != nil {
		return fmt.Errorf("writing branch marker: %w", err)
	}
	if err := d.WritePlan(plan); err != nil {
		_ = os.Remove(d.branchPath())
		return err
	}
	return nil
}

// WritePlan replaces the plan file.
func (d *Dir) WritePlan(plan []byte) error {
	if err := os.WriteFile(d.PlanPath(), plan, 0o600); err != nil {
		return fmt.Errorf("writing plan file: %w", err)
	}
	return nil
}

// ReadPlan returns the plan file contents.
func (d *Dir) ReadPlan(op string) ([]byte, error) {
	data, err := os.ReadFile(d.PlanPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &Error{Op: op, Path: d.PlanPath(), Err: ErrNotInProgress}
		}
		return nil, fmt.Errorf("reading plan file: %w", err)
	}
	return data, nil
}

// OriginalBranch returns the branch recorded by Begin, or "" if the marker
// is missing.
func (d *Dir) OriginalBranch() string {
	data, err := os.ReadFile(d.branchPath())
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// Clear removes the plan file and the branch marker. Missing files are not
// an error, so Clear can be repeated.
func (d *Dir) Clear() error {
	for _, p := range []string{d.PlanPath(), d.branchPath()} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing %s: %w", filepath.Base(p), err)
		}
	}
	return nil
}
