package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"

	"github.com/szhu/git-rescribe/cmd/git-rescribe/cli/rebase"
)

// errNeedsConfirmation is returned when a prompt is needed but stdin is not a terminal.
var errNeedsConfirmation = errors.New("confirmation required but stdin is not a terminal; rerun with --yes")

// NewAccessibleForm creates a huh form that honours the ACCESSIBLE
// environment variable by using plain text prompts.
func NewAccessibleForm(groups ...*huh.Group) *huh.Form {
	return huh.NewForm(groups...).WithAccessible(os.Getenv("ACCESSIBLE") != "")
}

// isTerminal is swapped out by tests.
var isTerminal = func() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// confirmFunc returns the executor's confirmation gate, or nil when the
// user asked not to be prompted.
func confirmFunc(opts runOptions) rebase.ConfirmFunc {
	if opts.AssumeYes {
		return nil
	}
	return func(_ context.Context, plan *rebase.Plan) (bool, error) {
		if !isTerminal() {
			return false, errNeedsConfirmation
		}

		create, reuse := plan.Counts()
		var confirmed bool
		form := NewAccessibleForm(
			huh.NewGroup(
				huh.NewConfirm().
					Title(fmt.Sprintf("Create %d new commit(s)?", create)).
					Description(fmt.Sprintf("%d commit(s) are kept as-is. The branch will be reset to the new history.", reuse)).
					Value(&confirmed),
			),
		)
		if err := form.Run(); err != nil {
			if errors.Is(err, huh.ErrUserAborted) {
				return false, nil
			}
			return false, fmt.Errorf("failed to get confirmation: %w", err)
		}
		return confirmed, nil
	}
}
