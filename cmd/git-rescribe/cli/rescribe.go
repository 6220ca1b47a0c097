package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/szhu/git-rescribe/cmd/git-rescribe/cli/descriptor"
	"github.com/szhu/git-rescribe/cmd/git-rescribe/cli/history"
	"github.com/szhu/git-rescribe/cmd/git-rescribe/cli/logging"
	"github.com/szhu/git-rescribe/cmd/git-rescribe/cli/objectstore"
	"github.com/szhu/git-rescribe/cmd/git-rescribe/cli/paths"
	"github.com/szhu/git-rescribe/cmd/git-rescribe/cli/rebase"
	"github.com/szhu/git-rescribe/cmd/git-rescribe/cli/settings"
	"github.com/szhu/git-rescribe/cmd/git-rescribe/cli/state"
)

var errNotRepository = errors.New("not a git repository")

// session bundles what every flow needs from the current repository.
type session struct {
	state *state.Dir
	store *objectstore.Git
	cfg   *settings.Settings
}

func openSession() (*session, error) {
	root, err := paths.RepoRoot()
	if err != nil {
		return nil, errNotRepository
	}
	st, err := state.Default()
	if err != nil {
		return nil, errNotRepository
	}
	store, err := objectstore.Open(root)
	if err != nil {
		return nil, fmt.Errorf("failed to open git repository: %w", err)
	}
	cfg, err := settings.Load()
	if err != nil {
		return nil, err //nolint:wrapcheck // already descriptive
	}
	return &session{state: st, store: store, cfg: cfg}, nil
}

// runStart writes the plan for the range, lets the user edit it and applies it.
func runStart(cmd *cobra.Command, base string, root bool, opts runOptions) error {
	ctx := logging.WithComponent(cmd.Context(), "start")
	out, errOut := cmd.OutOrStdout(), cmd.ErrOrStderr()

	s, err := openSession()
	if err != nil {
		return err
	}
	if s.state.InProgress() {
		return &state.Error{Op: "start", Path: s.state.PlanPath(), Err: state.ErrInProgress}
	}

	r := objectstore.Range{Base: base, Root: root}
	if !root && !s.store.ResolveRef(ctx, base) {
		return fmt.Errorf("unknown revision %q", base)
	}

	branch, err := s.store.GetCurrentBranch(ctx)
	if err != nil {
		return fmt.Errorf("cannot rescribe: %w", err)
	}
	ctx = logging.WithBranch(ctx, branch)

	count, err := s.store.CountCommits(ctx, r)
	if err != nil {
		return fmt.Errorf("listing %s: %w", r, err)
	}
	if count == 0 {
		return fmt.Errorf("nothing to rescribe: %s is empty", r)
	}

	commits, err := history.Extract(ctx, s.store, r, history.Options{Concurrency: s.cfg.FetchConcurrency})
	if err != nil {
		return fmt.Errorf("reading history: %w", err)
	}
	data, err := descriptor.Marshal(commits)
	if err != nil {
		return fmt.Errorf("writing plan: %w", err)
	}
	if err := s.state.Begin(branch, data); err != nil {
		return err //nolint:wrapcheck // state errors carry the path
	}
	logging.Info(ctx, "plan written",
		slog.String("range", r.String()),
		slog.Int("commits", len(commits)),
	)
	fmt.Fprintf(out, "Wrote %d commit(s) to %s\n", len(commits), s.state.PlanPath())

	editor := resolveEditor(ctx, s.cfg.Editor)
	if err := editFile(ctx, editor, s.state.PlanPath()); err != nil {
		logging.Warn(ctx, "editor failed", slog.String("editor", editor), slog.String("error", err.Error()))
		fmt.Fprintf(errOut, "%v\n", err)
		printResumeHint(errOut, s.state)
		return NewSilentError(err)
	}

	return applyPlan(ctx, cmd, s, opts)
}

// runContinue applies the plan left by an earlier start.
func runContinue(cmd *cobra.Command, opts runOptions) error {
	ctx := logging.WithComponent(cmd.Context(), "continue")

	s, err := openSession()
	if err != nil {
		return err
	}
	return applyPlan(ctx, cmd, s, opts)
}

// runAbort discards the plan in progress. The branch was never touched, so
// there is nothing to restore.
func runAbort(cmd *cobra.Command) error {
	ctx := logging.WithComponent(cmd.Context(), "abort")

	st, err := state.Default()
	if err != nil {
		return errNotRepository
	}

	if !st.InProgress() {
		return &state.Error{Op: "abort", Path: st.PlanPath(), Err: state.ErrNotInProgress}
	}
	branch := st.OriginalBranch()
	if err := st.Clear(); err != nil {
		return err //nolint:wrapcheck // already descriptive
	}

	logging.Info(logging.WithBranch(ctx, branch), "plan discarded")
	if branch != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "Discarded the plan; %s is unchanged.\n", branch)
	} else {
		fmt.Fprintln(cmd.OutOrStdout(), "Discarded the plan.")
	}
	return nil
}

func applyPlan(ctx context.Context, cmd *cobra.Command, s *session, opts runOptions) error {
	out, errOut := cmd.OutOrStdout(), cmd.ErrOrStderr()

	data, err := s.state.ReadPlan("continue")
	if err != nil {
		return err //nolint:wrapcheck // state errors carry the path
	}

	current, err := s.store.GetCurrentBranch(ctx)
	if err != nil {
		return fmt.Errorf("cannot rescribe: %w", err)
	}
	branch := s.state.OriginalBranch()
	if branch != "" && branch != current {
		return fmt.Errorf("the plan was started on %s but %s is checked out; switch back or run --abort", branch, current)
	}
	branch = current
	ctx = logging.WithBranch(ctx, branch)

	commits, err := descriptor.Parse(data)
	if err != nil {
		var verr *descriptor.ValidationError
		if errors.As(err, &verr) {
			fmt.Fprintf(errOut, "%v\n", err)
			printResumeHint(errOut, s.state)
			return NewSilentError(err)
		}
		return fmt.Errorf("reading plan: %w", err)
	}

	plan, err := rebase.NewPlan(ctx, s.store, commits)
	if err != nil {
		var rerr *rebase.ReferenceError
		if errors.As(err, &rerr) {
			fmt.Fprintf(errOut, "%v\n", err)
			printResumeHint(errOut, s.state)
			return NewSilentError(err)
		}
		return fmt.Errorf("planning: %w", err)
	}

	renderPlan(out, branch, plan, opts.Verbose)

	head, err := s.store.GetCommitInfo(ctx, "HEAD")
	if err != nil {
		return fmt.Errorf("reading HEAD: %w", err)
	}
	if plan.IsNoop() && plan.Entries[len(plan.Entries)-1].OriginalHash == head.Hash {
		if err := s.state.Clear(); err != nil {
			return err //nolint:wrapcheck // already descriptive
		}
		logging.Info(ctx, "plan is a no-op")
		fmt.Fprintf(out, "Nothing to change; %s is untouched.\n", branch)
		return nil
	}

	dirty, err := s.store.HasTrackedChanges(ctx)
	if err != nil {
		return err //nolint:wrapcheck // store errors name the operation
	}
	if dirty {
		fmt.Fprintln(errOut, "You have uncommitted changes to tracked files, which a rescribe would discard.")
		fmt.Fprintln(errOut, "Commit or stash them, then run 'git rescribe --continue'.")
		return NewSilentError(errors.New("uncommitted changes"))
	}

	confirm := confirmFunc(runOptions{AssumeYes: opts.AssumeYes || s.cfg.AssumeYes})
	result, err := rebase.Execute(ctx, s.store, plan, rebase.Options{AdvanceBranch: true, Confirm: confirm})
	switch {
	case errors.Is(err, rebase.ErrDeclined):
		fmt.Fprintln(out, "Nothing was changed.")
		printResumeHint(out, s.state)
		return nil
	case err != nil:
		logging.Error(ctx, "rescribe failed", slog.String("error", err.Error()))
		fmt.Fprintf(errOut, "%v\n", err)
		fmt.Fprintf(errOut, "%s was not moved.\n", branch)
		printResumeHint(errOut, s.state)
		return NewSilentError(err)
	}

	if err := s.state.Clear(); err != nil {
		return err //nolint:wrapcheck // already descriptive
	}

	fmt.Fprintf(out, "Rewrote %s: %d created, %d reused. HEAD is now %s.\n",
		branch, result.Created, result.Reused, descriptor.ShortHash(result.Head))
	if opts.Verbose {
		for _, rep := range result.Mapping.Changed() {
			fmt.Fprintf(out, "  %s -> %s\n", descriptor.ShortHash(rep.Original), rep.Target)
		}
	}
	return nil
}

func printResumeHint(w io.Writer, st *state.Dir) {
	fmt.Fprintf(w, "The plan is kept at %s.\n", st.PlanPath())
	fmt.Fprintln(w, "Edit it and run 'git rescribe --continue', or run 'git rescribe --abort'.")
}
