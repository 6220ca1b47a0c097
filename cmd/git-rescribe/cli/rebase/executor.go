package rebase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/szhu/git-rescribe/cmd/git-rescribe/cli/descriptor"
	"github.com/szhu/git-rescribe/cmd/git-rescribe/cli/logging"
	"github.com/szhu/git-rescribe/cmd/git-rescribe/cli/objectstore"
)

// Writer is the part of the object store the executor writes to.
type Writer interface {
	CreateCommit(ctx context.Context, c objectstore.NewCommit) (string, error)
	UpdateCurrentBranch(ctx context.Context, hash string) error
}

// ConfirmFunc is asked once, before anything is written, whether to go ahead.
type ConfirmFunc func(ctx context.Context, plan *Plan) (bool, error)

// Options controls Execute.
type Options struct {
	// AdvanceBranch moves the current branch to the last commit and resets
	// the working tree to it.
	AdvanceBranch bool
	// Confirm, when set, gates execution. Nil means proceed.
	Confirm ConfirmFunc
}

// Result describes an executed plan.
type Result struct {
	// Head is the hash of the last entry, empty for an empty plan.
	Head string
	// Hashes holds the resulting hash of every entry, in plan order.
	Hashes  []string
	Created int
	Reused  int
	// Mapping records original → resulting hash for every entry with an original.
	Mapping *Replacements
}

// Execute applies plan in order. Any failure stops immediately: commits
// already written stay in the object store unreferenced, and the branch is
// not moved.
func Execute(ctx context.Context, store Writer, plan *Plan, opts Options) (*Result, error) {
	ctx = logging.WithComponent(ctx, "executor")
	defer logging.LogDuration(ctx, slog.LevelDebug, "plan executed", time.Now())

	if opts.Confirm != nil {
		ok, err := opts.Confirm(ctx, plan)
		if err != nil {
			return nil, fmt.Errorf("confirming plan: %w", err)
		}
		if !ok {
			return nil, ErrDeclined
		}
	}

	result := &Result{
		Hashes:  make([]string, 0, len(plan.Entries)),
		Mapping: NewReplacements(),
	}

	for i, entry := range plan.Entries {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("interrupted before commits[%d]: %w", i, err)
		}

		var hash string
		if entry.Action == ActionReuse {
			hash = entry.OriginalHash
			result.Reused++
		} else {
			parents, err := resolveTargets(i, entry.Parents, result.Hashes)
			if err != nil {
				return nil, err
			}
			hash, err = store.CreateCommit(ctx, newCommit(entry, parents))
			if err != nil {
				return nil, fmt.Errorf("creating commits[%d]: %w", i, err)
			}
			result.Created++
		}

		if entry.HasOriginal() {
			result.Mapping.Set(entry.OriginalHash, Concrete(hash))
		}
		result.Hashes = append(result.Hashes, hash)
		result.Head = hash

		logging.Debug(ctx, "applied entry",
			slog.Int("index", i),
			slog.String("action", entry.Action.String()),
			slog.String("original", entry.OriginalHash),
			slog.String("hash", hash),
		)
	}

	if opts.AdvanceBranch && result.Head != "" {
		if err := store.UpdateCurrentBranch(ctx, result.Head); err != nil {
			return nil, fmt.Errorf("advancing branch: %w", err)
		}
	}

	logging.Info(ctx, "rebase applied",
		slog.String("head", result.Head),
		slog.Int("created", result.Created),
		slog.Int("reused", result.Reused),
		slog.Bool("branch_advanced", opts.AdvanceBranch && result.Head != ""),
	)
	return result, nil
}

// resolveTargets replaces deferred parents with the hash their entry produced.
func resolveTargets(index int, targets []Target, produced []string) ([]string, error) {
	out := make([]string, 0, len(targets))
	for _, t := range targets {
		if !t.IsDeferred() {
			out = append(out, t.Hash)
			continue
		}
		if t.Entry < 0 || t.Entry >= len(produced) {
			return nil, fmt.Errorf("commits[%d]: parent refers to commits[%d], which has not been applied", index, t.Entry)
		}
		out = append(out, produced[t.Entry])
	}
	return out, nil
}

func newCommit(entry Entry, parents []string) objectstore.NewCommit {
	c := entry.Commit
	msg := descriptor.TrimMessage(c.Message)
	if msg != "" {
		msg += "\n"
	}
	return objectstore.NewCommit{
		Tree:      entry.Tree,
		Parents:   parents,
		Author:    objectstore.Signature{Name: c.Author.Name(), Email: c.Author.Email(), When: c.Author.Date},
		Committer: objectstore.Signature{Name: c.Committer.Name(), Email: c.Committer.Email(), When: c.Committer.Date},
		Message:   msg,
	}
}
