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

// Reader is the part of the object store the planner reads from.
type Reader interface {
	GetCommitInfo(ctx context.Context, hash string) (*objectstore.CommitInfo, error)
	GetTreeHash(ctx context.Context, commitHash string) (string, error)
	ExpandTree(ctx context.Context, hash string) (string, error)
}

// NewPlan resolves validated descriptors into a plan. It reads from the
// object store but never writes to it.
//
// Each entry's parents are resolved against a cursor holding the outcome of
// the previous entry and against the replacement mapping built so far. An
// entry whose content names a commit is compared attribute by attribute with
// that commit; when nothing differs the commit is reused as-is.
func NewPlan(ctx context.Context, store Reader, commits []descriptor.Commit) (*Plan, error) {
	ctx = logging.WithComponent(ctx, "planner")
	defer logging.LogDuration(ctx, slog.LevelDebug, "plan built", time.Now())

	plan := &Plan{
		Entries:      make([]Entry, 0, len(commits)),
		Replacements: NewReplacements(),
	}
	var cursor Target

	for i, c := range commits {
		entry := Entry{Commit: c}

		tree, err := resolveTree(ctx, store, c.Content)
		if err != nil {
			return nil, fmt.Errorf("commits[%d]: %w", i, err)
		}
		entry.Tree = tree

		for _, ref := range c.Parents {
			t, err := resolveParent(i, ref, cursor, plan.Replacements)
			if err != nil {
				return nil, err
			}
			entry.Parents = append(entry.Parents, t)
		}

		if src, ok := c.OriginalHash(); ok {
			info, err := store.GetCommitInfo(ctx, src)
			if err != nil {
				return nil, fmt.Errorf("commits[%d]: reading original commit: %w", i, err)
			}
			entry.OriginalHash = info.Hash
			entry.Original = info
			entry.Reasons = compare(entry, info)
		}

		if entry.HasOriginal() && len(entry.Reasons) == 0 {
			entry.Action = ActionReuse
			cursor = Concrete(entry.OriginalHash)
		} else {
			entry.Action = ActionCreate
			cursor = Deferred(i)
		}
		if entry.HasOriginal() {
			plan.Replacements.Set(entry.OriginalHash, cursor)
		}

		logging.Debug(ctx, "planned entry",
			slog.Int("index", i),
			slog.String("action", entry.Action.String()),
			slog.String("original", entry.OriginalHash),
			slog.Any("reasons", entry.Reasons),
		)
		plan.Entries = append(plan.Entries, entry)
	}

	create, reuse := plan.Counts()
	logging.Info(ctx, "plan ready",
		slog.Int("entries", len(plan.Entries)),
		slog.Int("create", create),
		slog.Int("reuse", reuse),
	)
	return plan, nil
}

func resolveTree(ctx context.Context, store Reader, content descriptor.Content) (string, error) {
	switch content.Strategy {
	case descriptor.StrategyTree:
		tree, err := store.ExpandTree(ctx, content.Hash)
		if err != nil {
			return "", fmt.Errorf("resolving %s: %w", content, err)
		}
		return tree, nil
	case descriptor.StrategyDiff:
		logging.Warn(ctx, "diff content is not applied, using the commit's tree",
			slog.String("content", content.String()),
		)
		fallthrough
	default:
		tree, err := store.GetTreeHash(ctx, content.Hash)
		if err != nil {
			return "", fmt.Errorf("resolving %s: %w", content, err)
		}
		return tree, nil
	}
}

func resolveParent(index int, ref descriptor.ParentRef, cursor Target, replacements *Replacements) (Target, error) {
	switch ref.Kind {
	case descriptor.ParentPrevious:
		if index == 0 {
			return Target{}, &ReferenceError{Index: index, Parent: ref, Reason: "the first commit has no previous commit"}
		}
		return cursor, nil
	case descriptor.ParentRewritten:
		matches := replacements.Lookup(ref.Hash)
		switch len(matches) {
		case 0:
			return Target{}, &ReferenceError{Index: index, Parent: ref, Reason: "no earlier commit in the plan has this original hash"}
		case 1:
			return matches[0].Target, nil
		default:
			return Target{}, &ReferenceError{Index: index, Parent: ref, Reason: "hash is ambiguous within the plan"}
		}
	default:
		return Concrete(ref.Hash), nil
	}
}

// compare lists the attributes of entry that differ from the original commit.
func compare(entry Entry, info *objectstore.CommitInfo) []ChangeReason {
	c := entry.Commit
	var reasons []ChangeReason

	if !sameParents(entry.Parents, info.Parents) {
		reasons = append(reasons, ReasonParents)
	}
	if c.Author.Identity != descriptor.FormatIdentity(info.AuthorName, info.AuthorEmail) {
		reasons = append(reasons, ReasonAuthorIdentity)
	}
	if !descriptor.SameDate(c.Author.Date, info.AuthorDate) {
		reasons = append(reasons, ReasonAuthorDate)
	}
	if c.Committer.Identity != descriptor.FormatIdentity(info.CommitterName, info.CommitterEmail) {
		reasons = append(reasons, ReasonCommitterIdentity)
	}
	if !descriptor.SameDate(c.Committer.Date, info.CommitterDate) {
		reasons = append(reasons, ReasonCommitterDate)
	}
	if descriptor.TrimMessage(c.Message) != descriptor.TrimMessage(info.Message) {
		reasons = append(reasons, ReasonMessage)
	}
	return reasons
}

// sameParents compares position by position. A deferred parent is a commit
// that does not exist yet, so it never matches.
func sameParents(planned []Target, original []string) bool {
	if len(planned) != len(original) {
		return false
	}
	for i, t := range planned {
		if t.IsDeferred() || !descriptor.HashMatches(original[i], t.Hash) {
			return false
		}
	}
	return true
}
