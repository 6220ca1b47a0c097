// Package rebase plans and applies a rewritten history described by commit
// descriptors.
package rebase

import (
	"fmt"

	"github.com/szhu/git-rescribe/cmd/git-rescribe/cli/descriptor"
	"github.com/szhu/git-rescribe/cmd/git-rescribe/cli/objectstore"
)

// Action is what the executor does with a plan entry.
type Action int

const (
	// ActionCreate recreates the commit with the descriptor's metadata.
	ActionCreate Action = iota + 1
	// ActionReuse keeps the original commit object.
	ActionReuse
)

func (a Action) String() string {
	switch a {
	case ActionCreate:
		return "create"
	case ActionReuse:
		return "reuse"
	default:
		return fmt.Sprintf("Action(%d)", int(a))
	}
}

// ChangeReason names an attribute that differs from the original commit.
type ChangeReason string

const (
	// ReasonContent is never produced by the planner: commit: and diff:
	// content is the original's own tree, and tree: content has no original.
	ReasonContent           ChangeReason = "content"
	ReasonParents           ChangeReason = "parents"
	ReasonAuthorIdentity    ChangeReason = "author identity"
	ReasonAuthorDate        ChangeReason = "author date"
	ReasonCommitterIdentity ChangeReason = "committer identity"
	ReasonCommitterDate     ChangeReason = "committer date"
	ReasonMessage           ChangeReason = "message"
)

// Target is a commit hash, or a reference to the outcome of an earlier plan
// entry that is only known once that entry has been executed.
type Target struct {
	Hash     string
	Entry    int
	deferred bool
}

// Concrete returns a target naming an existing commit.
func Concrete(hash string) Target {
	return Target{Hash: hash}
}

// Deferred returns a target resolved to whatever entry produces.
func Deferred(entry int) Target {
	return Target{Entry: entry, deferred: true}
}

// IsDeferred reports whether t waits on another entry.
func (t Target) IsDeferred() bool {
	return t.deferred
}

func (t Target) String() string {
	if t.deferred {
		return fmt.Sprintf("<commit #%d>", t.Entry+1)
	}
	return descriptor.ShortHash(t.Hash)
}

// Entry is the planner's decision for one descriptor.
type Entry struct {
	Commit descriptor.Commit
	// OriginalHash is the full hash of the commit the descriptor came from,
	// empty for newly introduced commits.
	OriginalHash string
	// Original is the live metadata of OriginalHash.
	Original *objectstore.CommitInfo
	Action   Action
	Tree     string
	Parents  []Target
	Reasons  []ChangeReason
}

// HasOriginal reports whether the entry descends from an existing commit.
func (e Entry) HasOriginal() bool {
	return e.OriginalHash != ""
}

// Plan is the ordered list of entries the executor applies.
type Plan struct {
	Entries      []Entry
	Replacements *Replacements
}

// Counts returns how many entries are recreated and how many are reused.
func (p *Plan) Counts() (create, reuse int) {
	for _, e := range p.Entries {
		if e.Action == ActionReuse {
			reuse++
		} else {
			create++
		}
	}
	return create, reuse
}

// IsNoop reports whether executing the plan would create no commits.
func (p *Plan) IsNoop() bool {
	create, _ := p.Counts()
	return create == 0
}
