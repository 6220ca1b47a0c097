// Package objectstore is git-rescribe's view of the git object database:
// reading commit metadata, creating commit objects and moving the current
// branch.
package objectstore

import (
	"context"
	"fmt"
	"time"
)

// CommitInfo is the metadata of an existing commit.
type CommitInfo struct {
	Hash           string
	AuthorName     string
	AuthorEmail    string
	AuthorDate     time.Time
	CommitterName  string
	CommitterEmail string
	CommitterDate  time.Time
	Tree           string
	Parents        []string
	Message        string
}

// Signature is a name, email and timestamp recorded on a commit.
type Signature struct {
	Name  string
	Email string
	When  time.Time
}

// NewCommit describes a commit object to create. Tree and parent hashes may
// be abbreviated; timestamps are stored verbatim.
type NewCommit struct {
	Tree      string
	Parents   []string
	Author    Signature
	Committer Signature
	Message   string
}

// Range selects the commits in Base..HEAD, or every ancestor of HEAD when
// Root is set.
type Range struct {
	Base string
	Root bool
}

func (r Range) String() string {
	if r.Root {
		return "--root"
	}
	return r.Base + "..HEAD"
}

// Store is the set of object database operations the rebase engine needs.
type Store interface {
	GetCommitInfo(ctx context.Context, hash string) (*CommitInfo, error)
	GetTreeHash(ctx context.Context, commitHash string) (string, error)
	// ExpandTree returns the full hash of a possibly-abbreviated tree hash.
	ExpandTree(ctx context.Context, hash string) (string, error)
	CreateCommit(ctx context.Context, c NewCommit) (string, error)
	// ResolveRef reports whether ref names an existing commit.
	ResolveRef(ctx context.Context, ref string) bool
	CountCommits(ctx context.Context, r Range) (int, error)
	// RevList returns the full hashes in r, parents before children.
	RevList(ctx context.Context, r Range) ([]string, error)
	GetCurrentBranch(ctx context.Context) (string, error)
	// UpdateCurrentBranch points the current branch at hash and
	// synchronises the working tree to it, discarding local changes.
	UpdateCurrentBranch(ctx context.Context, hash string) error
}

// Error is returned for every failed object database operation.
type Error struct {
	Op  string
	Ref string
	Err error
}

func (e *Error) Error() string {
	if e.Ref == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Ref, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func wrap(op, ref string, err error) error {
	return &Error{Op: op, Ref: ref, Err: err}
}
