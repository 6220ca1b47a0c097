package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

var (
	errAmbiguous = errors.New("ambiguous abbreviated hash")
	errDetached  = errors.New("not on a branch (detached HEAD)")
)

// Git implements Store on top of go-git. Repository access is serialised,
// so a Git may be shared by concurrent callers.
type Git struct {
	mu   sync.Mutex
	repo *git.Repository
	// workdir is the worktree root, empty for bare and in-memory repositories.
	workdir string
}

var _ Store = (*Git)(nil)

// Open opens the repository whose worktree root is dir, with linked
// worktree support enabled.
func Open(dir string) (*Git, error) {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{
		EnableDotGitCommonDir: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open repository: %w", err)
	}
	return &Git{repo: repo, workdir: dir}, nil
}

// New wraps an already-open repository. workdir may be empty, in which
// case UpdateCurrentBranch only moves the branch reference.
func New(repo *git.Repository, workdir string) *Git {
	return &Git{repo: repo, workdir: workdir}
}

// Repository exposes the underlying go-git repository.
func (g *Git) Repository() *git.Repository {
	return g.repo
}

func (g *Git) GetCommitInfo(_ context.Context, hash string) (*CommitInfo, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	c, err := g.commitObject(hash)
	if err != nil {
		return nil, wrap("get commit", hash, err)
	}
	parents := make([]string, 0, len(c.ParentHashes))
	for _, p := range c.ParentHashes {
		parents = append(parents, p.String())
	}
	return &CommitInfo{
		Hash:           c.Hash.String(),
		AuthorName:     c.Author.Name,
		AuthorEmail:    c.Author.Email,
		AuthorDate:     c.Author.When,
		CommitterName:  c.Committer.Name,
		CommitterEmail: c.Committer.Email,
		CommitterDate:  c.Committer.When,
		Tree:           c.TreeHash.String(),
		Parents:        parents,
		Message:        c.Message,
	}, nil
}

func (g *Git) GetTreeHash(_ context.Context, commitHash string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	c, err := g.commitObject(commitHash)
	if err != nil {
		return "", wrap("get tree", commitHash, err)
	}
	return c.TreeHash.String(), nil
}

func (g *Git) ExpandTree(_ context.Context, hash string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	h, err := g.expandTree(hash)
	if err != nil {
		return "", wrap("expand tree", hash, err)
	}
	return h.String(), nil
}

func (g *Git) CreateCommit(_ context.Context, nc NewCommit) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	tree, err := g.expandTree(nc.Tree)
	if err != nil {
		return "", wrap("create commit", "tree "+nc.Tree, err)
	}

	parents := make([]plumbing.Hash, 0, len(nc.Parents))
	for _, p := range nc.Parents {
		h, err := g.resolveCommit(p)
		if err != nil {
			return "", wrap("create commit", "parent "+p, err)
		}
		parents = append(parents, h)
	}

	commit := &object.Commit{
		TreeHash:     tree,
		ParentHashes: parents,
		Author:       object.Signature{Name: nc.Author.Name, Email: nc.Author.Email, When: nc.Author.When},
		Committer:    object.Signature{Name: nc.Committer.Name, Email: nc.Committer.Email, When: nc.Committer.When},
		Message:      nc.Message,
	}

	obj := g.repo.Storer.NewEncodedObject()
	if err := commit.Encode(obj); err != nil {
		return "", wrap("create commit", "", fmt.Errorf("failed to encode commit: %w", err))
	}
	hash, err := g.repo.Storer.SetEncodedObject(obj)
	if err != nil {
		return "", wrap("create commit", "", fmt.Errorf("failed to store commit: %w", err))
	}
	return hash.String(), nil
}

func (g *Git) ResolveRef(_ context.Context, ref string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	_, err := g.resolveCommit(ref)
	return err == nil
}

func (g *Git) CountCommits(ctx context.Context, r Range) (int, error) {
	hashes, err := g.RevList(ctx, r)
	if err != nil {
		return 0, err
	}
	return len(hashes), nil
}

func (g *Git) RevList(ctx context.Context, r Range) ([]string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	head, err := g.repo.Head()
	if err != nil {
		return nil, wrap("list commits", r.String(), fmt.Errorf("failed to get HEAD: %w", err))
	}
	headCommit, err := g.repo.CommitObject(head.Hash())
	if err != nil {
		return nil, wrap("list commits", r.String(), err)
	}

	excluded := make(map[plumbing.Hash]bool)
	if !r.Root {
		base, err := g.resolveCommit(r.Base)
		if err != nil {
			return nil, wrap("list commits", r.String(), err)
		}
		iter, err := g.repo.Log(&git.LogOptions{From: base})
		if err != nil {
			return nil, wrap("list commits", r.String(), err)
		}
		err = iter.ForEach(func(c *object.Commit) error {
			excluded[c.Hash] = true
			return ctx.Err()
		})
		iter.Close()
		if err != nil {
			return nil, wrap("list commits", r.String(), err)
		}
	}

	if excluded[headCommit.Hash] {
		return nil, nil
	}

	// Depth-first postorder, first parent first: every commit is emitted
	// after all of its in-range parents.
	type frame struct {
		commit *object.Commit
		next   int
	}
	visited := map[plumbing.Hash]bool{headCommit.Hash: true}
	stack := []frame{{commit: headCommit}}
	var order []string

	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, wrap("list commits", r.String(), err)
		}
		top := &stack[len(stack)-1]
		if top.next < len(top.commit.ParentHashes) {
			p := top.commit.ParentHashes[top.next]
			top.next++
			if excluded[p] || visited[p] {
				continue
			}
			visited[p] = true
			pc, err := g.repo.CommitObject(p)
			if err != nil {
				return nil, wrap("list commits", p.String(), err)
			}
			stack = append(stack, frame{commit: pc})
			continue
		}
		order = append(order, top.commit.Hash.String())
		stack = stack[:len(stack)-1]
	}

	return order, nil
}

func (g *Git) GetCurrentBranch(_ context.Context) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	name, err := g.currentBranch()
	if err != nil {
		return "", wrap("get current branch", "", err)
	}
	return name.Short(), nil
}

func (g *Git) UpdateCurrentBranch(ctx context.Context, hash string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	h, err := g.resolveCommit(hash)
	if err != nil {
		return wrap("update branch", hash, err)
	}

	if g.workdir == "" {
		name, err := g.currentBranch()
		if err != nil {
			return wrap("update branch", hash, err)
		}
		if err := g.repo.Storer.SetReference(plumbing.NewHashReference(name, h)); err != nil {
			return wrap("update branch", name.Short(), err)
		}
		return nil
	}

	// go-git's hard reset deletes untracked directories, so use the git CLI.
	cmd := exec.CommandContext(ctx, "git", "reset", "--hard", h.String()) //nolint:gosec // h is a resolved plumbing.Hash
	cmd.Dir = g.workdir
	if output, err := cmd.CombinedOutput(); err != nil {
		return wrap("update branch", h.String(), fmt.Errorf("reset failed: %s: %w", strings.TrimSpace(string(output)), err))
	}
	return nil
}

func (g *Git) currentBranch() (plumbing.ReferenceName, error) {
	ref, err := g.repo.Reference(plumbing.HEAD, false)
	if err != nil {
		return "", fmt.Errorf("failed to read HEAD: %w", err)
	}
	if ref.Type() != plumbing.SymbolicReference || !ref.Target().IsBranch() {
		return "", errDetached
	}
	return ref.Target(), nil
}

func (g *Git) commitObject(ref string) (*object.Commit, error) {
	h, err := g.resolveCommit(ref)
	if err != nil {
		return nil, err
	}
	c, err := g.repo.CommitObject(h)
	if err != nil {
		return nil, fmt.Errorf("failed to read commit: %w", err)
	}
	return c, nil
}

// resolveCommit accepts full or abbreviated hashes and any revision go-git
// understands (branch names, HEAD~1, ...).
func (g *Git) resolveCommit(ref string) (plumbing.Hash, error) {
	if ref == "" {
		return plumbing.ZeroHash, errors.New("empty revision")
	}
	if plumbing.IsHash(ref) {
		h := plumbing.NewHash(ref)
		if _, err := g.repo.CommitObject(h); err != nil {
			return plumbing.ZeroHash, fmt.Errorf("failed to read commit: %w", err)
		}
		return h, nil
	}
	h, err := g.repo.ResolveRevision(plumbing.Revision(ref))
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("failed to resolve revision: %w", err)
	}
	return *h, nil
}

func (g *Git) expandTree(hash string) (plumbing.Hash, error) {
	if plumbing.IsHash(hash) {
		h := plumbing.NewHash(hash)
		if _, err := g.repo.TreeObject(h); err != nil {
			return plumbing.ZeroHash, fmt.Errorf("failed to read tree: %w", err)
		}
		return h, nil
	}

	iter, err := g.repo.Storer.IterEncodedObjects(plumbing.TreeObject)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("failed to list trees: %w", err)
	}
	defer iter.Close()

	var matches []plumbing.Hash
	for {
		obj, err := iter.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return plumbing.ZeroHash, fmt.Errorf("failed to list trees: %w", err)
		}
		if strings.HasPrefix(obj.Hash().String(), hash) {
			matches = append(matches, obj.Hash())
		}
	}
	switch len(matches) {
	case 0:
		return plumbing.ZeroHash, plumbing.ErrObjectNotFound
	case 1:
		return matches[0], nil
	default:
		return plumbing.ZeroHash, errAmbiguous
	}
}

// HasTrackedChanges reports whether tracked files differ from HEAD in the
// index or working tree. Untracked files survive a hard reset and are ignored.
func (g *Git) HasTrackedChanges(_ context.Context) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	w, err := g.repo.Worktree()
	if err != nil {
		return false, wrap("status", "", fmt.Errorf("failed to get worktree: %w", err))
	}
	status, err := w.Status()
	if err != nil {
		return false, wrap("status", "", fmt.Errorf("failed to get status: %w", err))
	}
	for _, fs := range status {
		if fs.Staging == git.Untracked && fs.Worktree == git.Untracked {
			continue
		}
		if fs.Staging != git.Unmodified || fs.Worktree != git.Unmodified {
			return true, nil
		}
	}
	return false, nil
}
