// Package testutil provides shared test fixtures: in-memory repositories
// built directly from objects, and on-disk repositories driven through the
// worktree.
package testutil

import (
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/format/config"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/storage/memory"

	"github.com/szhu/git-rescribe/cmd/git-rescribe/cli/objectstore"
)

// DefaultBranch is the branch fixtures commit to.
const DefaultBranch = "master"

// Epoch is the timestamp of the first fixture commit; later commits are
// spaced one minute apart.
var Epoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

// MemRepo is an in-memory repository for building commit graphs by hand.
type MemRepo struct {
	t     *testing.T
	Repo  *git.Repository
	Store *objectstore.Git
	clock time.Time
}

// NewMemRepo creates an empty in-memory repository with HEAD on master.
func NewMemRepo(t *testing.T) *MemRepo {
	t.Helper()

	repo, err := git.Init(memory.NewStorage(), nil)
	if err != nil {
		t.Fatalf("failed to init in-memory repo: %v", err)
	}
	head := plumbing.NewSymbolicReference(plumbing.HEAD, plumbing.NewBranchReferenceName(DefaultBranch))
	if err := repo.Storer.SetReference(head); err != nil {
		t.Fatalf("failed to set HEAD: %v", err)
	}
	return &MemRepo{t: t, Repo: repo, Store: objectstore.New(repo, ""), clock: Epoch}
}

// Tree stores a flat tree with the given file contents and returns its hash.
func (m *MemRepo) Tree(files map[string]string) string {
	m.t.Helper()

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	tree := &object.Tree{}
	for _, name := range names {
		blob := m.Repo.Storer.NewEncodedObject()
		blob.SetType(plumbing.BlobObject)
		w, err := blob.Writer()
		if err != nil {
			m.t.Fatalf("failed to open blob writer: %v", err)
		}
		if _, err := w.Write([]byte(files[name])); err != nil {
			m.t.Fatalf("failed to write blob: %v", err)
		}
		if err := w.Close(); err != nil {
			m.t.Fatalf("failed to close blob writer: %v", err)
		}
		blobHash, err := m.Repo.Storer.SetEncodedObject(blob)
		if err != nil {
			m.t.Fatalf("failed to store blob: %v", err)
		}
		tree.Entries = append(tree.Entries, object.TreeEntry{Name: name, Mode: filemode.Regular, Hash: blobHash})
	}

	obj := m.Repo.Storer.NewEncodedObject()
	if err := tree.Encode(obj); err != nil {
		m.t.Fatalf("failed to encode tree: %v", err)
	}
	hash, err := m.Repo.Storer.SetEncodedObject(obj)
	if err != nil {
		m.t.Fatalf("failed to store tree: %v", err)
	}
	return hash.String()
}

// CommitSpec describes a fixture commit. Zero-valued signatures default to
// "Test User <test@example.com>" at the next tick of the fixture clock.
type CommitSpec struct {
	Tree      string
	Parents   []string
	Author    object.Signature
	Committer object.Signature
	Message   string
}

// Commit stores a commit with default signatures and returns its hash.
func (m *MemRepo) Commit(tree string, message string, parents ...string) string {
	m.t.Helper()
	return m.CommitWith(CommitSpec{Tree: tree, Parents: parents, Message: message})
}

// CommitWith stores a commit described by cs and returns its hash.
func (m *MemRepo) CommitWith(cs CommitSpec) string {
	m.t.Helper()

	when := m.clock
	m.clock = m.clock.Add(time.Minute)
	def := object.Signature{Name: "Test User", Email: "test@example.com", When: when}
	if cs.Author.Name == "" {
		cs.Author = def
	}
	if cs.Committer.Name == "" {
		cs.Committer = cs.Author
	}

	parents := make([]plumbing.Hash, 0, len(cs.Parents))
	for _, p := range cs.Parents {
		parents = append(parents, plumbing.NewHash(p))
	}
	commit := &object.Commit{
		TreeHash:     plumbing.NewHash(cs.Tree),
		ParentHashes: parents,
		Author:       cs.Author,
		Committer:    cs.Committer,
		Message:      cs.Message,
	}
	obj := m.Repo.Storer.NewEncodedObject()
	if err := commit.Encode(obj); err != nil {
		m.t.Fatalf("failed to encode commit: %v", err)
	}
	hash, err := m.Repo.Storer.SetEncodedObject(obj)
	if err != nil {
		m.t.Fatalf("failed to store commit: %v", err)
	}
	return hash.String()
}

// SetHead points the default branch at hash.
func (m *MemRepo) SetHead(hash string) {
	m.t.Helper()
	ref := plumbing.NewHashReference(plumbing.NewBranchReferenceName(DefaultBranch), plumbing.NewHash(hash))
	if err := m.Repo.Storer.SetReference(ref); err != nil {
		m.t.Fatalf("failed to set %s: %v", DefaultBranch, err)
	}
}

// Head returns the hash the default branch points at.
func (m *MemRepo) Head() string {
	m.t.Helper()
	ref, err := m.Repo.Reference(plumbing.NewBranchReferenceName(DefaultBranch), true)
	if err != nil {
		m.t.Fatalf("failed to read %s: %v", DefaultBranch, err)
	}
	return ref.Hash().String()
}

// ObjectCount returns how many commit objects the repository holds.
func (m *MemRepo) ObjectCount() int {
	m.t.Helper()
	iter, err := m.Repo.CommitObjects()
	if err != nil {
		m.t.Fatalf("failed to list commits: %v", err)
	}
	n := 0
	_ = iter.ForEach(func(*object.Commit) error { //nolint:errcheck // counting only
		n++
		return nil
	})
	return n
}

// Linear builds a chain of n commits on master, each adding a file, and
// returns their hashes oldest first.
func (m *MemRepo) Linear(n int) []string {
	m.t.Helper()
	hashes := make([]string, 0, n)
	files := map[string]string{}
	for i := range n {
		files[string(rune('a'+i))+".txt"] = string(rune('a' + i))
		var parents []string
		if i > 0 {
			parents = []string{hashes[i-1]}
		}
		hashes = append(hashes, m.Commit(m.Tree(files), "commit "+string(rune('A'+i))+"\n", parents...))
	}
	m.SetHead(hashes[n-1])
	return hashes
}

// InitRepo initializes an on-disk git repository in repoDir with test user config.
func InitRepo(t *testing.T, repoDir string) *git.Repository {
	t.Helper()

	repo, err := git.PlainInit(repoDir, false)
	if err != nil {
		t.Fatalf("failed to init git repo: %v", err)
	}

	cfg, err := repo.Config()
	if err != nil {
		t.Fatalf("failed to get repo config: %v", err)
	}
	cfg.User.Name = "Test User"
	cfg.User.Email = "test@example.com"
	if cfg.Raw == nil {
		cfg.Raw = config.New()
	}
	cfg.Raw.Section("commit").SetOption("gpgsign", "false")
	if err := repo.SetConfig(cfg); err != nil {
		t.Fatalf("failed to set repo config: %v", err)
	}
	return repo
}

// WriteFile creates a file with the given content in the repo directory.
func WriteFile(t *testing.T, repoDir, path, content string) {
	t.Helper()

	fullPath := filepath.Join(repoDir, path)
	//nolint:gosec // test code, permissions are intentionally standard
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		t.Fatalf("failed to create directory for %s: %v", path, err)
	}
	//nolint:gosec // test code, permissions are intentionally standard
	if err := os.WriteFile(fullPath, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write file %s: %v", path, err)
	}
}

// CommitFile writes a file, stages it and commits it through the worktree,
// returning the new commit hash.
func CommitFile(t *testing.T, repo *git.Repository, repoDir, path, content, message string, when time.Time) string {
	t.Helper()

	WriteFile(t, repoDir, path, content)
	worktree, err := repo.Worktree()
	if err != nil {
		t.Fatalf("failed to get worktree: %v", err)
	}
	if _, err := worktree.Add(path); err != nil {
		t.Fatalf("failed to add file %s: %v", path, err)
	}
	hash, err := worktree.Commit(message, &git.CommitOptions{
		Author: &object.Signature{Name: "Test User", Email: "test@example.com", When: when},
	})
	if err != nil {
		t.Fatalf("failed to commit: %v", err)
	}
	return hash.String()
}

// GetHeadHash returns the current HEAD commit hash of an on-disk repository.
func GetHeadHash(t *testing.T, repoDir string) string {
	t.Helper()

	repo, err := git.PlainOpen(repoDir)
	if err != nil {
		t.Fatalf("failed to open git repo: %v", err)
	}
	head, err := repo.Head()
	if err != nil {
		t.Fatalf("failed to get HEAD: %v", err)
	}
	return head.Hash().String()
}

// GitAvailable skips the test when the git binary is not installed.
func GitAvailable(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git binary not available")
	}
}
