package objectstore_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/szhu/git-rescribe/cmd/git-rescribe/cli/objectstore"
	"github.com/szhu/git-rescribe/cmd/git-rescribe/cli/testutil"
)

func TestGit_GetCommitInfo(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := testutil.NewMemRepo(t)

	tz := time.FixedZone("", -5*60*60)
	author := object.Signature{Name: "Ada", Email: "ada@example.com", When: time.Date(2024, 6, 1, 9, 0, 0, 0, tz)}
	committer := object.Signature{Name: "Bob", Email: "bob@example.com", When: time.Date(2024, 6, 2, 9, 0, 0, 0, time.UTC)}
	tree := m.Tree(map[string]string{"a.txt": "a"})
	root := m.Commit(tree, "root\n")
	hash := m.CommitWith(testutil.CommitSpec{Tree: tree, Parents: []string{root}, Author: author, Committer: committer, Message: "second\n"})

	info, err := m.Store.GetCommitInfo(ctx, hash[:7])
	require.NoError(t, err)
	assert.Equal(t, hash, info.Hash)
	assert.Equal(t, "Ada", info.AuthorName)
	assert.Equal(t, "ada@example.com", info.AuthorEmail)
	assert.Equal(t, "Bob", info.CommitterName)
	assert.Equal(t, tree, info.Tree)
	assert.Equal(t, []string{root}, info.Parents)
	assert.Equal(t, "second\n", info.Message)
	assert.True(t, info.AuthorDate.Equal(author.When))
	_, offset := info.AuthorDate.Zone()
	assert.Equal(t, -5*60*60, offset)

	treeHash, err := m.Store.GetTreeHash(ctx, hash)
	require.NoError(t, err)
	assert.Equal(t, tree, treeHash)
}

func TestGit_MissingObjectsReturnStoreError(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := testutil.NewMemRepo(t)
	m.Linear(1)

	_, err := m.Store.GetCommitInfo(ctx, "0000000000000000000000000000000000000001")
	var storeErr *objectstore.Error
	require.True(t, errors.As(err, &storeErr))
	assert.Equal(t, "get commit", storeErr.Op)

	_, err = m.Store.ExpandTree(ctx, "fffffff")
	require.True(t, errors.As(err, &storeErr))
	assert.True(t, errors.Is(err, plumbing.ErrObjectNotFound))

	assert.False(t, m.Store.ResolveRef(ctx, "does-not-exist"))
	assert.True(t, m.Store.ResolveRef(ctx, "HEAD"))
	assert.True(t, m.Store.ResolveRef(ctx, testutil.DefaultBranch))
}

func TestGit_CreateCommitExpandsAbbreviations(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := testutil.NewMemRepo(t)
	hashes := m.Linear(2)
	tree := m.Tree(map[string]string{"new.txt": "new"})

	when := time.Date(2025, 3, 4, 5, 6, 7, 0, time.FixedZone("", 3600))
	nc := objectstore.NewCommit{
		Tree:      tree[:7],
		Parents:   []string{hashes[1][:7], hashes[0]},
		Author:    objectstore.Signature{Name: "A", Email: "a@x", When: when},
		Committer: objectstore.Signature{Name: "C", Email: "c@x", When: when.Add(time.Hour)},
		Message:   "merge\n",
	}

	hash, err := m.Store.CreateCommit(ctx, nc)
	require.NoError(t, err)

	info, err := m.Store.GetCommitInfo(ctx, hash)
	require.NoError(t, err)
	assert.Equal(t, tree, info.Tree)
	assert.Equal(t, []string{hashes[1], hashes[0]}, info.Parents)
	assert.Equal(t, "merge\n", info.Message)
	assert.True(t, info.CommitterDate.Equal(when.Add(time.Hour)))

	again, err := m.Store.CreateCommit(ctx, nc)
	require.NoError(t, err)
	assert.Equal(t, hash, again, "identical input produces the identical object")
}

func TestGit_CreateCommitWithUnknownParent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := testutil.NewMemRepo(t)
	m.Linear(1)
	tree := m.Tree(map[string]string{"a.txt": "a"})

	_, err := m.Store.CreateCommit(ctx, objectstore.NewCommit{Tree: tree, Parents: []string{"abcdef0"}})
	var storeErr *objectstore.Error
	require.True(t, errors.As(err, &storeErr))
	assert.Contains(t, storeErr.Ref, "abcdef0")
}

func TestGit_RevListMergeTopology(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := testutil.NewMemRepo(t)

	tree := m.Tree(map[string]string{"a.txt": "a"})
	a := m.Commit(tree, "A\n")
	b := m.Commit(tree, "B\n", a)
	c := m.Commit(tree, "C\n", a)
	merge := m.Commit(tree, "M\n", b, c)
	m.SetHead(merge)

	all, err := m.Store.RevList(ctx, objectstore.Range{Root: true})
	require.NoError(t, err)
	assert.Equal(t, []string{a, b, c, merge}, all)

	ranged, err := m.Store.RevList(ctx, objectstore.Range{Base: a[:7]})
	require.NoError(t, err)
	assert.Equal(t, []string{b, c, merge}, ranged)

	n, err := m.Store.CountCommits(ctx, objectstore.Range{Base: b})
	require.NoError(t, err)
	assert.Equal(t, 2, n, "c and the merge are not reachable from b")

	empty, err := m.Store.RevList(ctx, objectstore.Range{Base: merge})
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestGit_CurrentBranch(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := testutil.NewMemRepo(t)
	hashes := m.Linear(3)

	branch, err := m.Store.GetCurrentBranch(ctx)
	require.NoError(t, err)
	assert.Equal(t, testutil.DefaultBranch, branch)

	require.NoError(t, m.Store.UpdateCurrentBranch(ctx, hashes[0][:7]))
	assert.Equal(t, hashes[0], m.Head())

	detached := plumbing.NewHashReference(plumbing.HEAD, plumbing.NewHash(hashes[1]))
	require.NoError(t, m.Repo.Storer.SetReference(detached))
	_, err = m.Store.GetCurrentBranch(ctx)
	require.Error(t, err)
	require.Error(t, m.Store.UpdateCurrentBranch(ctx, hashes[2]))
}

func TestGit_HasTrackedChanges(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir := t.TempDir()
	repo := testutil.InitRepo(t, dir)
	testutil.CommitFile(t, repo, dir, "a.txt", "a", "add a", testutil.Epoch)
	store := objectstore.New(repo, dir)

	dirty, err := store.HasTrackedChanges(ctx)
	require.NoError(t, err)
	assert.False(t, dirty)

	testutil.WriteFile(t, dir, "untracked.txt", "x")
	dirty, err = store.HasTrackedChanges(ctx)
	require.NoError(t, err)
	assert.False(t, dirty, "untracked files survive a hard reset")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("changed"), 0o600))
	dirty, err = store.HasTrackedChanges(ctx)
	require.NoError(t, err)
	assert.True(t, dirty)
}

func TestGit_UpdateCurrentBranchResetsWorktree(t *testing.T) {
	testutil.GitAvailable(t)
	t.Parallel()
	ctx := context.Background()
	dir := t.TempDir()
	repo := testutil.InitRepo(t, dir)
	first := testutil.CommitFile(t, repo, dir, "a.txt", "one", "one", testutil.Epoch)
	testutil.CommitFile(t, repo, dir, "a.txt", "two", "two", testutil.Epoch.Add(time.Minute))
	store := objectstore.New(repo, dir)

	require.NoError(t, store.UpdateCurrentBranch(ctx, first[:7]))

	assert.Equal(t, first, testutil.GetHeadHash(t, dir))
	data, err := os.ReadFile(filepath.Join(dir, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "one", string(data))
}
