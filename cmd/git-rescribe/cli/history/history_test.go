package history

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/szhu/git-rescribe/cmd/git-rescribe/cli/descriptor"
	"github.com/szhu/git-rescribe/cmd/git-rescribe/cli/objectstore"
	"github.com/szhu/git-rescribe/cmd/git-rescribe/cli/testutil"
)

func TestExtract_LinearRoot(t *testing.T) {
	t.Parallel()
	m := testutil.NewMemRepo(t)
	hashes := m.Linear(3)

	commits, err := Extract(context.Background(), m.Store, objectstore.Range{Root: true}, Options{})
	require.NoError(t, err)
	require.Len(t, commits, 3)

	assert.Empty(t, commits[0].Parents, "root commit has no parents")
	assert.Equal(t, []descriptor.ParentRef{descriptor.Previous()}, commits[1].Parents)
	assert.Equal(t, []descriptor.ParentRef{descriptor.Previous()}, commits[2].Parents)

	for i, c := range commits {
		assert.Equal(t, descriptor.Content{Strategy: descriptor.StrategyCommit, Hash: hashes[i][:7]}, c.Content)
		assert.Equal(t, "Test User <test@example.com>", c.Author.Identity)
	}
	assert.Equal(t, "commit A", commits[0].Message, "trailing newline is trimmed")
	assert.True(t, commits[0].Author.Date.Equal(testutil.Epoch))
}

func TestExtract_RangeKeepsOutsideParentAsHash(t *testing.T) {
	t.Parallel()
	m := testutil.NewMemRepo(t)
	hashes := m.Linear(4)

	commits, err := Extract(context.Background(), m.Store, objectstore.Range{Base: hashes[1]}, Options{})
	require.NoError(t, err)
	require.Len(t, commits, 2)
	assert.Equal(t, []descriptor.ParentRef{descriptor.Existing(hashes[1][:7])}, commits[0].Parents)
	assert.Equal(t, []descriptor.ParentRef{descriptor.Previous()}, commits[1].Parents)
}

func TestExtract_MergeParents(t *testing.T) {
	t.Parallel()
	m := testutil.NewMemRepo(t)
	tree := m.Tree(map[string]string{"a.txt": "a"})
	a := m.Commit(tree, "A\n")
	b := m.Commit(tree, "B\n", a)
	c := m.Commit(tree, "C\n", a)
	merge := m.Commit(tree, "M\n", b, c)
	m.SetHead(merge)

	commits, err := Extract(context.Background(), m.Store, objectstore.Range{Root: true}, Options{Concurrency: 2})
	require.NoError(t, err)
	require.Len(t, commits, 4)

	assert.Equal(t, []descriptor.ParentRef{descriptor.Previous()}, commits[1].Parents)
	assert.Equal(t, []descriptor.ParentRef{descriptor.Rewritten(a[:7])}, commits[2].Parents,
		"a non-sequential in-range parent is a rewritten reference")
	assert.Equal(t, []descriptor.ParentRef{descriptor.Rewritten(b[:7]), descriptor.Rewritten(c[:7])}, commits[3].Parents,
		"only the first parent may be previous")
}

func TestExtract_EmptyRange(t *testing.T) {
	t.Parallel()
	m := testutil.NewMemRepo(t)
	hashes := m.Linear(2)

	_, err := Extract(context.Background(), m.Store, objectstore.Range{Base: hashes[1]}, Options{})
	require.ErrorIs(t, err, ErrEmptyRange)
}

// slowReader returns commits out of order to exercise order preservation.
type slowReader struct {
	hashes   []string
	inFlight atomic.Int32
	peak     atomic.Int32
	failOn   string
}

func (s *slowReader) RevList(context.Context, objectstore.Range) ([]string, error) {
	return s.hashes, nil
}

func (s *slowReader) GetCommitInfo(_ context.Context, hash string) (*objectstore.CommitInfo, error) {
	n := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		p := s.peak.Load()
		if n <= p || s.peak.CompareAndSwap(p, n) {
			break
		}
	}
	if hash == s.failOn {
		return nil, errors.New("boom")
	}
	// Earlier hashes sleep longer so completion order is reversed.
	delay := time.Duration(len(s.hashes)) * time.Millisecond
	for i, h := range s.hashes {
		if h == hash {
			delay = time.Duration(len(s.hashes)-i) * time.Millisecond
		}
	}
	time.Sleep(delay)
	return &objectstore.CommitInfo{
		Hash:           hash,
		AuthorName:     "A",
		AuthorEmail:    "a@x",
		CommitterName:  "A",
		CommitterEmail: "a@x",
		Message:        hash,
	}, nil
}

func TestExtract_ConcurrentFetchPreservesOrder(t *testing.T) {
	t.Parallel()
	hashes := []string{
		"1111111111111111111111111111111111111111",
		"2222222222222222222222222222222222222222",
		"3333333333333333333333333333333333333333",
		"4444444444444444444444444444444444444444",
		"5555555555555555555555555555555555555555",
	}
	r := &slowReader{hashes: hashes}

	commits, err := Extract(context.Background(), r, objectstore.Range{Root: true}, Options{Concurrency: 3})
	require.NoError(t, err)
	require.Len(t, commits, len(hashes))
	for i, c := range commits {
		assert.Equal(t, hashes[i], c.Message)
	}
	assert.LessOrEqual(t, r.peak.Load(), int32(3))
}

func TestExtract_FetchErrorAborts(t *testing.T) {
	t.Parallel()
	r := &slowReader{
		hashes: []string{"1111111111111111111111111111111111111111", "2222222222222222222222222222222222222222"},
		failOn: "2222222222222222222222222222222222222222",
	}

	_, err := Extract(context.Background(), r, objectstore.Range{Root: true}, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2222222")
}
