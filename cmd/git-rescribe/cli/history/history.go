// Package history turns an existing range of commits into the commit
// descriptors a user edits.
package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/szhu/git-rescribe/cmd/git-rescribe/cli/descriptor"
	"github.com/szhu/git-rescribe/cmd/git-rescribe/cli/logging"
	"github.com/szhu/git-rescribe/cmd/git-rescribe/cli/objectstore"
)

// ErrEmptyRange is returned when the requested range contains no commits.
var ErrEmptyRange = errors.New("no commits in range")

const defaultConcurrency = 8

// Reader is the part of the object store the extractor reads from.
type Reader interface {
	RevList(ctx context.Context, r objectstore.Range) ([]string, error)
	GetCommitInfo(ctx context.Context, hash string) (*objectstore.CommitInfo, error)
}

// Options tunes extraction.
type Options struct {
	// Concurrency bounds concurrent commit reads. Zero means the default.
	Concurrency int
}

// Extract returns one descriptor per commit in r, parents before children.
// Parents inside the range are expressed as previous or rewritten:<hash>;
// parents outside it are kept as bare hashes.
func Extract(ctx context.Context, store Reader, r objectstore.Range, opts Options) ([]descriptor.Commit, error) {
	ctx = logging.WithComponent(ctx, "history")
	defer logging.LogDuration(ctx, slog.LevelDebug, "history extracted", time.Now(), slog.String("range", r.String()))

	hashes, err := store.RevList(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", r, err)
	}
	if len(hashes) == 0 {
		return nil, fmt.Errorf("%w %s", ErrEmptyRange, r)
	}

	infos, err := fetchAll(ctx, store, hashes, opts.Concurrency)
	if err != nil {
		return nil, err
	}

	position := make(map[string]int, len(hashes))
	for i, h := range hashes {
		position[h] = i
	}

	commits := make([]descriptor.Commit, 0, len(infos))
	for i, info := range infos {
		parents := make([]descriptor.ParentRef, 0, len(info.Parents))
		for pos, p := range info.Parents {
			parents = append(parents, parentRef(i, pos, p, hashes, position))
		}
		commits = append(commits, descriptor.Commit{
			Author:    descriptor.NewSignature(info.AuthorName, info.AuthorEmail, info.AuthorDate),
			Committer: descriptor.NewSignature(info.CommitterName, info.CommitterEmail, info.CommitterDate),
			Content:   descriptor.Content{Strategy: descriptor.StrategyCommit, Hash: descriptor.ShortHash(info.Hash)},
			Message:   descriptor.TrimMessage(info.Message),
			Parents:   parents,
		})
	}

	logging.Info(ctx, "extracted history",
		slog.String("range", r.String()),
		slog.Int("commits", len(commits)),
	)
	return commits, nil
}

// parentRef expresses parent p of commit i symbolically. Only the first
// parent may refer to the previous entry.
func parentRef(i, pos int, p string, hashes []string, position map[string]int) descriptor.ParentRef {
	if pos == 0 && i > 0 && hashes[i-1] == p {
		return descriptor.Previous()
	}
	if idx, ok := position[p]; ok && idx < i {
		return descriptor.Rewritten(descriptor.ShortHash(p))
	}
	return descriptor.Existing(descriptor.ShortHash(p))
}

// fetchAll reads commit metadata concurrently, keeping the input order.
func fetchAll(ctx context.Context, store Reader, hashes []string, limit int) ([]*objectstore.CommitInfo, error) {
	if limit <= 0 {
		limit = defaultConcurrency
	}

	infos := make([]*objectstore.CommitInfo, len(hashes))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, h := range hashes {
		g.Go(func() error {
			info, err := store.GetCommitInfo(gctx, h)
			if err != nil {
				return fmt.Errorf("reading commit %s: %w", descriptor.ShortHash(h), err)
			}
			infos[i] = info
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err //nolint:wrapcheck // already wrapped per commit
	}
	return infos, nil
}
