package repo

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/odvcencio/it/pkg/errkind"
	"github.com/odvcencio/it/pkg/index"
	"github.com/odvcencio/it/pkg/object"
)

// CommitResult describes a newly created commit.
type CommitResult struct {
	Hash   object.Hash
	Tree   object.Hash
	Parent object.Hash // zero for the first commit on a branch
	Branch string
}

// Commit snapshots the index into a new commit on the current branch.
//
//  1. Read the index and build its tree
//  2. Take the current branch ref, if any, as the parent
//  3. Write the commit object
//  4. Move the branch ref (compare-and-swap against the parent)
//  5. Append the commit record to the branch log
//  6. Clear the index
func (r *Repo) Commit(message string) (*CommitResult, error) {
	if strings.TrimSpace(message) == "" {
		return nil, errkind.Errorf(errkind.Usage, "commit: empty commit message")
	}

	var res *CommitResult
	err := r.withLock("commit", func() error {
		cfg, err := r.ReadConfig()
		if err != nil {
			return fmt.Errorf("commit: %w", err)
		}
		entries, err := r.ReadIndex()
		if err != nil {
			return fmt.Errorf("commit: %w", err)
		}
		tree, err := r.BuildTree(entries)
		if err != nil {
			return fmt.Errorf("commit: %w", err)
		}

		branch, err := r.CurrentBranch()
		if err != nil {
			return fmt.Errorf("commit: %w", err)
		}
		ref := branchRef(branch)
		parent, _, err := r.readRef(ref)
		if err != nil {
			return fmt.Errorf("commit: %w", err)
		}

		now := time.Now()
		tz := cfg.timezone(now)
		h, err := r.Store.WriteCommit(&object.CommitObj{
			Tree:      tree,
			Parent:    parent,
			Author:    cfg.author(),
			Timestamp: now.Unix(),
			Timezone:  tz,
			Message:   message,
		})
		if err != nil {
			return fmt.Errorf("commit: write commit: %w", err)
		}

		// parent is ZeroHash when the ref is absent, which updateRef reads as
		// "must not exist yet".
		if err := r.updateRef(ref, h, &parent); err != nil {
			return fmt.Errorf("commit: %w", err)
		}
		if err := r.recordCommit(branch, h, parent, message, now, tz); err != nil {
			return fmt.Errorf("commit: %w", err)
		}
		if err := index.Write(r.indexPath(), nil); err != nil {
			return fmt.Errorf("commit: clear index: %w", err)
		}

		r.logger.Debug("commit created",
			zap.String("branch", branch),
			zap.Stringer("hash", h),
			zap.Stringer("tree", tree),
			zap.Stringer("parent", parent),
		)
		res = &CommitResult{Hash: h, Tree: tree, Parent: parent, Branch: branch}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// ReadCommit loads and decodes a commit object.
func (r *Repo) ReadCommit(h object.Hash) (*object.CommitObj, error) {
	c, err := r.Store.ReadCommit(h)
	if err != nil {
		return nil, fmt.Errorf("read commit %s: %w", h, err)
	}
	return c, nil
}
