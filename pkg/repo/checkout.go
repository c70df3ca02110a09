package repo

import (
	"fmt"
	"path"

	"go.uber.org/zap"
	"gopkg.in/src-d/go-billy.v4/util"

	"github.com/odvcencio/it/pkg/errkind"
	"github.com/odvcencio/it/pkg/object"
)

// SwitchResult describes the outcome of Switch.
type SwitchResult struct {
	Branch         string
	Commit         object.Hash
	AlreadyCurrent bool
	FilesWritten   int
}

// Switch makes name the current branch and restores its snapshot into the
// working directory.
//
// Switching to the current branch succeeds without touching anything.
// Otherwise every file in the branch's tree is written out, creating
// directories as needed and overwriting whatever is there. Files not in the
// tree are left alone, the index is not touched, and uncommitted changes to
// tracked files are lost. HEAD moves only after the tree has been written.
func (r *Repo) Switch(name string) (*SwitchResult, error) {
	if err := validateBranchName(name); err != nil {
		return nil, fmt.Errorf("switch: %w", err)
	}

	var res *SwitchResult
	err := r.withLock("switch", func() error {
		target, err := r.ResolveBranch(name)
		if err != nil {
			return fmt.Errorf("switch: %w", err)
		}
		current, err := r.CurrentBranch()
		if err != nil {
			return fmt.Errorf("switch: %w", err)
		}
		if current == name {
			res = &SwitchResult{Branch: name, Commit: target, AlreadyCurrent: true}
			return nil
		}

		body, err := r.Store.ReadObject(target)
		if err != nil {
			return fmt.Errorf("switch: read commit %s: %w", target, err)
		}
		tree, err := object.CommitTree(body)
		if err != nil {
			return fmt.Errorf("switch: commit %s: %w", target, err)
		}

		written, err := r.restoreTree(tree, "")
		if err != nil {
			return fmt.Errorf("switch: %w", err)
		}
		if err := r.writeHead(name); err != nil {
			return fmt.Errorf("switch: %w", err)
		}

		r.logger.Debug("switched branch",
			zap.String("from", current),
			zap.String("to", name),
			zap.Int("files_written", written),
		)
		res = &SwitchResult{Branch: name, Commit: target, FilesWritten: written}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// restoreTree writes the tree h into the worktree under dir and returns the
// number of files written.
func (r *Repo) restoreTree(h object.Hash, dir string) (int, error) {
	entries, err := r.Store.ReadTree(h)
	if err != nil {
		return 0, fmt.Errorf("read tree %s: %w", h, err)
	}

	written := 0
	for _, e := range entries {
		p := path.Join(dir, e.Name)
		if e.IsDir() {
			if err := r.Worktree.MkdirAll(p, 0o755); err != nil {
				return written, errkind.WrapIO(fmt.Sprintf("mkdir %q", p), err)
			}
			n, err := r.restoreTree(e.Hash, p)
			written += n
			if err != nil {
				return written, err
			}
			continue
		}

		data, err := r.Store.ReadBlob(e.Hash)
		if err != nil {
			return written, fmt.Errorf("read blob for %q: %w", p, err)
		}
		if err := util.WriteFile(r.Worktree, p, data, 0o644); err != nil {
			return written, errkind.WrapIO(fmt.Sprintf("write %q", p), err)
		}
		written++
	}
	return written, nil
}
