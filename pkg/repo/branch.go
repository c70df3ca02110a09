package repo

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/odvcencio/it/pkg/errkind"
	"github.com/odvcencio/it/pkg/object"
)

// Branch describes one ref under refs/heads.
type Branch struct {
	Name    string
	Hash    object.Hash
	Current bool
}

// validateBranchName rejects names that cannot live as a single file under
// refs/heads or that would be ambiguous on the command line.
func validateBranchName(name string) error {
	switch {
	case name == "":
		return errkind.Errorf(errkind.Usage, "branch name is required")
	case strings.ContainsAny(name, "/\\:*?[~^ \t\n"):
		return errkind.Errorf(errkind.Usage, "invalid branch name %q", name)
	case strings.HasPrefix(name, "-"), strings.HasPrefix(name, "."):
		return errkind.Errorf(errkind.Usage, "invalid branch name %q", name)
	case strings.Contains(name, ".."), strings.HasSuffix(name, ".lock"):
		return errkind.Errorf(errkind.Usage, "invalid branch name %q", name)
	}
	return nil
}

// ListBranches returns every branch sorted by name, marking the one HEAD
// points at. A freshly initialized repository has no branches until its
// first commit.
func (r *Repo) ListBranches() ([]Branch, error) {
	current, err := r.CurrentBranch()
	if err != nil {
		return nil, fmt.Errorf("list branches: %w", err)
	}
	refs, err := r.ListRefs("heads")
	if err != nil {
		return nil, fmt.Errorf("list branches: %w", err)
	}

	branches := make([]Branch, 0, len(refs))
	for name, h := range refs {
		name = strings.TrimPrefix(name, "heads/")
		branches = append(branches, Branch{Name: name, Hash: h, Current: name == current})
	}
	sort.Slice(branches, func(i, j int) bool { return branches[i].Name < branches[j].Name })
	return branches, nil
}

// CreateBranch creates a branch at the commit the current branch points at
// and records the event in the new branch's history log.
//
// Fails with BranchExists if the name is taken, and with InvalidRef if the
// current branch has no commit yet.
func (r *Repo) CreateBranch(name string) (*Branch, error) {
	if err := validateBranchName(name); err != nil {
		return nil, fmt.Errorf("create branch: %w", err)
	}

	var created *Branch
	err := r.withLock("create branch", func() error {
		if _, ok, err := r.readRef(branchRef(name)); err != nil {
			return err
		} else if ok {
			return errkind.Errorf(errkind.BranchExists, "a branch named %q already exists", name)
		}

		head, err := r.Head()
		if err != nil {
			return err
		}
		source := strings.TrimPrefix(head, headsPrefix)
		h, ok, err := r.readRef(head)
		if err != nil {
			return err
		}
		if !ok {
			return errkind.Errorf(errkind.InvalidRef, "not a valid ref %q: branch %q has no commits yet", head, source)
		}

		absent := object.ZeroHash
		if err := r.updateRef(branchRef(name), h, &absent); err != nil {
			if errors.Is(err, ErrRefCASMismatch) {
				return errkind.Errorf(errkind.BranchExists, "a branch named %q already exists", name)
			}
			return err
		}
		if err := r.recordBranch(source, name, h); err != nil {
			return err
		}

		r.logger.Debug("branch created", zap.String("branch", name), zap.String("from", source), zap.Stringer("hash", h))
		created = &Branch{Name: name, Hash: h}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("create branch %q: %w", name, err)
	}
	return created, nil
}

// DeleteBranch removes a branch ref and its history log. The current branch
// cannot be deleted.
func (r *Repo) DeleteBranch(name string) error {
	if err := validateBranchName(name); err != nil {
		return fmt.Errorf("delete branch: %w", err)
	}
	err := r.withLock("delete branch", func() error {
		current, err := r.CurrentBranch()
		if err != nil {
			return err
		}
		if current == name {
			return errkind.Errorf(errkind.Usage, "cannot delete current branch %q", name)
		}

		if err := os.Remove(r.refPath(branchRef(name))); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return errkind.Errorf(errkind.BranchNotFound, "branch %q does not exist", name)
			}
			return errkind.WrapIO("remove ref", err)
		}
		if err := os.Remove(r.logPath(name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return errkind.WrapIO("remove log", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete branch %q: %w", name, err)
	}
	return nil
}
