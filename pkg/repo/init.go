package repo

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/odvcencio/it/pkg/errkind"
	"github.com/odvcencio/it/pkg/object"
)

// ErrRefCASMismatch is returned when a ref changed between read and update.
var ErrRefCASMismatch = errors.New("ref compare-and-swap mismatch")

const (
	headsPrefix = "refs/heads/"
	symrefTag   = "ref: "

	refLockRetryDelay = 5 * time.Millisecond
	refLockWaitLimit  = 2 * time.Second
)

func joinMarker(root string) string {
	return filepath.Join(root, MarkerDir)
}

// Init creates a new repository at path. It creates the .it/ directory
// structure: HEAD, index, config.toml, objects/, refs/heads/ and
// logs/refs/heads/. Returns a Usage error if a .it/ directory already exists.
func Init(path string, opts ...Option) (*Repo, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, errkind.WrapIO("init: abs path", err)
	}
	r := newRepo(abs, opts)

	if _, err := os.Stat(r.Dir); err == nil {
		return nil, errkind.Errorf(errkind.Usage, "init: repository already exists at %s", r.Dir)
	}

	branch := r.initialBranch
	if branch == "" {
		branch = defaultBranch
	}
	if err := validateBranchName(branch); err != nil {
		return nil, fmt.Errorf("init: %w", err)
	}

	dirs := []string{
		filepath.Join(r.Dir, "objects"),
		filepath.Join(r.Dir, "refs", "heads"),
		filepath.Join(r.Dir, "logs", "refs", "heads"),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, errkind.WrapIO(fmt.Sprintf("init: mkdir %s", d), err)
		}
	}

	cfg := DefaultConfig()
	cfg.Core.DefaultBranch = branch
	if err := r.WriteConfig(cfg); err != nil {
		return nil, fmt.Errorf("init: %w", err)
	}
	if err := os.WriteFile(r.indexPath(), nil, 0o644); err != nil {
		return nil, errkind.WrapIO("init: write index", err)
	}
	if err := r.writeHead(branch); err != nil {
		return nil, fmt.Errorf("init: %w", err)
	}

	r.logger.Debug("repository initialized", zap.String("dir", r.Dir), zap.String("branch", branch))
	return r, nil
}

// Open searches upward from path for a .it/ directory and opens the
// repository. Returns a NotARepository error if none is found.
func Open(path string, opts ...Option) (*Repo, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, errkind.WrapIO("open: abs path", err)
	}

	cur := abs
	for {
		info, err := os.Stat(joinMarker(cur))
		if err == nil && info.IsDir() {
			return newRepo(cur, opts), nil
		}

		parent := filepath.Dir(cur)
		if parent == cur {
			return nil, errkind.Errorf(errkind.NotARepository, "not an it repository (or any parent up to /): %s", abs)
		}
		cur = parent
	}
}

// Head reads .it/HEAD and returns the ref it points at, e.g.
// "refs/heads/main". Detached HEADs are not supported: any other content is
// an InvalidRef error.
func (r *Repo) Head() (string, error) {
	data, err := os.ReadFile(filepath.Join(r.Dir, "HEAD"))
	if err != nil {
		return "", errkind.WrapIO("head", err)
	}
	content := strings.TrimSpace(string(data))

	ref, ok := strings.CutPrefix(content, symrefTag)
	if !ok || !strings.HasPrefix(ref, headsPrefix) || len(ref) == len(headsPrefix) {
		return "", errkind.Errorf(errkind.InvalidRef, "HEAD is not a branch ref: %q", content)
	}
	return ref, nil
}

// CurrentBranch returns the name of the branch HEAD points at.
func (r *Repo) CurrentBranch() (string, error) {
	head, err := r.Head()
	if err != nil {
		return "", err
	}
	return strings.TrimPrefix(head, headsPrefix), nil
}

// writeHead atomically points HEAD at the named branch.
func (r *Repo) writeHead(branch string) error {
	content := symrefTag + headsPrefix + branch + "\n"
	if err := writeFileAtomic(filepath.Join(r.Dir, "HEAD"), []byte(content)); err != nil {
		return fmt.Errorf("write HEAD: %w", err)
	}
	return nil
}

func branchRef(name string) string {
	return headsPrefix + name
}

func (r *Repo) refPath(ref string) string {
	return filepath.Join(r.Dir, filepath.FromSlash(ref))
}

// readRef reads the hash stored in a ref file. ok is false when the file does
// not exist; a file that does not hold a 40-hex digest is InvalidRef.
func (r *Repo) readRef(ref string) (h object.Hash, ok bool, err error) {
	data, err := os.ReadFile(r.refPath(ref))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return object.ZeroHash, false, nil
		}
		return object.ZeroHash, false, errkind.WrapIO(fmt.Sprintf("read ref %q", ref), err)
	}
	h, err = object.ParseHash(strings.TrimSpace(string(data)))
	if err != nil {
		return object.ZeroHash, false, fmt.Errorf("read ref %q: %w", ref, err)
	}
	return h, true, nil
}

// ResolveBranch returns the commit a branch points at. A missing branch is a
// BranchNotFound error.
func (r *Repo) ResolveBranch(name string) (object.Hash, error) {
	h, ok, err := r.readRef(branchRef(name))
	if err != nil {
		return object.ZeroHash, err
	}
	if !ok {
		return object.ZeroHash, errkind.Errorf(errkind.BranchNotFound, "branch %q does not exist", name)
	}
	return h, nil
}

// updateRef writes h to the ref using lockfile + rename. When expectOld is
// non-nil the update only succeeds if the ref currently holds that value; a
// pointer to ZeroHash means "must not exist yet".
func (r *Repo) updateRef(ref string, h object.Hash, expectOld *object.Hash) error {
	refPath := r.refPath(ref)
	if err := os.MkdirAll(filepath.Dir(refPath), 0o755); err != nil {
		return errkind.WrapIO(fmt.Sprintf("update ref %q: mkdir", ref), err)
	}

	lockPath := refPath + ".lock"
	lockFile, err := acquireRefLock(lockPath)
	if err != nil {
		return errkind.WrapIO(fmt.Sprintf("update ref %q: lock", ref), err)
	}
	cleanupLock := true
	defer func() {
		if lockFile != nil {
			_ = lockFile.Close()
		}
		if cleanupLock {
			_ = os.Remove(lockPath)
		}
	}()

	if expectOld != nil {
		old, _, err := r.readRef(ref)
		if err != nil {
			return fmt.Errorf("update ref %q: read old hash: %w", ref, err)
		}
		if old != *expectOld {
			return fmt.Errorf("update ref %q: %w (expected %s, found %s)", ref, ErrRefCASMismatch, *expectOld, old)
		}
	}

	if _, err := lockFile.WriteString(h.String() + "\n"); err != nil {
		return errkind.WrapIO(fmt.Sprintf("update ref %q: write", ref), err)
	}
	if err := lockFile.Sync(); err != nil {
		return errkind.WrapIO(fmt.Sprintf("update ref %q: sync", ref), err)
	}
	if err := lockFile.Close(); err != nil {
		lockFile = nil
		return errkind.WrapIO(fmt.Sprintf("update ref %q: close", ref), err)
	}
	lockFile = nil

	if err := os.Rename(lockPath, refPath); err != nil {
		return errkind.WrapIO(fmt.Sprintf("update ref %q: rename", ref), err)
	}
	cleanupLock = false

	r.logger.Debug("ref updated", zap.String("ref", ref), zap.Stringer("hash", h))
	return nil
}

func acquireRefLock(lockPath string) (*os.File, error) {
	deadline := time.Now().Add(refLockWaitLimit)
	for {
		f, err := os.OpenFile(lockPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			return f, nil
		}
		if os.IsExist(err) {
			if time.Now().After(deadline) {
				return nil, fmt.Errorf("timeout waiting for lock %q", lockPath)
			}
			time.Sleep(refLockRetryDelay)
			continue
		}
		return nil, err
	}
}
