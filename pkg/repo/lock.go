package repo

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/odvcencio/it/pkg/errkind"
)

const lockRetryDelay = 5 * time.Millisecond

func (r *Repo) lockPath() string {
	return filepath.Join(r.Dir, "lock")
}

// withLock runs fn while holding the exclusive repository lock. Index, ref,
// HEAD, and log mutations all happen inside it.
func (r *Repo) withLock(op string, fn func() error) (retErr error) {
	cfg, err := r.ReadConfig()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	timeout := time.Duration(cfg.Core.LockTimeout)

	lock := flock.New(r.lockPath())
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	locked, err := lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return errkind.WrapIO(fmt.Sprintf("%s: lock %s", op, r.lockPath()), err)
	}
	if !locked {
		return errkind.Errorf(errkind.IO, "%s: repository is locked by another process (waited %s for %s)", op, timeout, r.lockPath())
	}
	r.logger.Debug("lock acquired", zap.String("op", op))
	defer func() {
		retErr = multierr.Append(retErr, lock.Unlock())
		r.logger.Debug("lock released", zap.String("op", op))
	}()

	return fn()
}

// writeFileAtomic replaces path with data via a temp file in the same
// directory and a rename, so readers see either the old or the new content.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+"-tmp-*")
	if err != nil {
		return errkind.WrapIO("tmpfile", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errkind.WrapIO("write", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errkind.WrapIO("close", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return errkind.WrapIO("rename", err)
	}
	return nil
}
