package repo

import (
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/odvcencio/it/pkg/errkind"
	"github.com/odvcencio/it/pkg/index"
	"github.com/odvcencio/it/pkg/object"
)

// indexPath returns the filesystem path to the staging index file.
func (r *Repo) indexPath() string {
	return filepath.Join(r.Dir, "index")
}

// ReadIndex loads the staged entries in file order. A missing or empty index
// yields no entries.
func (r *Repo) ReadIndex() ([]index.Entry, error) {
	entries, err := index.Read(r.indexPath())
	if err != nil {
		return nil, fmt.Errorf("read index: %w", err)
	}
	return entries, nil
}

// WriteIndex replaces the index under the repository lock.
func (r *Repo) WriteIndex(entries []index.Entry) error {
	return r.withLock("write index", func() error {
		return index.Write(r.indexPath(), entries)
	})
}

// Add stages the given paths. Files are written to the object store as blobs
// and their entries inserted into the index; an already-staged path keeps its
// position and takes the new digest, new paths are appended. Directories are
// walked recursively, skipping the marker directory and anything matched by
// the ignore file. It returns the entries that were staged by this call.
func (r *Repo) Add(paths []string) ([]index.Entry, error) {
	if len(paths) == 0 {
		return nil, errkind.Errorf(errkind.Usage, "add: no paths given")
	}

	var staged []index.Entry
	err := r.withLock("add", func() error {
		entries, err := r.ReadIndex()
		if err != nil {
			return fmt.Errorf("add: %w", err)
		}

		ig := loadIgnorer(r.Worktree)
		var files []string
		for _, p := range paths {
			rel, err := r.repoRelPath(p)
			if err != nil {
				return fmt.Errorf("add: %w", err)
			}
			found, err := r.collectFiles(rel, ig)
			if err != nil {
				return fmt.Errorf("add: %w", err)
			}
			files = append(files, found...)
		}

		pos := make(map[string]int, len(entries))
		for i, e := range entries {
			pos[e.Path] = i
		}
		for _, rel := range files {
			h, err := r.stageFile(rel)
			if err != nil {
				return fmt.Errorf("add: %w", err)
			}
			e := index.Entry{Path: rel, Hash: h, Flags: index.FlagsForPath(rel)}
			if i, ok := pos[rel]; ok {
				entries[i] = e
			} else {
				pos[rel] = len(entries)
				entries = append(entries, e)
			}
			staged = append(staged, e)
		}

		if err := index.Write(r.indexPath(), entries); err != nil {
			return fmt.Errorf("add: %w", err)
		}
		r.logger.Debug("paths staged", zap.Int("count", len(staged)), zap.Int("index_size", len(entries)))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return staged, nil
}

// stageFile stores the content of a worktree file as a blob.
func (r *Repo) stageFile(rel string) (object.Hash, error) {
	f, err := r.Worktree.Open(rel)
	if err != nil {
		return object.ZeroHash, errkind.WrapIO(fmt.Sprintf("open %q", rel), err)
	}
	data, err := io.ReadAll(f)
	closeErr := f.Close()
	if err != nil {
		return object.ZeroHash, errkind.WrapIO(fmt.Sprintf("read %q", rel), err)
	}
	if closeErr != nil {
		return object.ZeroHash, errkind.WrapIO(fmt.Sprintf("close %q", rel), closeErr)
	}

	h, err := r.Store.WriteBlob(data)
	if err != nil {
		return object.ZeroHash, fmt.Errorf("write blob %q: %w", rel, err)
	}
	r.logger.Debug("blob written", zap.String("path", rel), zap.Stringer("hash", h))
	return h, nil
}

// collectFiles expands rel into the regular files it names. A file named
// explicitly is staged even if an ignore pattern matches it; files found by
// walking a directory are filtered.
func (r *Repo) collectFiles(rel string, ig *Ignorer) ([]string, error) {
	if rel == MarkerDir || strings.HasPrefix(rel, MarkerDir+"/") {
		return nil, errkind.Errorf(errkind.Usage, "%q is inside the repository directory", rel)
	}

	fsPath := rel
	if fsPath == "" {
		fsPath = "."
	}
	info, err := r.Worktree.Stat(fsPath)
	if err != nil {
		return nil, errkind.WrapIO(fmt.Sprintf("stat %q", fsPath), err)
	}
	if !info.IsDir() {
		if !info.Mode().IsRegular() {
			return nil, errkind.Errorf(errkind.Usage, "%q is not a regular file", rel)
		}
		return []string{rel}, nil
	}

	var files []string
	var walk func(dir string) error
	walk = func(dir string) error {
		fsDir := dir
		if fsDir == "" {
			fsDir = "."
		}
		children, err := r.Worktree.ReadDir(fsDir)
		if err != nil {
			return errkind.WrapIO(fmt.Sprintf("read dir %q", fsDir), err)
		}
		sort.Slice(children, func(i, j int) bool { return children[i].Name() < children[j].Name() })
		for _, child := range children {
			p := path.Join(dir, child.Name())
			if ig.Ignored(p, child.IsDir()) {
				continue
			}
			switch {
			case child.IsDir():
				if err := walk(p); err != nil {
					return err
				}
			case child.Mode().IsRegular():
				files = append(files, p)
			}
		}
		return nil
	}
	if err := walk(rel); err != nil {
		return nil, err
	}
	return files, nil
}

// Unstage removes paths from the index. A directory path removes every entry
// below it. It returns the entries removed; naming a path that is not staged
// is a Usage error.
func (r *Repo) Unstage(paths []string) ([]index.Entry, error) {
	if len(paths) == 0 {
		return nil, errkind.Errorf(errkind.Usage, "unstage: no paths given")
	}

	var removed []index.Entry
	err := r.withLock("unstage", func() error {
		entries, err := r.ReadIndex()
		if err != nil {
			return fmt.Errorf("unstage: %w", err)
		}

		drop := make(map[int]bool)
		for _, p := range paths {
			rel, err := r.repoRelPath(p)
			if err != nil {
				return fmt.Errorf("unstage: %w", err)
			}
			matched := false
			for i, e := range entries {
				if rel == "" || e.Path == rel || strings.HasPrefix(e.Path, rel+"/") {
					drop[i] = true
					matched = true
				}
			}
			if !matched {
				return errkind.Errorf(errkind.Usage, "unstage: %q is not staged", p)
			}
		}

		kept := entries[:0:0]
		for i, e := range entries {
			if drop[i] {
				removed = append(removed, e)
				continue
			}
			kept = append(kept, e)
		}
		return index.Write(r.indexPath(), kept)
	})
	if err != nil {
		return nil, err
	}
	return removed, nil
}

// repoRelPath converts a path (absolute, or relative to the process working
// directory when that lies inside the repository, otherwise relative to the
// repository root) into a slash-separated repo-relative path. The root itself
// maps to "". Paths that leave the repository are Usage errors.
func (r *Repo) repoRelPath(p string) (string, error) {
	if strings.TrimSpace(p) == "" {
		return "", errkind.Errorf(errkind.Usage, "empty path")
	}

	var rel string
	if filepath.IsAbs(p) {
		var err error
		rel, err = filepath.Rel(r.RootDir, filepath.Clean(p))
		if err != nil {
			return "", errkind.Errorf(errkind.Usage, "cannot make %q relative to %q: %v", p, r.RootDir, err)
		}
	} else {
		rel = filepath.Clean(p)
		if cwd, err := os.Getwd(); err == nil {
			if fromCwd, err := filepath.Rel(r.RootDir, filepath.Join(cwd, p)); err == nil && !escapes(fromCwd) {
				rel = fromCwd
			}
		}
	}

	if escapes(rel) {
		return "", errkind.Errorf(errkind.Usage, "path %q is outside repository %s", p, r.RootDir)
	}
	rel = filepath.ToSlash(rel)
	if rel == "." {
		return "", nil
	}
	return rel, nil
}

func escapes(rel string) bool {
	return rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
