package repo

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/odvcencio/it/pkg/errkind"
	"github.com/odvcencio/it/pkg/index"
	"github.com/odvcencio/it/pkg/object"
)

// TreeFileEntry is a single file in a flattened tree.
type TreeFileEntry struct {
	Path string
	Hash object.Hash
}

// BuildTree converts flat staged entries into a hierarchy of tree objects,
// writing each to the store, and returns the root tree hash.
//
// Entries are grouped by their first path component; groups are emitted in
// ascending name order, so the result depends only on the set of
// (path, hash) pairs and not on the order of entries. A group is a file
// entry when it holds exactly one entry with no further "/"; anything else
// becomes a subtree. An empty input is NothingToCommit and writes nothing.
func (r *Repo) BuildTree(entries []index.Entry) (object.Hash, error) {
	if len(entries) == 0 {
		return object.ZeroHash, errkind.Errorf(errkind.NothingToCommit, "nothing to commit: index is empty")
	}

	// Indices into entries and each entry's path below the current prefix.
	idx := make([]int, len(entries))
	rest := make([]string, len(entries))
	for i, e := range entries {
		idx[i] = i
		rest[i] = e.Path
	}
	return r.buildTreeDir(entries, idx, rest, "")
}

// buildTreeDir builds the tree for one directory. idx selects the entries
// under prefix and rest holds their remaining paths, in parallel.
func (r *Repo) buildTreeDir(entries []index.Entry, idx []int, rest []string, prefix string) (object.Hash, error) {
	groups := make(map[string][]int) // component -> positions in idx
	for pos, remaining := range rest {
		name, _, _ := strings.Cut(remaining, "/")
		groups[name] = append(groups[name], pos)
	}
	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)

	treeEntries := make([]object.TreeEntry, len(names))
	var g errgroup.Group
	for i, name := range names {
		members := groups[name]
		if len(members) == 1 && !strings.Contains(rest[members[0]], "/") {
			treeEntries[i] = object.TreeEntry{
				Mode: object.ModeFile,
				Name: name,
				Hash: entries[idx[members[0]]].Hash,
			}
			continue
		}

		// Entries that stop at this component cannot be placed inside the
		// subtree; only those with a remaining path below it are kept.
		childIdx := make([]int, 0, len(members))
		childRest := make([]string, 0, len(members))
		for _, pos := range members {
			if _, below, ok := strings.Cut(rest[pos], "/"); ok && below != "" {
				childIdx = append(childIdx, idx[pos])
				childRest = append(childRest, below)
			}
		}
		childPrefix := path.Join(prefix, name)

		g.Go(func() error {
			if len(childIdx) == 0 {
				return errkind.Errorf(errkind.StorageCorruption, "build tree %q: index holds duplicate paths", childPrefix)
			}
			h, err := r.buildTreeDir(entries, childIdx, childRest, childPrefix)
			if err != nil {
				return err
			}
			treeEntries[i] = object.TreeEntry{Mode: object.ModeDir, Name: name, Hash: h}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return object.ZeroHash, err
	}

	h, err := r.Store.WriteTree(treeEntries)
	if err != nil {
		return object.ZeroHash, fmt.Errorf("write tree (prefix=%q): %w", prefix, err)
	}
	r.logger.Debug("tree written", zap.String("prefix", prefix), zap.Int("entries", len(treeEntries)), zap.Stringer("hash", h))
	return h, nil
}

// WriteTree builds a tree from the current index without committing.
func (r *Repo) WriteTree() (object.Hash, error) {
	entries, err := r.ReadIndex()
	if err != nil {
		return object.ZeroHash, fmt.Errorf("write tree: %w", err)
	}
	h, err := r.BuildTree(entries)
	if err != nil {
		return object.ZeroHash, fmt.Errorf("write tree: %w", err)
	}
	return h, nil
}

// ReadTree returns the entries of a single tree object.
func (r *Repo) ReadTree(h object.Hash) ([]object.TreeEntry, error) {
	entries, err := r.Store.ReadTree(h)
	if err != nil {
		return nil, fmt.Errorf("read tree %s: %w", h, err)
	}
	return entries, nil
}

// FlattenTree walks a tree object recursively, returning all file entries
// with their full slash-separated paths in tree order.
func (r *Repo) FlattenTree(h object.Hash) ([]TreeFileEntry, error) {
	return r.flattenTreeRec(h, "")
}

func (r *Repo) flattenTreeRec(h object.Hash, prefix string) ([]TreeFileEntry, error) {
	entries, err := r.Store.ReadTree(h)
	if err != nil {
		return nil, fmt.Errorf("flatten tree: read %s: %w", h, err)
	}

	var result []TreeFileEntry
	for _, entry := range entries {
		fullPath := path.Join(prefix, entry.Name)
		if entry.IsDir() {
			sub, err := r.flattenTreeRec(entry.Hash, fullPath)
			if err != nil {
				return nil, err
			}
			result = append(result, sub...)
			continue
		}
		result = append(result, TreeFileEntry{Path: fullPath, Hash: entry.Hash})
	}
	return result, nil
}
