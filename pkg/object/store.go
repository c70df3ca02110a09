package object

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/odvcencio/it/pkg/errkind"
)

// Store is a content-addressed object store with a 2-character fan-out
// directory layout: objects/ab/cdef0123...
type Store struct {
	root string
}

// NewStore creates a Store rooted at the given repository directory. The
// objects/ subdirectory and its shards are created lazily on first write.
func NewStore(root string) *Store {
	return &Store{root: root}
}

// objectPath returns the filesystem path for a given hash.
func (s *Store) objectPath(h Hash) string {
	hexHash := h.String()
	return filepath.Join(s.root, "objects", hexHash[:2], hexHash[2:])
}

// Has reports whether the store contains an object with the given hash.
func (s *Store) Has(h Hash) bool {
	_, err := os.Stat(s.objectPath(h))
	return err == nil
}

// StoreObject writes already-compressed object bytes under h. The shard
// directory is created if absent. Writes go to a temp file that is renamed
// into place, so concurrent writers of the same digest never expose a
// partial file.
func (s *Store) StoreObject(h Hash, compressed []byte) error {
	dest := s.objectPath(h)
	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errkind.WrapIO("object write mkdir", err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return errkind.WrapIO("object write tmpfile", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(compressed); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errkind.WrapIO("object write", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errkind.WrapIO("object write close", err)
	}
	if err := os.Rename(tmpName, dest); err != nil {
		os.Remove(tmpName)
		return errkind.WrapIO("object write rename", err)
	}
	return nil
}

// Write builds the envelope for content, hashes it, and stores the
// compressed bytes unless the object is already present.
func (s *Store) Write(kind ObjectType, content []byte) (Hash, error) {
	raw := BuildObject(content, kind)
	h := ComputeHash(raw)

	// Fast path: already exists.
	if s.Has(h) {
		return h, nil
	}

	compressed, err := Compress(raw)
	if err != nil {
		return h, fmt.Errorf("object write %s: compress: %w", h, err)
	}
	if err := s.StoreObject(h, compressed); err != nil {
		return h, fmt.Errorf("object write %s: %w", h, err)
	}
	return h, nil
}

// ReadObjectRaw returns the decompressed envelope+content bytes of h.
func (s *Store) ReadObjectRaw(h Hash) ([]byte, error) {
	compressed, err := os.ReadFile(s.objectPath(h))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errkind.WrapIO(fmt.Sprintf("object %s not found", h), err)
		}
		return nil, errkind.WrapIO(fmt.Sprintf("object read %s", h), err)
	}
	raw, err := Decompress(compressed)
	if err != nil {
		return nil, fmt.Errorf("object read %s: %w", h, err)
	}
	return raw, nil
}

// ReadObject returns the body of h as text, with the envelope stripped.
func (s *Store) ReadObject(h Hash) (string, error) {
	_, body, err := s.Read(h)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// Read retrieves an object by hash, returning its type and content.
func (s *Store) Read(h Hash) (ObjectType, []byte, error) {
	raw, err := s.ReadObjectRaw(h)
	if err != nil {
		return "", nil, err
	}
	return SplitObject(h, raw)
}

// SplitObject parses an envelope "type len\0content", validating the header.
func SplitObject(h Hash, raw []byte) (ObjectType, []byte, error) {
	nulIdx := bytes.IndexByte(raw, 0)
	if nulIdx < 0 {
		return "", nil, errkind.Errorf(errkind.StorageCorruption, "object %s: invalid format (no NUL)", h)
	}
	header := string(raw[:nulIdx])
	content := raw[nulIdx+1:]

	kind, lenStr, ok := strings.Cut(header, " ")
	if !ok || !ObjectType(kind).valid() {
		return "", nil, errkind.Errorf(errkind.StorageCorruption, "object %s: invalid header %q", h, header)
	}
	length, err := strconv.Atoi(lenStr)
	if err != nil {
		return "", nil, errkind.Errorf(errkind.StorageCorruption, "object %s: invalid length %q", h, lenStr)
	}
	if len(content) != length {
		return "", nil, errkind.Errorf(errkind.StorageCorruption, "object %s: length mismatch (header=%d, actual=%d)", h, length, len(content))
	}
	return ObjectType(kind), content, nil
}

// ReadTyped reads h and checks that it is of the wanted kind.
func (s *Store) ReadTyped(h Hash, want ObjectType) ([]byte, error) {
	kind, content, err := s.Read(h)
	if err != nil {
		return nil, err
	}
	if kind != want {
		return nil, errkind.Errorf(errkind.InvalidRef, "object %s: type mismatch: got %q, want %q", h, kind, want)
	}
	return content, nil
}

// WriteBlob stores raw file content.
func (s *Store) WriteBlob(data []byte) (Hash, error) {
	return s.Write(TypeBlob, data)
}

// ReadBlob reads raw file content.
func (s *Store) ReadBlob(h Hash) ([]byte, error) {
	return s.ReadTyped(h, TypeBlob)
}

// WriteTree serializes and stores tree entries. Entries must already be in
// name order.
func (s *Store) WriteTree(entries []TreeEntry) (Hash, error) {
	return s.Write(TypeTree, MarshalTree(entries))
}

// ReadTree reads and parses a tree object.
func (s *Store) ReadTree(h Hash) ([]TreeEntry, error) {
	body, err := s.ReadTyped(h, TypeTree)
	if err != nil {
		return nil, err
	}
	entries, err := ParseTree(body)
	if err != nil {
		return nil, fmt.Errorf("tree %s: %w", h, err)
	}
	return entries, nil
}

// WriteCommit serializes and stores a commit.
func (s *Store) WriteCommit(c *CommitObj) (Hash, error) {
	return s.Write(TypeCommit, MarshalCommit(c))
}

// ReadCommit reads and parses a commit object.
func (s *Store) ReadCommit(h Hash) (*CommitObj, error) {
	body, err := s.ReadTyped(h, TypeCommit)
	if err != nil {
		return nil, err
	}
	c, err := ParseCommit(body)
	if err != nil {
		return nil, fmt.Errorf("commit %s: %w", h, err)
	}
	return c, nil
}
