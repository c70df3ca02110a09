package object

import (
	"encoding/hex"

	"github.com/odvcencio/it/pkg/errkind"
)

// HashSize is the length of a raw SHA-1 digest.
const HashSize = 20

// Hash is a raw 20-byte SHA-1 digest addressing an object.
type Hash [HashSize]byte

// ZeroHash is the all-zero digest. Its hex form doubles as the "no parent"
// sentinel in history records.
var ZeroHash Hash

// String returns the 40-character lowercase hex form.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// IsZero reports whether h is the all-zero digest.
func (h Hash) IsZero() bool {
	return h == ZeroHash
}

// ParseHash decodes a 40-character hex digest.
func ParseHash(s string) (Hash, error) {
	var h Hash
	if len(s) != 2*HashSize {
		return h, errkind.Errorf(errkind.InvalidRef, "invalid object hash %q: want %d hex characters", s, 2*HashSize)
	}
	if _, err := hex.Decode(h[:], []byte(s)); err != nil {
		return h, errkind.Errorf(errkind.InvalidRef, "invalid object hash %q: %v", s, err)
	}
	return h, nil
}

// HashFromBytes copies a raw 20-byte digest.
func HashFromBytes(b []byte) (Hash, error) {
	var h Hash
	if len(b) != HashSize {
		return h, errkind.Errorf(errkind.StorageCorruption, "raw hash has %d bytes, want %d", len(b), HashSize)
	}
	copy(h[:], b)
	return h, nil
}

// ObjectType identifies the kind of object stored.
type ObjectType string

const (
	TypeBlob   ObjectType = "blob"
	TypeTree   ObjectType = "tree"
	TypeCommit ObjectType = "commit"
)

func (t ObjectType) valid() bool {
	switch t {
	case TypeBlob, TypeTree, TypeCommit:
		return true
	}
	return false
}

const (
	// Tree modes. Only regular files and directories are tracked.
	ModeFile = "100644"
	ModeDir  = "040000"
)

// TreeEntry is one entry in a tree object.
type TreeEntry struct {
	Mode string
	Name string
	Hash Hash
}

// IsDir reports whether the entry points at a subtree.
func (e TreeEntry) IsDir() bool {
	return e.Mode == ModeDir
}

// CommitObj is the decoded body of a commit object.
type CommitObj struct {
	Tree      Hash
	Parent    Hash // ZeroHash for a root commit
	Author    string
	Timestamp int64
	Timezone  string
	Message   string
}
