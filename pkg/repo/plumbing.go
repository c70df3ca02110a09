package repo

import (
	"fmt"
	"os"

	"github.com/odvcencio/it/pkg/errkind"
	"github.com/odvcencio/it/pkg/object"
)

// HashFile computes the blob hash of a file. When write is set the blob is
// also stored. path is resolved like any other filesystem path; it need not
// be inside the working tree.
func (r *Repo) HashFile(path string, write bool) (object.Hash, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return object.ZeroHash, errkind.WrapIO("hash-object", err)
	}
	if !write {
		return object.HashObject(object.TypeBlob, data), nil
	}
	h, err := r.Store.WriteBlob(data)
	if err != nil {
		return object.ZeroHash, fmt.Errorf("hash-object: %w", err)
	}
	return h, nil
}

// CatFile returns the kind and body of a stored object.
func (r *Repo) CatFile(h object.Hash) (object.ObjectType, []byte, error) {
	kind, body, err := r.Store.Read(h)
	if err != nil {
		return "", nil, fmt.Errorf("cat-file %s: %w", h, err)
	}
	return kind, body, nil
}
