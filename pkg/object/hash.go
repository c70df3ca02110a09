package object

import (
	"crypto/sha1"
	"fmt"
)

// BuildObject prepends the "<kind> <len>\0" envelope to content.
func BuildObject(content []byte, kind ObjectType) []byte {
	header := fmt.Sprintf("%s %d\x00", kind, len(content))
	out := make([]byte, 0, len(header)+len(content))
	out = append(out, header...)
	return append(out, content...)
}

// ComputeHash returns the SHA-1 of a full envelope+content byte sequence.
func ComputeHash(objectBytes []byte) Hash {
	return Hash(sha1.Sum(objectBytes))
}

// HashObject computes the digest an object of the given kind and content
// would be stored under.
func HashObject(kind ObjectType, content []byte) Hash {
	h := sha1.New()
	fmt.Fprintf(h, "%s %d\x00", kind, len(content))
	h.Write(content)
	var out Hash
	copy(out[:], h.Sum(nil))
	return out
}
