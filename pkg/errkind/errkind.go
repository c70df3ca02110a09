// Package errkind defines the closed set of error categories returned by the
// repository core. Errors carry their category through any amount of
// fmt.Errorf("%w") wrapping, so presentation code can branch on the kind
// without matching message text.
package errkind

import (
	"errors"
	"fmt"

	"github.com/warpfork/go-errcat"
)

// Kind is an error category.
type Kind string

const (
	NotARepository    Kind = "not-a-repository"
	BranchExists      Kind = "branch-exists"
	BranchNotFound    Kind = "branch-not-found"
	InvalidRef        Kind = "invalid-ref"
	NothingToCommit   Kind = "nothing-to-commit"
	StorageCorruption Kind = "storage-corruption"
	IO                Kind = "io"
	Usage             Kind = "usage"

	// Unknown is reported for errors that carry no category.
	Unknown Kind = ""
)

// Errorf returns a categorized error with a formatted message.
func Errorf(k Kind, format string, args ...interface{}) error {
	return errcat.Errorf(k, format, args...)
}

// IOError wraps a filesystem failure. It keeps the cause reachable through
// errors.Is / errors.As (for example fs.ErrNotExist).
type IOError struct {
	Op  string
	Err error
}

func (e *IOError) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// Category reports IO.
func (e *IOError) Category() interface{} { return IO }

// WrapIO categorizes err as an IO failure. A nil err yields nil, and errors
// that already carry a category are returned unchanged.
func WrapIO(op string, err error) error {
	if err == nil {
		return nil
	}
	if Of(err) != Unknown {
		return fmt.Errorf("%s: %w", op, err)
	}
	return &IOError{Op: op, Err: err}
}

type categorized interface {
	Category() interface{}
}

// Of returns the category of the outermost categorized error in err's chain.
func Of(err error) Kind {
	if err == nil {
		return Unknown
	}
	var c categorized
	if !errors.As(err, &c) {
		return Unknown
	}
	if k, ok := c.Category().(Kind); ok {
		return k
	}
	return Unknown
}

// Is reports whether err is categorized as k.
func Is(err error, k Kind) bool {
	return err != nil && Of(err) == k
}
