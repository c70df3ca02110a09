package repo

import (
	"go.uber.org/zap"
	"gopkg.in/src-d/go-billy.v4"
	"gopkg.in/src-d/go-billy.v4/osfs"

	"github.com/odvcencio/it/pkg/object"
)

// MarkerDir is the name of the repository directory inside the working tree.
const MarkerDir = ".it"

// Repo represents an opened repository. Every operation works through this
// handle; nothing is rediscovered from the process working directory.
type Repo struct {
	RootDir  string           // working directory root
	Dir      string           // .it/ directory
	Store    *object.Store    // content-addressed object store
	Worktree billy.Filesystem // working directory, rooted at RootDir

	logger        *zap.Logger
	initialBranch string
}

// Option configures a Repo handle.
type Option func(*Repo)

// WithLogger sets the logger used for debug events. The default discards
// everything.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Repo) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithInitialBranch sets the branch HEAD points at after Init. It has no
// effect on Open.
func WithInitialBranch(name string) Option {
	return func(r *Repo) {
		r.initialBranch = name
	}
}

func newRepo(root string, opts []Option) *Repo {
	dir := joinMarker(root)
	r := &Repo{
		RootDir:  root,
		Dir:      dir,
		Store:    object.NewStore(dir),
		Worktree: osfs.New(root),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}
