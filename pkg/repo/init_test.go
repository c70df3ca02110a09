package repo

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/odvcencio/it/pkg/errkind"
)

func TestInit_CreatesStructure(t *testing.T) {
	dir := t.TempDir()

	r, err := Init(dir)
	if err != nil {
		t.Fatalf("Init(%q): %v", dir, err)
	}
	if r.RootDir != dir {
		t.Errorf("RootDir = %q, want %q", r.RootDir, dir)
	}

	itDir := filepath.Join(dir, ".it")
	if r.Dir != itDir {
		t.Errorf("Dir = %q, want %q", r.Dir, itDir)
	}

	assertDir(t, itDir)
	assertFile(t, filepath.Join(itDir, "HEAD"))
	assertFile(t, filepath.Join(itDir, "index"))
	assertFile(t, filepath.Join(itDir, "config.toml"))
	assertDir(t, filepath.Join(itDir, "objects"))
	assertDir(t, filepath.Join(itDir, "refs", "heads"))
	assertDir(t, filepath.Join(itDir, "logs", "refs", "heads"))

	if r.Store == nil {
		t.Error("Store is nil after Init")
	}
	if r.Worktree == nil {
		t.Error("Worktree is nil after Init")
	}
}

func TestInit_HEADPointsAtMain(t *testing.T) {
	dir := t.TempDir()
	if _, err := Init(dir); err != nil {
		t.Fatalf("Init: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, ".it", "HEAD"))
	if err != nil {
		t.Fatalf("read HEAD: %v", err)
	}
	if string(data) != "ref: refs/heads/main\n" {
		t.Errorf("HEAD = %q, want %q", data, "ref: refs/heads/main\n")
	}
}

func TestInit_WithInitialBranch(t *testing.T) {
	dir := t.TempDir()
	r, err := Init(dir, WithInitialBranch("trunk"))
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	branch, err := r.CurrentBranch()
	if err != nil {
		t.Fatalf("CurrentBranch: %v", err)
	}
	if branch != "trunk" {
		t.Errorf("CurrentBranch = %q, want %q", branch, "trunk")
	}
	v, err := r.ConfigValue("core.default_branch")
	if err != nil {
		t.Fatalf("ConfigValue: %v", err)
	}
	if v != "trunk" {
		t.Errorf("core.default_branch = %q, want %q", v, "trunk")
	}
}

func TestInit_InvalidInitialBranch(t *testing.T) {
	_, err := Init(t.TempDir(), WithInitialBranch("bad name"))
	if !errkind.Is(err, errkind.Usage) {
		t.Fatalf("Init with bad branch: got %v, want Usage error", err)
	}
}

func TestInit_ExistingRepo_Error(t *testing.T) {
	dir := t.TempDir()

	if _, err := Init(dir); err != nil {
		t.Fatalf("first Init: %v", err)
	}
	_, err := Init(dir)
	if err == nil {
		t.Fatal("second Init should fail on existing repo, got nil error")
	}
	if !errkind.Is(err, errkind.Usage) {
		t.Errorf("second Init: kind = %q, want %q", errkind.Of(err), errkind.Usage)
	}
}

func TestOpen_FromSubdirectory(t *testing.T) {
	dir := t.TempDir()
	if _, err := Init(dir); err != nil {
		t.Fatalf("Init: %v", err)
	}

	sub := filepath.Join(dir, "a", "b")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	r, err := Open(sub)
	if err != nil {
		t.Fatalf("Open(%q): %v", sub, err)
	}
	if r.RootDir != dir {
		t.Errorf("RootDir = %q, want %q", r.RootDir, dir)
	}
}

func TestOpen_NotARepository(t *testing.T) {
	_, err := Open(t.TempDir())
	if err == nil {
		t.Fatal("Open outside a repository should fail")
	}
	if !errkind.Is(err, errkind.NotARepository) {
		t.Errorf("Open: kind = %q, want %q", errkind.Of(err), errkind.NotARepository)
	}
}

func TestHead_Malformed(t *testing.T) {
	r := initRepo(t)
	if err := os.WriteFile(filepath.Join(r.Dir, "HEAD"), []byte("0123\n"), 0o644); err != nil {
		t.Fatalf("write HEAD: %v", err)
	}
	_, err := r.Head()
	if !errkind.Is(err, errkind.InvalidRef) {
		t.Fatalf("Head: got %v, want InvalidRef", err)
	}
}

func assertDir(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if err != nil {
		t.Errorf("expected directory %q to exist: %v", path, err)
		return
	}
	if !info.IsDir() {
		t.Errorf("%q exists but is not a directory", path)
	}
}

func assertFile(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if err != nil {
		t.Errorf("expected file %q to exist: %v", path, err)
		return
	}
	if info.IsDir() {
		t.Errorf("%q exists but is a directory, expected file", path)
	}
}

// initRepo creates an empty repository in a temp dir.
func initRepo(t *testing.T) *Repo {
	t.Helper()
	r, err := Init(t.TempDir())
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	return r
}

// writeWorkFile writes a file relative to the repository root.
func writeWorkFile(t *testing.T, r *Repo, rel, content string) {
	t.Helper()
	p := filepath.Join(r.RootDir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatalf("mkdir for %q: %v", rel, err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write %q: %v", rel, err)
	}
}

func readWorkFile(t *testing.T, r *Repo, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(r.RootDir, filepath.FromSlash(rel)))
	if err != nil {
		t.Fatalf("read %q: %v", rel, err)
	}
	return string(data)
}

// commitFiles writes, stages, and commits the given files.
func commitFiles(t *testing.T, r *Repo, message string, files map[string]string) *CommitResult {
	t.Helper()
	paths := make([]string, 0, len(files))
	for rel, content := range files {
		writeWorkFile(t, r, rel, content)
		paths = append(paths, rel)
	}
	if _, err := r.Add(paths); err != nil {
		t.Fatalf("Add(%v): %v", paths, err)
	}
	res, err := r.Commit(message)
	if err != nil {
		t.Fatalf("Commit(%q): %v", message, err)
	}
	return res
}
