package repo

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/odvcencio/it/pkg/errkind"
	"github.com/odvcencio/it/pkg/object"
)

func TestSwitch_RestoresFiles(t *testing.T) {
	r := initRepo(t)
	commitFiles(t, r, "base", map[string]string{
		"a.txt":         "a v1",
		"dir/b.txt":     "b v1",
		"dir/sub/c.txt": "c v1",
	})
	if _, err := r.CreateBranch("old"); err != nil {
		t.Fatalf("CreateBranch: %v", err)
	}
	commitFiles(t, r, "change", map[string]string{"a.txt": "a v2", "dir/b.txt": "b v2"})

	res, err := r.Switch("old")
	if err != nil {
		t.Fatalf("Switch: %v", err)
	}
	if res.AlreadyCurrent {
		t.Error("AlreadyCurrent = true, want false")
	}
	if res.FilesWritten != 3 {
		t.Errorf("FilesWritten = %d, want 3", res.FilesWritten)
	}

	for rel, want := range map[string]string{
		"a.txt":         "a v1",
		"dir/b.txt":     "b v1",
		"dir/sub/c.txt": "c v1",
	} {
		if got := readWorkFile(t, r, rel); got != want {
			t.Errorf("%s = %q, want %q", rel, got, want)
		}
	}

	branch, err := r.CurrentBranch()
	if err != nil {
		t.Fatalf("CurrentBranch: %v", err)
	}
	if branch != "old" {
		t.Errorf("CurrentBranch = %q, want %q", branch, "old")
	}
}

func TestSwitch_CreatesMissingDirectories(t *testing.T) {
	r := initRepo(t)
	commitFiles(t, r, "base", map[string]string{"deep/er/f.txt": "x"})
	if _, err := r.CreateBranch("other"); err != nil {
		t.Fatalf("CreateBranch: %v", err)
	}
	if err := os.RemoveAll(filepath.Join(r.RootDir, "deep")); err != nil {
		t.Fatalf("RemoveAll: %v", err)
	}

	if _, err := r.Switch("other"); err != nil {
		t.Fatalf("Switch: %v", err)
	}
	if got := readWorkFile(t, r, "deep/er/f.txt"); got != "x" {
		t.Errorf("deep/er/f.txt = %q, want %q", got, "x")
	}
}

func TestSwitch_LeavesUntrackedFilesAlone(t *testing.T) {
	r := initRepo(t)
	commitFiles(t, r, "base", map[string]string{"f.txt": "x"})
	if _, err := r.CreateBranch("other"); err != nil {
		t.Fatalf("CreateBranch: %v", err)
	}
	writeWorkFile(t, r, "scratch.txt", "mine")

	if _, err := r.Switch("other"); err != nil {
		t.Fatalf("Switch: %v", err)
	}
	if got := readWorkFile(t, r, "scratch.txt"); got != "mine" {
		t.Errorf("scratch.txt = %q, want untouched", got)
	}
}

func TestSwitch_AlreadyCurrentIsNoOp(t *testing.T) {
	r := initRepo(t)
	commitFiles(t, r, "base", map[string]string{"f.txt": "committed"})
	writeWorkFile(t, r, "f.txt", "local edit")

	res, err := r.Switch("main")
	if err != nil {
		t.Fatalf("Switch(main): %v", err)
	}
	if !res.AlreadyCurrent {
		t.Error("AlreadyCurrent = false, want true")
	}
	if got := readWorkFile(t, r, "f.txt"); got != "local edit" {
		t.Errorf("f.txt = %q, switch to current branch must not touch files", got)
	}
}

func TestSwitch_BranchNotFound_HEADUnchanged(t *testing.T) {
	r := initRepo(t)
	commitFiles(t, r, "base", map[string]string{"f.txt": "x"})

	headPath := filepath.Join(r.Dir, "HEAD")
	before, err := os.ReadFile(headPath)
	if err != nil {
		t.Fatalf("read HEAD: %v", err)
	}

	_, err = r.Switch("ghost")
	if !errkind.Is(err, errkind.BranchNotFound) {
		t.Fatalf("Switch(ghost): got %v, want BranchNotFound", err)
	}

	after, err := os.ReadFile(headPath)
	if err != nil {
		t.Fatalf("read HEAD: %v", err)
	}
	if string(before) != string(after) {
		t.Errorf("HEAD changed from %q to %q", before, after)
	}
}

func TestSwitch_CommitWithoutTreeLine_InvalidRef(t *testing.T) {
	r := initRepo(t)
	commitFiles(t, r, "base", map[string]string{"f.txt": "x"})

	bogus, err := r.Store.Write(object.TypeCommit, []byte("author nobody 0 +0000\n\nno tree here\n"))
	if err != nil {
		t.Fatalf("Store.Write: %v", err)
	}
	absent := object.ZeroHash
	if err := r.updateRef(branchRef("broken"), bogus, &absent); err != nil {
		t.Fatalf("updateRef: %v", err)
	}

	_, err = r.Switch("broken")
	if !errkind.Is(err, errkind.InvalidRef) {
		t.Fatalf("Switch(broken): got %v, want InvalidRef", err)
	}
	branch, err := r.CurrentBranch()
	if err != nil {
		t.Fatalf("CurrentBranch: %v", err)
	}
	if branch != "main" {
		t.Errorf("CurrentBranch = %q after failed switch, want main", branch)
	}
}
