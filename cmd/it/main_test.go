package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// itRun runs the CLI inside dir and returns stdout, stderr and the exit
// status.
func itRun(t *testing.T, dir string, args ...string) (string, string, int) {
	t.Helper()
	t.Chdir(dir)
	var stdout, stderr bytes.Buffer
	code := run(args, &stdout, &stderr)
	return stdout.String(), stderr.String(), code
}

func mustRun(t *testing.T, dir string, args ...string) string {
	t.Helper()
	out, errOut, code := itRun(t, dir, args...)
	require.Equal(t, 0, code, "it %s failed: %s", strings.Join(args, " "), errOut)
	return out
}

func writeRepoFile(t *testing.T, dir, rel, content string) {
	t.Helper()
	p := filepath.Join(dir, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
}

func TestVersion(t *testing.T) {
	out := mustRun(t, t.TempDir(), "version")
	require.Equal(t, "it "+version+"\n", out)
}

func TestInitCreatesRepository(t *testing.T) {
	dir := t.TempDir()
	out := mustRun(t, dir, "init")
	require.Contains(t, out, "Initialized empty it repository in "+filepath.Join(dir, ".it"))

	_, errOut, code := itRun(t, dir, "init")
	require.Equal(t, 1, code)
	require.True(t, strings.HasPrefix(errOut, "fatal: "), "stderr = %q", errOut)
}

func TestInitIntoNewDirectory(t *testing.T) {
	parent := t.TempDir()
	mustRun(t, parent, "init", "--initial-branch", "trunk", "proj")

	head, err := os.ReadFile(filepath.Join(parent, "proj", ".it", "HEAD"))
	require.NoError(t, err)
	require.Equal(t, "ref: refs/heads/trunk\n", string(head))
}

func TestOutsideRepository(t *testing.T) {
	_, errOut, code := itRun(t, t.TempDir(), "log")
	require.Equal(t, 1, code)
	require.Contains(t, errOut, "fatal: not an it repository")
}

func TestWorkflow(t *testing.T) {
	dir := t.TempDir()
	mustRun(t, dir, "init")
	mustRun(t, dir, "config", "set", "user.name", "Tester")

	out := mustRun(t, dir, "log")
	require.Contains(t, out, "No commits yet")

	writeRepoFile(t, dir, "a.txt", "hi")
	writeRepoFile(t, dir, "dir/b.txt", "yo")
	mustRun(t, dir, "add", "a.txt", "dir")

	tree := strings.TrimSpace(mustRun(t, dir, "write-tree"))
	require.Len(t, tree, 40)

	out = mustRun(t, dir, "ls-tree", tree)
	require.Contains(t, out, "100644 blob ")
	require.Contains(t, out, "\ta.txt\n")
	require.Contains(t, out, "040000 tree ")
	require.Contains(t, out, "\tdir\n")

	out = mustRun(t, dir, "commit", "-m", "first snapshot")
	require.Contains(t, out, "[main (root-commit) ")
	require.Contains(t, out, "] first snapshot")

	_, errOut, code := itRun(t, dir, "commit", "-m", "nothing")
	require.Equal(t, 1, code)
	require.Contains(t, errOut, "nothing to commit")

	out = mustRun(t, dir, "branch", "feature")
	require.Contains(t, out, "Created branch feature")
	require.Equal(t, "  feature\n* main\n", mustRun(t, dir, "branch"))

	writeRepoFile(t, dir, "a.txt", "changed")
	mustRun(t, dir, "add", "a.txt")
	mustRun(t, dir, "commit", "-m", "second")

	out = mustRun(t, dir, "switch", "feature")
	require.Equal(t, "Switched to branch 'feature'\n", out)
	data, err := os.ReadFile(filepath.Join(dir, "a.txt"))
	require.NoError(t, err)
	require.Equal(t, "hi", string(data))

	out = mustRun(t, dir, "switch", "feature")
	require.Equal(t, "Already on 'feature'\n", out)

	out = mustRun(t, dir, "log", "--oneline")
	require.Contains(t, out, "BRANCH FROM main -> feature")

	mustRun(t, dir, "switch", "main")
	out = mustRun(t, dir, "log")
	require.Contains(t, out, "commit : first snapshot")
	require.Contains(t, out, "commit : second")
	require.Contains(t, out, "Parent: ")

	_, errOut, code = itRun(t, dir, "switch", "ghost")
	require.Equal(t, 1, code)
	require.Contains(t, errOut, "fatal: ")
	require.Contains(t, errOut, "ghost")
}

func TestLogPassesThroughMalformedLines(t *testing.T) {
	dir := t.TempDir()
	mustRun(t, dir, "init")
	zeros := strings.Repeat("0", 40)
	content := "abc " + zeros + " /r 1700000000 +0000 commit : ok\nbroken line\n"
	writeRepoFile(t, dir, ".it/logs/refs/heads/main", content)

	out := mustRun(t, dir, "log")
	require.Contains(t, out, "commit abc\n")
	require.Contains(t, out, "    commit : ok\n")
	require.True(t, strings.HasSuffix(out, "broken line\n"), "output:\n%s", out)
}

func TestHashObjectAndCatFile(t *testing.T) {
	dir := t.TempDir()
	mustRun(t, dir, "init")
	writeRepoFile(t, dir, "hello.txt", "hello\n")

	h := strings.TrimSpace(mustRun(t, dir, "hash-object", "hello.txt"))
	require.Equal(t, "ce013625030ba8dba906f756967f9e9ca394464a", h)

	_, _, code := itRun(t, dir, "cat-file", "-p", h)
	require.Equal(t, 1, code, "blob should not exist before -w")

	mustRun(t, dir, "hash-object", "-w", "hello.txt")
	require.Equal(t, "hello\n", mustRun(t, dir, "cat-file", "-p", h))
	require.Equal(t, "blob\n", mustRun(t, dir, "cat-file", "-t", h))

	_, errOut, code := itRun(t, dir, "cat-file", h)
	require.Equal(t, 1, code)
	require.Contains(t, errOut, "-p or -t")
}

func TestRmCached(t *testing.T) {
	dir := t.TempDir()
	mustRun(t, dir, "init")
	writeRepoFile(t, dir, "a.txt", "a")
	mustRun(t, dir, "add", "a.txt")

	_, _, code := itRun(t, dir, "rm", "a.txt")
	require.Equal(t, 1, code)

	out := mustRun(t, dir, "rm", "--cached", "a.txt")
	require.Equal(t, "rm 'a.txt'\n", out)

	_, errOut, code := itRun(t, dir, "write-tree")
	require.Equal(t, 1, code)
	require.Contains(t, errOut, "nothing to commit")

	_, err := os.Stat(filepath.Join(dir, "a.txt"))
	require.NoError(t, err, "working file must survive rm --cached")
}

func TestConfigGetSet(t *testing.T) {
	dir := t.TempDir()
	mustRun(t, dir, "init")
	mustRun(t, dir, "config", "set", "core.timezone", "+0530")
	require.Equal(t, "+0530\n", mustRun(t, dir, "config", "get", "core.timezone"))

	_, errOut, code := itRun(t, dir, "config", "set", "core.timezone", "IST")
	require.Equal(t, 1, code)
	require.Contains(t, errOut, "core.timezone")
}

func TestVerboseLogsToStderr(t *testing.T) {
	dir := t.TempDir()
	mustRun(t, dir, "init")
	writeRepoFile(t, dir, "a.txt", "a")

	_, errOut, code := itRun(t, dir, "--verbose", "add", "a.txt")
	require.Equal(t, 0, code)
	require.Contains(t, errOut, "lock acquired")

	_, errOut, code = itRun(t, dir, "add", "a.txt")
	require.Equal(t, 0, code)
	require.Empty(t, errOut)
}
