package object

import (
	"bufio"
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/odvcencio/it/pkg/errkind"
)

// ---------------------------------------------------------------------------
// Tree
// ---------------------------------------------------------------------------

// MarshalTree serializes entries in the order given, each as
//
//	<mode> <name>\0<20 raw hash bytes>
func MarshalTree(entries []TreeEntry) []byte {
	var buf bytes.Buffer
	for _, e := range entries {
		buf.WriteString(e.Mode)
		buf.WriteByte(' ')
		buf.WriteString(e.Name)
		buf.WriteByte(0)
		buf.Write(e.Hash[:])
	}
	return buf.Bytes()
}

// ParseTree decodes a tree body produced by MarshalTree.
func ParseTree(body []byte) ([]TreeEntry, error) {
	var entries []TreeEntry
	i := 0
	for i < len(body) {
		nul := bytes.IndexByte(body[i:], 0)
		if nul < 0 {
			return nil, errkind.Errorf(errkind.StorageCorruption, "tree entry at offset %d: missing NUL", i)
		}
		header := string(body[i : i+nul])
		mode, name, ok := strings.Cut(header, " ")
		if !ok || name == "" {
			return nil, errkind.Errorf(errkind.StorageCorruption, "tree entry at offset %d: malformed header %q", i, header)
		}
		if mode != ModeFile && mode != ModeDir {
			return nil, errkind.Errorf(errkind.StorageCorruption, "tree entry %q: unsupported mode %q", name, mode)
		}

		hashStart := i + nul + 1
		if hashStart+HashSize > len(body) {
			return nil, errkind.Errorf(errkind.StorageCorruption, "tree entry %q: truncated hash", name)
		}
		var h Hash
		copy(h[:], body[hashStart:hashStart+HashSize])

		entries = append(entries, TreeEntry{Mode: mode, Name: name, Hash: h})
		i = hashStart + HashSize
	}
	return entries, nil
}

// ---------------------------------------------------------------------------
// Commit
// ---------------------------------------------------------------------------

// MarshalCommit serializes a commit:
//
//	tree <hex>
//	parent <hex>            (omitted for a root commit)
//	author <name> <unix> <tz>
//
//	<message>
func MarshalCommit(c *CommitObj) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "tree %s\n", c.Tree)
	if !c.Parent.IsZero() {
		fmt.Fprintf(&buf, "parent %s\n", c.Parent)
	}
	fmt.Fprintf(&buf, "author %s %d %s\n", c.Author, c.Timestamp, c.Timezone)
	buf.WriteByte('\n')
	buf.WriteString(c.Message)
	if !strings.HasSuffix(c.Message, "\n") {
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

// CommitTree locates the "tree <hex>" line in a commit body. This is the
// only part of a commit that checkout depends on, so it tolerates headers it
// does not understand.
func CommitTree(body string) (Hash, error) {
	sc := bufio.NewScanner(strings.NewReader(body))
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			break
		}
		if rest, ok := strings.CutPrefix(line, "tree "); ok {
			return ParseHash(strings.TrimSpace(rest))
		}
	}
	return ZeroHash, errkind.Errorf(errkind.InvalidRef, "commit has no tree line")
}

// ParseCommit decodes a commit body produced by MarshalCommit.
func ParseCommit(body []byte) (*CommitObj, error) {
	header, message, ok := strings.Cut(string(body), "\n\n")
	if !ok {
		return nil, errkind.Errorf(errkind.StorageCorruption, "commit: missing header/message separator")
	}

	c := &CommitObj{Message: strings.TrimSuffix(message, "\n")}
	sawTree := false
	for _, line := range strings.Split(header, "\n") {
		key, val, ok := strings.Cut(line, " ")
		if !ok {
			return nil, errkind.Errorf(errkind.StorageCorruption, "commit: malformed header line %q", line)
		}
		switch key {
		case "tree":
			h, err := ParseHash(val)
			if err != nil {
				return nil, err
			}
			c.Tree = h
			sawTree = true
		case "parent":
			h, err := ParseHash(val)
			if err != nil {
				return nil, err
			}
			c.Parent = h
		case "author":
			// name may contain spaces; the last two fields are time and zone.
			fields := strings.Fields(val)
			if len(fields) < 2 {
				return nil, errkind.Errorf(errkind.StorageCorruption, "commit: malformed author %q", val)
			}
			ts, err := strconv.ParseInt(fields[len(fields)-2], 10, 64)
			if err != nil {
				return nil, errkind.Errorf(errkind.StorageCorruption, "commit: bad timestamp %q", fields[len(fields)-2])
			}
			c.Timestamp = ts
			c.Timezone = fields[len(fields)-1]
			c.Author = strings.Join(fields[:len(fields)-2], " ")
		}
	}
	if !sawTree {
		return nil, errkind.Errorf(errkind.InvalidRef, "commit has no tree line")
	}
	return c, nil
}
