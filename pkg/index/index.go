// Package index reads and writes the binary staging file.
//
// Layout (big-endian integers):
//
//	"DIRC" | version (4) = 2 | entry count (4)
//	per entry:
//	    reserved metadata (40, zero)
//	    hash (20)
//	    flags (2)
//	    path, NUL-terminated
//	    zero padding so the entry length is a multiple of 8
//	SHA-1 over all preceding bytes (20)
package index

import (
	"bytes"
	"crypto/sha1"
	"encoding/binary"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/odvcencio/it/pkg/errkind"
	"github.com/odvcencio/it/pkg/object"
)

const (
	signature = "DIRC"
	version   = 2

	headerSize   = 12
	metadataSize = 40
	// fixed part of an entry: metadata + hash + flags
	entryFixedSize = metadataSize + object.HashSize + 2
	checksumSize   = sha1.Size

	// maxNameLength is the largest path length representable in flags.
	maxNameLength = 0xFFF
)

// Entry is one staged path.
type Entry struct {
	Path  string
	Hash  object.Hash
	Flags uint16
}

// FlagsForPath returns the conventional flags for a staged path: the low 12
// bits hold the path length, saturated at 0xFFF.
func FlagsForPath(path string) uint16 {
	if len(path) > maxNameLength {
		return maxNameLength
	}
	return uint16(len(path))
}

// entryPadding returns the zero bytes appended after an entry of the given
// unpadded length.
func entryPadding(entryLen int) int {
	return (8 - entryLen%8) % 8
}

// Encode serializes entries in the order given and appends the checksum.
func Encode(entries []Entry) []byte {
	var buf bytes.Buffer
	buf.WriteString(signature)
	var word [4]byte
	binary.BigEndian.PutUint32(word[:], version)
	buf.Write(word[:])
	binary.BigEndian.PutUint32(word[:], uint32(len(entries)))
	buf.Write(word[:])

	var metadata [metadataSize]byte
	for _, e := range entries {
		buf.Write(metadata[:])
		buf.Write(e.Hash[:])
		var flags [2]byte
		binary.BigEndian.PutUint16(flags[:], e.Flags)
		buf.Write(flags[:])
		buf.WriteString(e.Path)
		buf.WriteByte(0)

		entryLen := entryFixedSize + len(e.Path) + 1
		buf.Write(make([]byte, entryPadding(entryLen)))
	}

	sum := sha1.Sum(buf.Bytes())
	buf.Write(sum[:])
	return buf.Bytes()
}

// Decode parses an encoded index. Entries are returned in file order. An
// empty input decodes to no entries.
func Decode(data []byte) ([]Entry, error) {
	if len(data) == 0 {
		return []Entry{}, nil
	}
	if len(data) < headerSize+checksumSize {
		return nil, errkind.Errorf(errkind.StorageCorruption, "index: file too short (%d bytes)", len(data))
	}
	if string(data[:4]) != signature {
		return nil, errkind.Errorf(errkind.StorageCorruption, "index: bad signature %q", data[:4])
	}
	if v := binary.BigEndian.Uint32(data[4:8]); v != version {
		return nil, errkind.Errorf(errkind.StorageCorruption, "index: unsupported version %d", v)
	}

	body := data[:len(data)-checksumSize]
	want := data[len(data)-checksumSize:]
	if sum := sha1.Sum(body); !bytes.Equal(sum[:], want) {
		return nil, errkind.Errorf(errkind.StorageCorruption, "index: checksum mismatch")
	}

	count := binary.BigEndian.Uint32(data[8:12])
	entries := make([]Entry, 0, min(int(count), len(body)/entryFixedSize))
	pos := headerSize
	for i := uint32(0); i < count; i++ {
		if pos+entryFixedSize > len(body) {
			return nil, errkind.Errorf(errkind.StorageCorruption, "index: entry %d runs past end of file", i)
		}
		var e Entry
		copy(e.Hash[:], body[pos+metadataSize:pos+metadataSize+object.HashSize])
		e.Flags = binary.BigEndian.Uint16(body[pos+metadataSize+object.HashSize:])

		pathStart := pos + entryFixedSize
		nul := bytes.IndexByte(body[pathStart:], 0)
		if nul < 0 {
			return nil, errkind.Errorf(errkind.StorageCorruption, "index: entry %d has unterminated path", i)
		}
		e.Path = string(body[pathStart : pathStart+nul])

		entryLen := entryFixedSize + nul + 1
		next := pos + entryLen + entryPadding(entryLen)
		if next > len(body) {
			return nil, errkind.Errorf(errkind.StorageCorruption, "index: entry %d padding runs past end of file", i)
		}
		entries = append(entries, e)
		pos = next
	}
	return entries, nil
}

// Read loads the index file at path. A missing or zero-length file yields an
// empty slice.
func Read(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []Entry{}, nil
		}
		return nil, errkind.WrapIO("read index", err)
	}
	return Decode(data)
}

// Write atomically replaces the index file at path.
func Write(path string, entries []Entry) error {
	data := Encode(entries)

	// Atomic write via temp file + rename.
	tmp, err := os.CreateTemp(filepath.Dir(path), ".index-tmp-*")
	if err != nil {
		return errkind.WrapIO("write index: tmpfile", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errkind.WrapIO("write index: write", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errkind.WrapIO("write index: close", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return errkind.WrapIO("write index: rename", err)
	}
	return nil
}
