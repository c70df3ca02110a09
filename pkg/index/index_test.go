package index

import (
	"crypto/sha1"
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/odvcencio/it/pkg/errkind"
	"github.com/odvcencio/it/pkg/object"
)

func sampleEntries() []Entry {
	paths := []string{"zeta.txt", "a.txt", "dir/b.txt", "dir/sub/longer-name.go", "x"}
	entries := make([]Entry, 0, len(paths))
	for _, p := range paths {
		entries = append(entries, Entry{
			Path:  p,
			Hash:  object.HashObject(object.TypeBlob, []byte(p)),
			Flags: FlagsForPath(p),
		})
	}
	return entries
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	entries := sampleEntries()
	entries[2].Flags = 0xBEEF

	got, err := Decode(Encode(entries))
	require.NoError(t, err)
	require.Equal(t, entries, got)
}

func TestEncodeLayout(t *testing.T) {
	e := Entry{Path: "a.txt", Hash: object.HashObject(object.TypeBlob, []byte("hi")), Flags: 5}
	data := Encode([]Entry{e})

	require.Equal(t, "DIRC", string(data[:4]))
	require.Equal(t, uint32(2), binary.BigEndian.Uint32(data[4:8]))
	require.Equal(t, uint32(1), binary.BigEndian.Uint32(data[8:12]))

	// 62 fixed + 5 path + 1 NUL = 68, padded to 72.
	require.Len(t, data, 12+72+20)
	for _, b := range data[12 : 12+40] {
		require.Zero(t, b)
	}
	require.Equal(t, e.Hash[:], data[12+40:12+60])
	require.Equal(t, uint16(5), binary.BigEndian.Uint16(data[12+60:12+62]))
	require.Equal(t, "a.txt\x00", string(data[12+62:12+68]))
}

func TestEveryEntryAligned(t *testing.T) {
	for n := 1; n <= 17; n++ {
		p := strings.Repeat("p", n)
		data := Encode([]Entry{{Path: p}})
		entryLen := len(data) - headerSize - checksumSize
		require.Zero(t, entryLen%8, "path length %d", n)
		got, err := Decode(data)
		require.NoError(t, err)
		require.Equal(t, p, got[0].Path)
	}
}

func TestDecodePreservesFileOrder(t *testing.T) {
	entries := []Entry{{Path: "b"}, {Path: "a"}, {Path: "c/d"}}
	got, err := Decode(Encode(entries))
	require.NoError(t, err)
	require.Equal(t, []string{"b", "a", "c/d"}, []string{got[0].Path, got[1].Path, got[2].Path})
}

func TestDecodeEmpty(t *testing.T) {
	got, err := Decode(nil)
	require.NoError(t, err)
	require.Empty(t, got)

	got, err = Decode(Encode(nil))
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestDecodeBadMagic(t *testing.T) {
	data := Encode(sampleEntries())
	copy(data, "CRID")
	_, err := Decode(data)
	require.True(t, errkind.Is(err, errkind.StorageCorruption), "got %v", err)
}

func TestDecodeChecksumMismatch(t *testing.T) {
	data := Encode(sampleEntries())
	data[headerSize+metadataSize] ^= 0xFF
	_, err := Decode(data)
	require.True(t, errkind.Is(err, errkind.StorageCorruption), "got %v", err)
}

// sign appends a fresh checksum to a tampered body so decoding gets past the
// integrity check and reaches the structural ones.
func sign(body []byte) []byte {
	sum := sha1.Sum(body)
	return append(body, sum[:]...)
}

func TestDecodeTruncatedRecord(t *testing.T) {
	data := Encode(sampleEntries())
	// Claim one more entry than is present, then re-sign.
	body := append([]byte(nil), data[:len(data)-checksumSize]...)
	count := binary.BigEndian.Uint32(body[8:12])
	binary.BigEndian.PutUint32(body[8:12], count+1)
	_, err := Decode(sign(body))
	require.True(t, errkind.Is(err, errkind.StorageCorruption), "got %v", err)
}

func TestDecodeTooShort(t *testing.T) {
	_, err := Decode([]byte("DIRC"))
	require.True(t, errkind.Is(err, errkind.StorageCorruption), "got %v", err)
}

func TestReadWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index")

	// Absent file.
	got, err := Read(path)
	require.NoError(t, err)
	require.Empty(t, got)

	// Zero-length file.
	require.NoError(t, os.WriteFile(path, nil, 0o644))
	got, err = Read(path)
	require.NoError(t, err)
	require.Empty(t, got)

	entries := sampleEntries()
	require.NoError(t, Write(path, entries))
	got, err = Read(path)
	require.NoError(t, err)
	require.Equal(t, entries, got)

	// No temp files left behind.
	dirEntries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, dirEntries, 1)
}

func TestFlagsForPath(t *testing.T) {
	require.Equal(t, uint16(5), FlagsForPath("a.txt"))
	require.Equal(t, uint16(0xFFF), FlagsForPath(strings.Repeat("x", 5000)))
}
