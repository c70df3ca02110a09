package object

import (
	"bytes"
	"io"

	"github.com/klauspost/compress/zlib"
	"go.uber.org/multierr"

	"github.com/odvcencio/it/pkg/errkind"
)

// Compress deflates an object envelope for on-disk storage.
func Compress(raw []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(raw); err != nil {
		zw.Close()
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decompress inflates a stored object. Any stream error is reported as
// storage corruption.
func Decompress(compressed []byte) (_ []byte, retErr error) {
	zr, err := zlib.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, errkind.Errorf(errkind.StorageCorruption, "zlib header: %v", err)
	}
	defer func() {
		retErr = multierr.Append(retErr, zr.Close())
	}()
	out, err := io.ReadAll(zr)
	if err != nil {
		return nil, errkind.Errorf(errkind.StorageCorruption, "zlib stream: %v", err)
	}
	return out, nil
}
