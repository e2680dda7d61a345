/*
Package persistence
File: codec.go
Description:
    Save blob encoding. A save is the exported state document, compressed
    with LZ4 and fingerprinted with BLAKE3 over the uncompressed bytes.
*/

package persistence

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"github.com/pierrec/lz4/v4"
	"lukechampine.com/blake3"
)

// ErrChecksum marks a save whose contents do not match its fingerprint.
var ErrChecksum = errors.New("persistence: save checksum mismatch")

// Checksum is the hex BLAKE3-256 of data.
func Checksum(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Compress packs data into an LZ4 frame.
func Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := lz4.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		return nil, fmt.Errorf("compress save: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("compress save: %w", err)
	}
	return buf.Bytes(), nil
}

// Decompress unpacks an LZ4 frame and verifies it against checksum.
func Decompress(blob []byte, checksum string) ([]byte, error) {
	data, err := io.ReadAll(lz4.NewReader(bytes.NewReader(blob)))
	if err != nil {
		return nil, fmt.Errorf("decompress save: %w", err)
	}
	if Checksum(data) != checksum {
		return nil, ErrChecksum
	}
	return data, nil
}
