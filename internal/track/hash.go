package track

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

const hashChunkSize = 1 << 20 // 1 MiB

// QuickVideoHash computes the content hash used as a source-video identity.
// Small files (≤ 2 chunks) are hashed whole; larger files hash the first
// chunk, the last chunk and the file size, which is stable, fast and
// matches the identity scheme of the extractor tooling.
func QuickVideoHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("track: hash %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("track: hash %s: %w", path, err)
	}
	size := info.Size()

	h := sha256.New()
	if size <= 2*hashChunkSize {
		if _, err := io.Copy(h, f); err != nil {
			return "", fmt.Errorf("track: hash %s: %w", path, err)
		}
		return fmt.Sprintf("%x", h.Sum(nil)), nil
	}

	head := make([]byte, hashChunkSize)
	if _, err := io.ReadFull(f, head); err != nil {
		return "", fmt.Errorf("track: hash %s: %w", path, err)
	}
	tail := make([]byte, hashChunkSize)
	if _, err := f.ReadAt(tail, size-hashChunkSize); err != nil {
		return "", fmt.Errorf("track: hash %s: %w", path, err)
	}

	h.Write(head)
	h.Write(tail)
	var sz [8]byte
	binary.BigEndian.PutUint64(sz[:], uint64(size))
	h.Write(sz[:])
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}
