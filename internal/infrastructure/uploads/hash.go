// Package uploads handles attachment file storage: content hashing,
// time-ordered identifiers, filename sanitization, and the content-addressed
// deduplication store.
package uploads

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

const hashChunkSize = 1024 * 1024

// HashStream computes the SHA-256 checksum of a stream in bounded chunks.
// Seekable streams are rewound before hashing and again afterward so the
// caller can still consume the content.
func HashStream(stream io.Reader) (string, error) {
	seeker, canSeek := stream.(io.Seeker)
	if canSeek {
		if _, err := seeker.Seek(0, io.SeekStart); err != nil {
			canSeek = false
		}
	}

	digest := sha256.New()
	buf := make([]byte, hashChunkSize)
	if _, err := io.CopyBuffer(digest, stream, buf); err != nil {
		return "", fmt.Errorf("failed to hash stream: %w", err)
	}

	if canSeek {
		if _, err := seeker.Seek(0, io.SeekStart); err != nil {
			return "", fmt.Errorf("failed to rewind stream: %w", err)
		}
	}
	return hex.EncodeToString(digest.Sum(nil)), nil
}

// HashFile computes the SHA-256 checksum of a file on disk.
func HashFile(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open file for hashing: %w", err)
	}
	defer file.Close()

	digest := sha256.New()
	buf := make([]byte, hashChunkSize)
	if _, err := io.CopyBuffer(digest, file, buf); err != nil {
		return "", fmt.Errorf("failed to hash file: %w", err)
	}
	return hex.EncodeToString(digest.Sum(nil)), nil
}
