package importer

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
)

// HashBytes returns the sha256 content hash used for snapshot addressing
func HashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// SnapshotStore persists immutable, content-addressed copies of uploaded
// files. The blob store itself is an external collaborator; this interface
// is what the pipeline needs from it.
type SnapshotStore interface {
	// Put stores the bytes and returns (ref, hash). Ref is opaque to the
	// pipeline and recorded on the job.
	Put(data []byte) (string, string, error)
	// Get returns the snapshot bytes for a ref.
	Get(ref string) ([]byte, error)
	// Verify re-reads and re-hashes the snapshot and returns its bytes,
	// failing closed when the content no longer matches the recorded hash.
	Verify(ref, wantHash string) ([]byte, error)
}

// FileSnapshotStore keeps snapshots on the local filesystem under a media
// directory, one file per content hash. Writing the same content twice is a
// no-op, which is exactly the immutability we want.
type FileSnapshotStore struct {
	dir string
}

func NewFileSnapshotStore(dir string) (*FileSnapshotStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create snapshot dir: %w", err)
	}
	return &FileSnapshotStore{dir: dir}, nil
}

func (s *FileSnapshotStore) path(hash string) string {
	return filepath.Join(s.dir, hash+".snapshot")
}

func (s *FileSnapshotStore) Put(data []byte) (string, string, error) {
	hash := HashBytes(data)
	path := s.path(hash)
	if _, err := os.Stat(path); err == nil {
		return hash, hash, nil
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", "", fmt.Errorf("write snapshot: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", "", fmt.Errorf("finalize snapshot: %w", err)
	}
	return hash, hash, nil
}

func (s *FileSnapshotStore) Get(ref string) ([]byte, error) {
	data, err := os.ReadFile(s.path(ref))
	if err != nil {
		return nil, fmt.Errorf("read snapshot %s: %w", ref, err)
	}
	return data, nil
}

func (s *FileSnapshotStore) Verify(ref, wantHash string) ([]byte, error) {
	data, err := s.Get(ref)
	if err != nil {
		return nil, err
	}
	if got := HashBytes(data); got != wantHash {
		return nil, fmt.Errorf("snapshot %s hash mismatch: recorded %s, found %s", ref, wantHash, got)
	}
	return data, nil
}
