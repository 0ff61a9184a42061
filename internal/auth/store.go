package auth

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
)

const (
	storeDirPerm  = 0o700
	storeFilePerm = 0o600
)

// FileStore persists the credential in a single file. Reads and writes are
// guarded by a file lock so concurrent invocations sharing the store don't
// clobber each other.
type FileStore struct {
	Path string
}

var _ Store = (*FileStore)(nil)

func (s *FileStore) Load() (string, error) {
	lock := flock.New(s.lockPath())
	if err := lock.RLock(); err != nil {
		return "", fmt.Errorf("locking credential store: %w", err)
	}

	defer lock.Unlock()

	b, err := os.ReadFile(s.Path)
	if err != nil {
		return "", fmt.Errorf("reading credential store: %w", err)
	}

	return strings.TrimSpace(string(b)), nil
}

func (s *FileStore) Save(key string) error {
	if err := os.MkdirAll(filepath.Dir(s.Path), storeDirPerm); err != nil {
		return fmt.Errorf("creating credential dir: %w", err)
	}

	lock := flock.New(s.lockPath())
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("locking credential store: %w", err)
	}

	defer lock.Unlock()

	tmp := s.Path + ".tmp"
	if err := os.WriteFile(tmp, []byte(key+"\n"), storeFilePerm); err != nil {
		return fmt.Errorf("writing credential store: %w", err)
	}

	if err := os.Rename(tmp, s.Path); err != nil {
		return fmt.Errorf("replacing credential store: %w", err)
	}

	return nil
}

func (s *FileStore) lockPath() string {
	return s.Path + ".lock"
}
