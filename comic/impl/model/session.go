package model

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
)

type namedCloser struct {
	name   string
	closer io.Closer
}

// Session owns every model loaded for one run together with the temporary files their assets
// were copied into. Close releases all of them.
type Session struct {
	mu      sync.Mutex
	dir     string
	closers []namedCloser
	closed  bool
}

func Open() (*Session, error) {
	dir, err := os.MkdirTemp("", "comicex-models-")
	if err != nil {
		return nil, fmt.Errorf("failed to create model directory: %w", err)
	}
	return &Session{dir: dir}, nil
}

// LoadAsset copies a model asset into a file that lives as long as the session and returns its path.
func (s *Session) LoadAsset(name string, reader io.Reader) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", errors.New("session is closed")
	}

	path := filepath.Join(s.dir, filepath.Base(name))
	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create asset file %s: %w", name, err)
	}
	if _, err := io.Copy(file, reader); err != nil {
		file.Close()
		return "", fmt.Errorf("failed to copy asset %s: %w", name, err)
	}
	if err := file.Close(); err != nil {
		return "", fmt.Errorf("failed to write asset %s: %w", name, err)
	}
	return path, nil
}

// LoadAssetFile is LoadAsset for an asset on disk.
func (s *Session) LoadAssetFile(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open asset: %w", err)
	}
	defer file.Close()
	return s.LoadAsset(filepath.Base(path), file)
}

// Track registers a resource to be released when the session closes. Resources are released in
// reverse order of registration.
func (s *Session) Track(name string, closer io.Closer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closers = append(s.closers, namedCloser{name: name, closer: closer})
}

// Close releases every tracked resource and removes the asset files. Every release is attempted;
// failures are joined into the returned error.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i].closer.Close(); err != nil {
			log.Printf("Failed to release %s: %v", s.closers[i].name, err)
			errs = append(errs, fmt.Errorf("failed to release %s: %w", s.closers[i].name, err))
		}
	}
	s.closers = nil
	if err := os.RemoveAll(s.dir); err != nil {
		errs = append(errs, fmt.Errorf("failed to remove model directory: %w", err))
	}
	return errors.Join(errs...)
}
