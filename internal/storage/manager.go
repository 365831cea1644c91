package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/zeebo/xxh3"

	"github.com/netcheck/linkwatch/internal/models"
)

// ErrNotFound is returned when an artifact has never been written.
var ErrNotFound = errors.New("artifact not found")

// Store defines the interface for rendered artifact storage.
type Store interface {
	WriteAtomic(name string, write func(w io.Writer) error) (*models.FileInfo, error)
	Stat(name string) (*models.FileInfo, error)
	Open(name string) (io.ReadCloser, *models.FileInfo, error)
	Path(name string) string
}

// LocalStore implements Store using the local filesystem.
type LocalStore struct {
	mu    sync.RWMutex
	dir   string
	files map[string]*models.FileInfo
}

// NewLocalStore creates a new LocalStore rooted at dir.
func NewLocalStore(dir string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	return &LocalStore{
		dir:   dir,
		files: make(map[string]*models.FileInfo),
	}, nil
}

// Path returns the absolute path of a named artifact.
func (s *LocalStore) Path(name string) string {
	return filepath.Join(s.dir, filepath.Base(name))
}

// WriteAtomic streams write's output into a temp file in the same directory and
// renames it over name only if write succeeds. Readers never observe a partial file.
func (s *LocalStore) WriteAtomic(name string, write func(w io.Writer) error) (*models.FileInfo, error) {
	final := s.Path(name)
	tmp, err := os.CreateTemp(s.dir, "."+filepath.Base(name)+".*.tmp")
	if err != nil {
		return nil, fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	hasher := xxh3.New()
	counter := &countingWriter{w: io.MultiWriter(tmp, hasher)}
	if err := write(counter); err != nil {
		return nil, err
	}
	if err := tmp.Sync(); err != nil {
		return nil, fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		return nil, fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpPath, final); err != nil {
		return nil, fmt.Errorf("replacing %s: %w", name, err)
	}
	committed = true

	info := &models.FileInfo{
		Name:      filepath.Base(name),
		Path:      final,
		Size:      counter.n,
		UpdatedAt: time.Now(),
		Digest:    fmt.Sprintf("%016x", hasher.Sum64()),
	}

	s.mu.Lock()
	s.files[info.Name] = info
	s.mu.Unlock()

	return cloneInfo(info), nil
}

// Stat returns metadata for a named artifact. Files left by an earlier process are
// picked up from disk and fingerprinted once.
func (s *LocalStore) Stat(name string) (*models.FileInfo, error) {
	base := filepath.Base(name)
	s.mu.RLock()
	info, ok := s.files[base]
	s.mu.RUnlock()
	if ok {
		if _, err := os.Stat(info.Path); err == nil {
			return cloneInfo(info), nil
		}
	}

	path := s.Path(base)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, base)
		}
		return nil, fmt.Errorf("reading %s: %w", base, err)
	}
	st, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", base, err)
	}

	info = &models.FileInfo{
		Name:      base,
		Path:      path,
		Size:      int64(len(data)),
		UpdatedAt: st.ModTime(),
		Digest:    fmt.Sprintf("%016x", xxh3.Hash(data)),
	}
	s.mu.Lock()
	s.files[base] = info
	s.mu.Unlock()

	return cloneInfo(info), nil
}

// Open returns a reader over the artifact along with its metadata.
func (s *LocalStore) Open(name string) (io.ReadCloser, *models.FileInfo, error) {
	info, err := s.Stat(name)
	if err != nil {
		return nil, nil, err
	}
	f, err := os.Open(info.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening %s: %w", info.Name, err)
	}
	return f, info, nil
}

func cloneInfo(info *models.FileInfo) *models.FileInfo {
	dup := *info
	return &dup
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
