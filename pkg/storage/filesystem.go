package storage

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// LocalStorage keeps generated artifacts (receipts, reports, backups) under a root directory.
type LocalStorage struct {
	root string
}

// NewLocalStorage creates root if needed.
func NewLocalStorage(root string) (*LocalStorage, error) {
	if root == "" {
		return nil, fmt.Errorf("storage root is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root %s: %w", root, err)
	}
	return &LocalStorage{root: root}, nil
}

// Root returns the directory files are stored under.
func (s *LocalStorage) Root() string {
	return s.root
}

// Exists reports whether name is present under root. It always consults the
// directory; nothing is cached.
func (s *LocalStorage) Exists(name string) (bool, error) {
	_, err := os.Stat(s.Path(name))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("stat %s: %w", name, err)
}

// UniqueName returns base+ext when unused, otherwise the first free
// base_1+ext, base_2+ext, ... in the current directory listing.
func (s *LocalStorage) UniqueName(base, ext string) (string, error) {
	candidate := base + ext
	for n := 1; ; n++ {
		taken, err := s.Exists(candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
		candidate = base + "_" + strconv.Itoa(n) + ext
	}
}

// CreateUnique picks a free name for base+ext and streams write into it. The
// file is created exclusively so two writers never share a name, and it is
// closed on every path. A failed write removes the partial file.
func (s *LocalStorage) CreateUnique(base, ext string, write func(io.Writer) error) (name string, err error) {
	for {
		name, err = s.UniqueName(base, ext)
		if err != nil {
			return "", err
		}
		path := s.Path(name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return "", fmt.Errorf("prepare directory for %s: %w", name, err)
		}
		file, openErr := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(openErr, fs.ErrExist) {
			continue
		}
		if openErr != nil {
			return "", fmt.Errorf("create %s: %w", name, openErr)
		}

		writeErr := write(file)
		closeErr := file.Close()
		if writeErr == nil {
			writeErr = closeErr
		}
		if writeErr != nil {
			_ = os.Remove(path)
			return "", fmt.Errorf("write %s: %w", name, writeErr)
		}
		return name, nil
	}
}

// Open returns a read handle for name. Callers close it.
func (s *LocalStorage) Open(name string) (*os.File, error) {
	file, err := os.Open(s.Path(name))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	return file, nil
}

// Delete removes name; a missing file is not an error.
func (s *LocalStorage) Delete(name string) error {
	if err := os.Remove(s.Path(name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete %s: %w", name, err)
	}
	return nil
}

// CleanupOlderThan removes regular files last modified before now-ttl and
// returns their names relative to root.
func (s *LocalStorage) CleanupOlderThan(ttl time.Duration) ([]string, error) {
	cutoff := time.Now().Add(-ttl)
	var removed []string
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if !info.ModTime().Before(cutoff) {
			return nil
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			rel = path
		}
		removed = append(removed, rel)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("cleanup %s: %w", s.root, err)
	}
	return removed, nil
}

// Path resolves name against root. Absolute names are returned unchanged.
func (s *LocalStorage) Path(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(s.root, name)
}
