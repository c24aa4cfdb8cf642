// Package chunkstore persists chunk texts as a single delimited file so the
// vector index can be rebuilt from them at startup.
package chunkstore

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

const (
	// Delimiter follows every chunk in the store file. A chunk containing it
	// verbatim is split in two on reload.
	Delimiter    = "\n---CHUNK---\n"
	FileName     = "chunks.txt"
	ManifestName = "manifest.yaml"
	lockName     = ".chunks.lock"
)

// Manifest records which embedding model the stored chunks were indexed with.
type Manifest struct {
	Model     string `yaml:"model"`
	Dimension int    `yaml:"dimension"`
}

// Store is an append-only chunk file under a directory.
type Store struct {
	fs       afero.Fs
	dir      string
	fileLock bool
}

// Option configures a Store.
type Option func(*Store)

// WithFileLock guards writes with an OS file lock in the store directory.
// It only makes sense on a filesystem backed by the OS.
func WithFileLock() Option {
	return func(s *Store) { s.fileLock = true }
}

// New returns a store rooted at dir on fsys. Nothing is created until the
// first write.
func New(fsys afero.Fs, dir string, opts ...Option) *Store {
	s := &Store{fs: fsys, dir: dir}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the location of the chunk file.
func (s *Store) Path() string { return filepath.Join(s.dir, FileName) }

func (s *Store) manifestPath() string { return filepath.Join(s.dir, ManifestName) }

// Append writes chunks after any existing content.
func (s *Store) Append(chunks []string) error {
	if len(chunks) == 0 {
		return nil
	}
	return s.locked(func() error {
		f, err := s.fs.OpenFile(s.Path(), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("open chunk file: %w", err)
		}
		var b strings.Builder
		for _, c := range chunks {
			b.WriteString(c)
			b.WriteString(Delimiter)
		}
		if _, err := f.WriteString(b.String()); err != nil {
			_ = f.Close()
			return fmt.Errorf("append chunks: %w", err)
		}
		return f.Close()
	})
}

// Load returns the stored chunks in file order. A missing file is an empty
// store.
func (s *Store) Load() ([]string, error) {
	data, err := afero.ReadFile(s.fs, s.Path())
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read chunk file: %w", err)
	}
	var chunks []string
	for _, part := range strings.Split(string(data), Delimiter) {
		if part != "" {
			chunks = append(chunks, part)
		}
	}
	return chunks, nil
}

// Clear removes the chunk file and the manifest.
func (s *Store) Clear() error {
	return s.locked(func() error {
		for _, p := range []string{s.Path(), s.manifestPath()} {
			if err := s.fs.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("remove %s: %w", filepath.Base(p), err)
			}
		}
		return nil
	})
}

// ReadManifest returns nil when no manifest has been written yet.
func (s *Store) ReadManifest() (*Manifest, error) {
	data, err := afero.ReadFile(s.fs, s.manifestPath())
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	return &m, nil
}

func (s *Store) WriteManifest(m Manifest) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	return s.locked(func() error {
		return afero.WriteFile(s.fs, s.manifestPath(), data, 0o644)
	})
}

func (s *Store) locked(fn func() error) error {
	if err := s.fs.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create store dir: %w", err)
	}
	if !s.fileLock {
		return fn()
	}
	lock := flock.New(filepath.Join(s.dir, lockName))
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("lock store: %w", err)
	}
	defer func() { _ = lock.Unlock() }()
	return fn()
}
