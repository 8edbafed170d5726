package kv

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/starford/asterisk/internal/apperr"
)

const fsRecordExt = ".json"

// fsRecord is the on-disk envelope. The key is stored alongside the value
// because file names are digests and cannot be reversed.
type fsRecord struct {
	Key   string `json:"key"`
	Value []byte `json:"value"`
}

// FS is a Store that keeps one file per key under a root directory.
type FS struct {
	root string // absolute path to the store directory
	mu   sync.Mutex
}

// NewFS creates an FS store rooted at dir, creating it if needed.
func NewFS(dir string) (*FS, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("kv: resolve root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("kv: mkdir root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("kv: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("kv: root is not a directory: %s", abs)
	}
	return &FS{root: abs}, nil
}

// path maps a key to its file. Digest names keep arbitrary key bytes out of
// the file system.
func (f *FS) path(key string) string {
	h := sha256.Sum256([]byte(key))
	return filepath.Join(f.root, hex.EncodeToString(h[:])+fsRecordExt)
}

func (f *FS) Get(_ context.Context, key string) ([]byte, error) {
	rec, err := readRecord(f.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("kv: get %s: %w", key, err)
	}
	return rec.Value, nil
}

// Set atomically writes the record: tmp file → fsync → rename.
func (f *FS) Set(_ context.Context, key string, value []byte) error {
	data, err := json.Marshal(fsRecord{Key: key, Value: value})
	if err != nil {
		return fmt.Errorf("kv: encode %s: %w", key, err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	tmp, err := os.CreateTemp(f.root, ".asterisk-tmp-*")
	if err != nil {
		return fmt.Errorf("kv: create temp: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("kv: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("kv: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("kv: close temp: %w", err)
	}
	if err := os.Rename(tmpName, f.path(key)); err != nil {
		return fmt.Errorf("kv: rename: %w", err)
	}
	success = true
	return nil
}

func (f *FS) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := os.Remove(f.path(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("kv: delete %s: %w", key, err)
	}
	return nil
}

func (f *FS) Keys(_ context.Context) ([]string, error) {
	var out []string
	err := filepath.WalkDir(f.root, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			if p != f.root {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(d.Name(), fsRecordExt) {
			return nil
		}
		rec, err := readRecord(p)
		if err != nil {
			return err
		}
		out = append(out, rec.Key)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("kv: keys: %w", err)
	}
	sort.Strings(out)
	return out, nil
}

func (f *FS) Close() error { return nil }

func readRecord(p string) (fsRecord, error) {
	var rec fsRecord
	data, err := os.ReadFile(p)
	if err != nil {
		return rec, err
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		return rec, fmt.Errorf("decode %s: %w", filepath.Base(p), err)
	}
	return rec, nil
}
