package persist

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"pageeditor/internal/domain"
)

const fileExt = ".json"

// FileStore keeps one JSON file per document key in a directory. Writes are
// atomic (temp file + rename) so readers never see a partial document.
type FileStore struct {
	dir string

	mu      sync.Mutex
	written map[string][]byte // key -> last bytes this process wrote
}

// NewFileStore creates a FileStore rooted at dir.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("file backend: no directory")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create document directory: %w", err)
	}
	return &FileStore{dir: dir, written: make(map[string][]byte)}, nil
}

// Path returns the file that holds key.
func (s *FileStore) Path(key string) string {
	return filepath.Join(s.dir, url.PathEscape(key)+fileExt)
}

func (s *FileStore) LoadConfig(_ context.Context, key string) ([]byte, error) {
	raw, err := os.ReadFile(s.Path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return raw, nil
}

func (s *FileStore) SaveConfig(_ context.Context, key string, doc []byte) error {
	tmp, err := os.CreateTemp(s.dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(doc); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", key, err)
	}

	s.mu.Lock()
	s.written[key] = append([]byte(nil), doc...)
	s.mu.Unlock()

	if err := os.Rename(tmp.Name(), s.Path(key)); err != nil {
		return fmt.Errorf("rename %s: %w", key, err)
	}
	return nil
}

// Keys lists the document keys present in the directory.
func (s *FileStore) Keys() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}
	var keys []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, fileExt) || strings.HasPrefix(name, ".") {
			continue
		}
		key, err := url.PathUnescape(strings.TrimSuffix(name, fileExt))
		if err != nil {
			continue
		}
		keys = append(keys, key)
	}
	return keys, nil
}

func (s *FileStore) Close() error { return nil }

// Watch calls onChange with the key of every document changed on disk by
// someone other than this store, until ctx is done. Bursts of events for one
// file are debounced.
func (s *FileStore) Watch(ctx context.Context, onChange func(key string)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(s.dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", s.dir, err)
	}

	go func() {
		defer watcher.Close()

		const debounce = 200 * time.Millisecond
		timers := make(map[string]*time.Timer)
		defer func() {
			for _, t := range timers {
				t.Stop()
			}
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
					continue
				}
				name := filepath.Base(event.Name)
				if strings.HasPrefix(name, ".") || !strings.HasSuffix(name, fileExt) {
					continue
				}
				key, err := url.PathUnescape(strings.TrimSuffix(name, fileExt))
				if err != nil {
					continue
				}
				if t, ok := timers[key]; ok {
					t.Stop()
				}
				timers[key] = time.AfterFunc(debounce, func() {
					if s.external(key) {
						onChange(key)
					}
				})
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Printf("[FILESTORE] watcher error: %v", err)
			}
		}
	}()
	return nil
}

// external reports whether the file for key differs from what this store
// last wrote.
func (s *FileStore) external(key string) bool {
	raw, err := os.ReadFile(s.Path(key))
	if err != nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	own, ok := s.written[key]
	return !ok || !bytes.Equal(own, raw)
}
