// Package extedit lets an external text editor edit the content of a canvas
// element. The content is checked out to a file, the file is watched, and
// every write is reported back so the canvas previews it live.
package extedit

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"pageeditor/internal/domain"
)

// ContentHandler is called with the new content of a checked-out element
// each time its file is written.
type ContentHandler func(elementID, content string)

// Bridge tracks checked-out element files in one directory.
type Bridge struct {
	dir      string
	watcher  *fsnotify.Watcher
	onChange ContentHandler

	mu       sync.RWMutex
	files    map[string]string // path -> element id
	lastSeen map[string]string // path -> content last reported or written
	done     chan struct{}
}

// New creates a Bridge that keeps its files in dir.
func New(dir string, onChange ContentHandler) (*Bridge, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create checkout directory: %w", err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	b := &Bridge{
		dir:      dir,
		watcher:  watcher,
		onChange: onChange,
		files:    make(map[string]string),
		lastSeen: make(map[string]string),
		done:     make(chan struct{}),
	}
	go b.watchLoop()
	return b, nil
}

// Checkout writes content to a file for elementID and starts reporting
// changes to it. It returns the file path to open in the editor.
func (b *Bridge) Checkout(elementID string, kind domain.ElementKind, language, content string) (string, error) {
	path := filepath.Join(b.dir, fileName(elementID, kind, language))
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}

	b.mu.Lock()
	b.files[path] = elementID
	b.lastSeen[path] = strings.TrimSpace(content)
	b.mu.Unlock()
	return path, nil
}

// Release stops reporting changes for elementID, removes its file and
// returns the file's final content.
func (b *Bridge) Release(elementID string) (string, error) {
	b.mu.Lock()
	var path string
	for p, id := range b.files {
		if id == elementID {
			path = p
			delete(b.files, p)
			delete(b.lastSeen, p)
			break
		}
	}
	b.mu.Unlock()
	if path == "" {
		return "", fmt.Errorf("element %s is not checked out", elementID)
	}

	content, err := os.ReadFile(path)
	os.Remove(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return strings.TrimSpace(string(content)), nil
}

// CheckedOut returns the element ids with an open file.
func (b *Bridge) CheckedOut() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	ids := make([]string, 0, len(b.files))
	for _, id := range b.files {
		ids = append(ids, id)
	}
	return ids
}

// Close stops the watcher. Checked-out files are left on disk.
func (b *Bridge) Close() error {
	err := b.watcher.Close()
	<-b.done
	return err
}

// debounce lets editors that truncate then write settle before the file is
// read.
const debounce = 100 * time.Millisecond

func (b *Bridge) watchLoop() {
	defer close(b.done)
	timers := make(map[string]*time.Timer)
	defer func() {
		for _, t := range timers {
			t.Stop()
		}
	}()

	for {
		select {
		case event, ok := <-b.watcher.Events:
			if !ok {
				return
			}
			// Editors that save by rename show up as Create.
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			path := filepath.Clean(event.Name)
			if t, ok := timers[path]; ok {
				t.Stop()
			}
			timers[path] = time.AfterFunc(debounce, func() { b.report(path) })
		case err, ok := <-b.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("[EXTEDIT] watcher error: %v", err)
		}
	}
}

func (b *Bridge) report(path string) {
	b.mu.RLock()
	elementID, watched := b.files[path]
	b.mu.RUnlock()
	if !watched {
		return
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		log.Printf("[EXTEDIT] read %s: %v", path, err)
		return
	}
	content := strings.TrimSpace(string(raw))

	b.mu.Lock()
	unchanged := b.lastSeen[path] == content
	b.lastSeen[path] = content
	b.mu.Unlock()

	if !unchanged && b.onChange != nil {
		b.onChange(elementID, content)
	}
}

var languageExt = map[string]string{
	"go":         ".go",
	"javascript": ".js",
	"typescript": ".ts",
	"python":     ".py",
	"json":       ".json",
	"sql":        ".sql",
	"html":       ".html",
	"css":        ".css",
	"bash":       ".sh",
	"markdown":   ".md",
	"yaml":       ".yaml",
	"lua":        ".lua",
}

// fileName picks an extension so the editor applies the right syntax.
func fileName(elementID string, kind domain.ElementKind, language string) string {
	ext := ".txt"
	switch kind {
	case domain.ElementText:
		ext = ".md"
	case domain.ElementCode:
		if e, ok := languageExt[strings.ToLower(language)]; ok {
			ext = e
		}
	}
	safe := strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == os.PathSeparator {
			return '_'
		}
		return r
	}, elementID)
	return "element-" + safe + ext
}
