package app

import (
	"context"
	"os/exec"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	wailsRuntime "github.com/wailsapp/wails/v2/pkg/runtime"

	"pageeditor/internal/command"
	"pageeditor/internal/config"
	"pageeditor/internal/editor"
	"pageeditor/internal/extedit"
	"pageeditor/internal/persist"
	"pageeditor/internal/secret"
	"pageeditor/internal/service"
	"pageeditor/internal/storage"
	"pageeditor/internal/terminal"
)

// App is the main Wails application struct.
// All exported methods are available as Wails bindings.
type App struct {
	ctx context.Context
	cfg config.Config

	db        *storage.DB
	backend   persist.Backend
	editors   *service.EditorService
	window    *service.WindowSettingsService
	approvals *storage.ApprovalStore
	keymap    command.Keymap
	term      *terminal.Manager
	ext       *extedit.Bridge
	watcher   *docWatcher
	stopWatch context.CancelFunc

	mu      sync.Mutex
	key     string // active document
	editing editingTarget
}

// editingTarget is the element open in the external editor.
type editingTarget struct {
	key string
	id  string
}

// wailsEmitter forwards service events to the frontend.
type wailsEmitter struct{}

func (wailsEmitter) Emit(ctx context.Context, event string, data any) {
	wailsRuntime.EventsEmit(ctx, event, data)
}

// New creates a new App.
func New() *App {
	return &App{keymap: command.DefaultKeymap()}
}

// Startup is called when the app starts.
func (a *App) Startup(ctx context.Context) {
	a.ctx = ctx

	if runtime.GOOS == "darwin" {
		// Disable "Press and Hold" so key repeat works in the embedded editor.
		exec.Command("defaults", "write", "com.wails.pageeditor", "ApplePressAndHoldEnabled", "-bool", "false").Run()
	}

	cfg, err := config.Load(config.DefaultPath())
	if err != nil {
		wailsRuntime.LogFatalf(ctx, "Failed to load config: %v", err)
		return
	}
	a.cfg = cfg

	db, err := storage.New(cfg.LocalDBPath())
	if err != nil {
		wailsRuntime.LogFatalf(ctx, "Failed to open database: %v", err)
		return
	}
	a.db = db
	a.approvals = storage.NewApprovalStore(db)
	a.window = service.NewWindowSettingsService(storage.NewSettingsStore(db))

	backend, err := openBackend(ctx, cfg, db)
	if err != nil {
		wailsRuntime.LogFatalf(ctx, "Failed to open %s backend: %v", cfg.Persistence.Driver, err)
		return
	}
	a.backend = backend
	wailsRuntime.LogInfof(ctx, "[STORAGE] documents in %s backend", cfg.Persistence.Driver)

	a.editors = service.NewEditorService(ctx, backend, wailsEmitter{},
		editor.WithHistoryLimit(cfg.Editor.HistoryLimit),
	)
	a.key = cfg.Editor.DocumentKey
	if _, err := a.editors.Open(ctx, a.key); err != nil {
		wailsRuntime.LogErrorf(ctx, "Failed to open document %q: %v", a.key, err)
	}
	if err := a.editors.StartAutosave(cfg.Editor.Autosave); err != nil {
		wailsRuntime.LogErrorf(ctx, "Autosave disabled: %v", err)
	}

	a.startWatching(ctx)

	// Embedded terminal: PTY output → base64 → frontend event
	a.term = terminal.New(cfg.Editor.ExternalEditor, terminalDataCallback(a), terminalExitCallback(a))
	ext, err := extedit.New(filepath.Join(cfg.DataDir, "checkout"), a.onExternalEdit)
	if err != nil {
		wailsRuntime.LogErrorf(ctx, "Failed to create external editor bridge: %v", err)
	}
	a.ext = ext

	size := a.window.LoadWindowSize(ctx)
	wailsRuntime.WindowSetSize(ctx, size.Width, size.Height)
}

// openBackend shares the local SQLite file when documents live there and
// opens the configured backend otherwise.
func openBackend(ctx context.Context, cfg config.Config, db *storage.DB) (persist.Backend, error) {
	if cfg.UsesLocalDB() {
		return persist.Shared(db), nil
	}
	return persist.Open(ctx, cfg.Persistence, secret.Default())
}

// startWatching picks up documents changed by other processes: file
// backends through fsnotify, the local database (shared with the
// standalone MCP server) by polling.
func (a *App) startWatching(ctx context.Context) {
	watchCtx, cancel := context.WithCancel(ctx)
	a.stopWatch = cancel

	if fs, ok := a.backend.(*persist.FileStore); ok {
		err := fs.Watch(watchCtx, func(key string) {
			if err := a.editors.Reload(watchCtx, key); err != nil {
				wailsRuntime.LogErrorf(ctx, "[STORE] reload %s: %v", key, err)
			}
		})
		if err != nil {
			wailsRuntime.LogErrorf(ctx, "Failed to watch documents: %v", err)
		}
	}

	a.watcher = newDocWatcher(a.editors, a.approvals, wailsEmitter{}, a.cfg.UsesLocalDB())
	go a.watcher.Run(watchCtx, 2*time.Second)
}

// Shutdown is called when the app is closing.
func (a *App) Shutdown(ctx context.Context) {
	if a.stopWatch != nil {
		a.stopWatch()
	}
	if a.term != nil {
		a.term.Close()
	}
	if a.ext != nil {
		a.ext.Close()
	}
	if a.editors != nil {
		flushCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		if err := a.editors.Shutdown(flushCtx); err != nil {
			wailsRuntime.LogErrorf(ctx, "Failed to save documents on exit: %v", err)
		}
		cancel()
	}
	if a.backend != nil {
		a.backend.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
}

// ============================================================
// Window
// ============================================================

// GetWindowSize returns the saved window size.
func (a *App) GetWindowSize() service.WindowSize {
	return a.window.LoadWindowSize(a.ctx)
}

// SaveWindowSize remembers the window size for the next start.
func (a *App) SaveWindowSize(width, height int) error {
	return a.window.SaveWindowSize(a.ctx, width, height)
}
