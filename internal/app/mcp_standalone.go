package app

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pageeditor/internal/config"
	"pageeditor/internal/editor"
	mcpserver "pageeditor/internal/mcp"
	"pageeditor/internal/service"
	"pageeditor/internal/storage"
)

// noopEmitter is a no-op EventEmitter used in MCP-only mode (no Wails frontend).
type noopEmitter struct{}

func (noopEmitter) Emit(_ context.Context, _ string, _ any) {}

// ServeMCP runs the app as a standalone MCP server on stdin/stdout with no GUI.
// Every edit is saved right away and destructive tools wait for approval
// from the desktop app through the shared database.
func ServeMCP() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(config.DefaultPath())
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := storage.New(cfg.LocalDBPath())
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	backend, err := openBackend(ctx, cfg, db)
	if err != nil {
		log.Fatalf("Failed to open %s backend: %v", cfg.Persistence.Driver, err)
	}
	defer backend.Close()

	emitter := noopEmitter{}
	editors := service.NewEditorService(ctx, backend, emitter,
		editor.WithHistoryLimit(cfg.Editor.HistoryLimit),
	)

	mcpSrv := mcpserver.New(mcpserver.Deps{
		Emitter:       emitter,
		Editors:       editors,
		DefaultKey:    cfg.Editor.DocumentKey,
		Approvals:     storage.NewApprovalStore(db),
		SaveAfterEdit: true,
	})

	log.Println("[MCP] Starting standalone stdio server...")
	serveErr := mcpSrv.ServeStdio()

	flushCtx, flushCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer flushCancel()
	if err := editors.Shutdown(flushCtx); err != nil {
		log.Printf("[MCP] flush on exit: %v", err)
	}
	if serveErr != nil {
		log.Fatalf("MCP server error: %v", serveErr)
	}
}
