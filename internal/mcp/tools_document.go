package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"pageeditor/internal/command"
	"pageeditor/internal/docpath"
)

func (s *Server) registerDocumentTools() {
	// ── open_document ──────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("open_document",
		mcp.WithDescription("Open a document and make it the active one for subsequent tool calls. Missing documents start from defaults."),
		mcp.WithString("key", mcp.Description("Document key"), mcp.Required()),
	), s.handleOpenDocument)

	// ── list_documents ─────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("list_documents",
		mcp.WithDescription("List the open documents and which one is active"),
	), s.handleListDocuments)

	// ── get_document ───────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("get_document",
		mcp.WithDescription("Return the full document: settings and every element with its props"),
		mcp.WithString("key", mcp.Description("Document key (optional, defaults to active document)")),
	), s.handleGetDocument)

	// ── get_value ──────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("get_value",
		mcp.WithDescription("Read one value by dot path, e.g. settings.theme or elements.0.props.content"),
		mcp.WithString("path", mcp.Description("Dot path into the document"), mcp.Required()),
		mcp.WithString("key", mcp.Description("Document key (optional, defaults to active document)")),
	), s.handleGetValue)

	// ── get_state ──────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("get_state",
		mcp.WithDescription("Return undo/redo availability, unsaved changes and save status"),
		mcp.WithString("key", mcp.Description("Document key (optional, defaults to active document)")),
	), s.handleGetState)

	// ── set_theme ──────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("set_theme",
		mcp.WithDescription("Set the page theme"),
		mcp.WithString("theme", mcp.Description("Theme name"), mcp.Required()),
		mcp.WithString("key", mcp.Description("Document key (optional, defaults to active document)")),
	), s.handleSetTheme)

	// ── toggle_grid ────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("toggle_grid",
		mcp.WithDescription("Show or hide the canvas grid"),
		mcp.WithString("key", mcp.Description("Document key (optional, defaults to active document)")),
	), s.handleToggleGrid)

	// ── export_document ────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("export_document",
		mcp.WithDescription("Export the document as JSON suitable for import_document"),
		mcp.WithString("key", mcp.Description("Document key (optional, defaults to active document)")),
	), s.handleExportDocument)

	// ── import_document (destructive) ──────────────────
	s.mcp.AddTool(mcp.NewTool("import_document",
		mcp.WithDescription("🛑 DESTRUCTIVE: Replace the whole document with the given JSON. Missing fields take defaults. Undoable. Requires user approval."),
		mcp.WithString("document", mcp.Description("Document JSON"), mcp.Required()),
		mcp.WithString("key", mcp.Description("Document key (optional, defaults to active document)")),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{DestructiveHint: boolPtr(true)}),
	), s.handleImportDocument)

	// ── reset_document (destructive) ───────────────────
	s.mcp.AddTool(mcp.NewTool("reset_document",
		mcp.WithDescription("🛑 DESTRUCTIVE: Reset the document to defaults, removing every element. Undoable. Requires user approval."),
		mcp.WithString("key", mcp.Description("Document key (optional, defaults to active document)")),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{DestructiveHint: boolPtr(true)}),
	), s.handleResetDocument)
}

func (s *Server) handleOpenDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	key := req.GetString("key", "")
	if key == "" {
		return nil, fmt.Errorf("key is required")
	}
	store, err := s.editors.Open(ctx, key)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.activeKey = key
	s.mu.Unlock()
	return jsonResult(store.Snapshot())
}

func (s *Server) handleListDocuments(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.mu.Lock()
	active := s.activeKey
	s.mu.Unlock()
	return jsonResult(map[string]any{
		"active": active,
		"open":   s.editors.Keys(),
	})
}

func (s *Server) handleGetDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	store, err := s.storeFor(ctx, req)
	if err != nil {
		return nil, err
	}
	return jsonResult(store.Document())
}

func (s *Server) handleGetValue(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path := req.GetString("path", "")
	if path == "" {
		return nil, fmt.Errorf("path is required")
	}
	store, err := s.storeFor(ctx, req)
	if err != nil {
		return nil, err
	}
	v, err := store.Value(path)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", path, err)
	}
	if v == docpath.NotFound {
		return nil, fmt.Errorf("get %s: no value at path", path)
	}
	return jsonResult(v)
}

func (s *Server) handleGetState(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	store, err := s.storeFor(ctx, req)
	if err != nil {
		return nil, err
	}
	return jsonResult(store.Snapshot())
}

func (s *Server) handleSetTheme(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.dispatch(ctx, req, command.IntentSetTheme, command.Args{Theme: req.GetString("theme", "")})
}

func (s *Server) handleToggleGrid(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.dispatch(ctx, req, command.IntentToggleGrid, command.Args{})
}

func (s *Server) handleExportDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	store, err := s.storeFor(ctx, req)
	if err != nil {
		return nil, err
	}
	raw, err := store.ExportDocument()
	if err != nil {
		return nil, err
	}
	return textResult(string(raw)), nil
}

func (s *Server) handleImportDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	doc := req.GetString("document", "")
	if doc == "" {
		return nil, fmt.Errorf("document is required")
	}
	key, err := s.resolveKey(req)
	if err != nil {
		return nil, err
	}
	if err := s.approval.Request(ctx, "import_document", fmt.Sprintf("Replace document %q with imported JSON", key), ""); err != nil {
		return nil, err
	}
	return s.dispatch(ctx, req, command.IntentImport, command.Args{Document: doc})
}

func (s *Server) handleResetDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	key, err := s.resolveKey(req)
	if err != nil {
		return nil, err
	}
	if err := s.approval.Request(ctx, "reset_document", fmt.Sprintf("Reset document %q to defaults", key), ""); err != nil {
		return nil, err
	}
	return s.dispatch(ctx, req, command.IntentReset, command.Args{})
}
