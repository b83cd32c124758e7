package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"pageeditor/internal/command"
)

func (s *Server) registerHistoryTools() {
	// ── undo ───────────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("undo",
		mcp.WithDescription("Undo the last change. applied is false when there was nothing to undo."),
		mcp.WithString("key", mcp.Description("Document key (optional, defaults to active document)")),
	), s.handleUndo)

	// ── redo ───────────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("redo",
		mcp.WithDescription("Redo the last undone change. applied is false when there was nothing to redo."),
		mcp.WithString("key", mcp.Description("Document key (optional, defaults to active document)")),
	), s.handleRedo)

	// ── save ───────────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("save",
		mcp.WithDescription("Persist unsaved changes. A clean document is not written."),
		mcp.WithString("key", mcp.Description("Document key (optional, defaults to active document)")),
	), s.handleSave)

	// ── list_revisions ─────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("list_revisions",
		mcp.WithDescription("List saved revisions of a document, newest first"),
		mcp.WithString("key", mcp.Description("Document key (optional, defaults to active document)")),
	), s.handleListRevisions)

	// ── restore_revision (destructive) ─────────────────
	s.mcp.AddTool(mcp.NewTool("restore_revision",
		mcp.WithDescription("🛑 DESTRUCTIVE: Replace the document with a saved revision. Undoable. Requires user approval."),
		mcp.WithString("revisionId", mcp.Description("Revision ID from list_revisions"), mcp.Required()),
		mcp.WithString("key", mcp.Description("Document key (optional, defaults to active document)")),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{DestructiveHint: boolPtr(true)}),
	), s.handleRestoreRevision)
}

func (s *Server) handleUndo(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.dispatch(ctx, req, command.IntentUndo, command.Args{})
}

func (s *Server) handleRedo(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.dispatch(ctx, req, command.IntentRedo, command.Args{})
}

func (s *Server) handleSave(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.dispatch(ctx, req, command.IntentSave, command.Args{})
}

func (s *Server) handleListRevisions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	key, err := s.resolveKey(req)
	if err != nil {
		return nil, err
	}
	revs, err := s.editors.ListRevisions(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("list revisions: %w", err)
	}
	return jsonResult(revs)
}

func (s *Server) handleRestoreRevision(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	revID := req.GetString("revisionId", "")
	if revID == "" {
		return nil, fmt.Errorf("revisionId is required")
	}
	store, err := s.storeFor(ctx, req)
	if err != nil {
		return nil, err
	}
	key := store.Key()
	if err := s.approval.Request(ctx, "restore_revision", fmt.Sprintf("Restore %q to revision %s", key, revID), ""); err != nil {
		return nil, err
	}
	if err := s.editors.RestoreRevision(ctx, key, revID); err != nil {
		return nil, err
	}
	if err := s.afterEdit(ctx, store); err != nil {
		return nil, err
	}
	return jsonResult(store.Snapshot())
}
