package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"pageeditor/internal/command"
	"pageeditor/internal/domain"
)

func (s *Server) registerElementTools() {
	kinds := make([]string, len(domain.ElementKinds))
	for i, k := range domain.ElementKinds {
		kinds[i] = string(k)
	}

	// ── add_element ────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("add_element",
		mcp.WithDescription("Add an element to the page. Position is auto-calculated if not provided."),
		mcp.WithString("kind",
			mcp.Description("Element kind: "+strings.Join(kinds, ", ")),
			mcp.Required(),
		),
		mcp.WithString("props", mcp.Description(`Initial props as a JSON object, e.g. {"content":"Hello"} (optional, kind defaults fill the rest)`)),
		mcp.WithNumber("x", mcp.Description("X position (optional, auto-layout if omitted)")),
		mcp.WithNumber("y", mcp.Description("Y position (optional, auto-layout if omitted)")),
		mcp.WithNumber("width", mcp.Description("Width (optional, uses kind default)")),
		mcp.WithNumber("height", mcp.Description("Height (optional, uses kind default)")),
		mcp.WithString("key", mcp.Description("Document key (optional, defaults to active document)")),
	), s.handleAddElement)

	// ── update_element ─────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("update_element",
		mcp.WithDescription("Set one prop of an element. Nested props use dot paths (style.color)."),
		mcp.WithString("id", mcp.Description("Element ID"), mcp.Required()),
		mcp.WithString("path", mcp.Description("Prop path, e.g. content, x, style.color"), mcp.Required()),
		mcp.WithString("value", mcp.Description("New value as JSON (numbers, objects, arrays) or plain text"), mcp.Required()),
		mcp.WithString("key", mcp.Description("Document key (optional, defaults to active document)")),
	), s.handleUpdateElement)

	// ── remove_element (destructive) ───────────────────
	s.mcp.AddTool(mcp.NewTool("remove_element",
		mcp.WithDescription("🛑 DESTRUCTIVE: Remove an element. Undoable. Requires user approval."),
		mcp.WithString("id", mcp.Description("Element ID to remove"), mcp.Required()),
		mcp.WithString("key", mcp.Description("Document key (optional, defaults to active document)")),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{DestructiveHint: boolPtr(true)}),
	), s.handleRemoveElement)

	// ── duplicate_element ──────────────────────────────
	s.mcp.AddTool(mcp.NewTool("duplicate_element",
		mcp.WithDescription("Copy an element one grid step down and right of the original"),
		mcp.WithString("id", mcp.Description("Element ID"), mcp.Required()),
		mcp.WithString("key", mcp.Description("Document key (optional, defaults to active document)")),
	), s.handleDuplicateElement)

	// ── reorder_elements ───────────────────────────────
	s.mcp.AddTool(mcp.NewTool("reorder_elements",
		mcp.WithDescription("Set the render order. Must list every element exactly once; later elements draw on top."),
		mcp.WithString("ids", mcp.Description("Comma-separated element IDs in the new order"), mcp.Required()),
		mcp.WithString("key", mcp.Description("Document key (optional, defaults to active document)")),
	), s.handleReorderElements)

	// ── move_element ───────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("move_element",
		mcp.WithDescription("Move one element to a position in the render order"),
		mcp.WithString("id", mcp.Description("Element ID"), mcp.Required()),
		mcp.WithNumber("index", mcp.Description("Target index, clamped to the element count"), mcp.Required()),
		mcp.WithString("key", mcp.Description("Document key (optional, defaults to active document)")),
	), s.handleMoveElement)

	// ── arrange_elements ───────────────────────────────
	s.mcp.AddTool(mcp.NewTool("arrange_elements",
		mcp.WithDescription("Lay elements out in tidy rows on the grid, in the given order"),
		mcp.WithString("ids", mcp.Description("Comma-separated element IDs (optional, defaults to all)")),
		mcp.WithString("key", mcp.Description("Document key (optional, defaults to active document)")),
	), s.handleArrangeElements)
}

func (s *Server) handleAddElement(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	kind := req.GetString("kind", "")
	if kind == "" {
		return nil, fmt.Errorf("kind is required")
	}
	props, err := parseObject(req.GetString("props", ""))
	if err != nil {
		return nil, fmt.Errorf("props: %w", err)
	}
	args := req.GetArguments()
	for _, name := range []string{domain.PropX, domain.PropY, domain.PropWidth, domain.PropHeight} {
		if v, ok := args[name].(float64); ok {
			if props == nil {
				props = map[string]any{}
			}
			props[name] = v
		}
	}
	return s.dispatch(ctx, req, command.IntentAddElement, command.Args{Kind: kind, Props: props})
}

func (s *Server) handleUpdateElement(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("id", "")
	path := req.GetString("path", "")
	if id == "" || path == "" {
		return nil, fmt.Errorf("id and path are required")
	}
	return s.dispatch(ctx, req, command.IntentUpdateElement, command.Args{
		ID:    id,
		Path:  path,
		Value: parseValue(req.GetString("value", "")),
	})
}

func (s *Server) handleRemoveElement(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("id", "")
	if id == "" {
		return nil, fmt.Errorf("id is required")
	}
	store, err := s.storeFor(ctx, req)
	if err != nil {
		return nil, err
	}
	el, err := store.Element(id)
	if err != nil {
		return nil, err
	}

	meta, _ := json.Marshal(map[string]any{"elementIds": []string{id}})
	desc := fmt.Sprintf("Remove %s element %s", el.Kind, id)
	if err := s.approval.Request(ctx, "remove_element", desc, string(meta)); err != nil {
		return nil, err
	}
	return s.dispatch(ctx, req, command.IntentRemoveElement, command.Args{ID: id})
}

func (s *Server) handleDuplicateElement(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("id", "")
	if id == "" {
		return nil, fmt.Errorf("id is required")
	}
	return s.dispatch(ctx, req, command.IntentDuplicate, command.Args{ID: id})
}

func (s *Server) handleReorderElements(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ids := splitIDs(req.GetString("ids", ""))
	if len(ids) == 0 {
		return nil, fmt.Errorf("ids is required")
	}
	return s.dispatch(ctx, req, command.IntentReorderElements, command.Args{IDs: ids})
}

func (s *Server) handleMoveElement(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("id", "")
	index, ok := req.GetArguments()["index"].(float64)
	if id == "" || !ok {
		return nil, fmt.Errorf("id and index are required")
	}
	return s.dispatch(ctx, req, command.IntentMoveElement, command.Args{ID: id, Index: int(index)})
}

func (s *Server) handleArrangeElements(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.dispatch(ctx, req, command.IntentArrange, command.Args{IDs: splitIDs(req.GetString("ids", ""))})
}
