package mcpserver

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"pageeditor/internal/command"
	"pageeditor/internal/editor"
	"pageeditor/internal/service"
	"pageeditor/internal/storage"
)

// EventDocumentChanged is emitted after a tool call changed a document.
const EventDocumentChanged = "mcp:document-changed"

// Server is the MCP server for the page editor. It exposes the editor
// command surface as tools and documents as resources so AI agents can
// build pages.
type Server struct {
	mcp      *server.MCPServer
	emitter  EventEmitter
	approval *ApprovalQueue
	editors  *service.EditorService

	// saveAfterEdit persists every change right away so another process
	// sharing the backend sees it.
	saveAfterEdit bool

	mu        sync.Mutex
	activeKey string
}

// Deps holds everything the App layer passes to the MCP server.
type Deps struct {
	Emitter    EventEmitter
	Editors    *service.EditorService
	DefaultKey string
	// Approvals enables SQLite-based approval for standalone mode.
	Approvals     *storage.ApprovalStore
	SaveAfterEdit bool
}

// New creates and configures the MCP server with all tools, resources and
// prompts.
func New(deps Deps) *Server {
	approval := NewApprovalQueue(deps.Emitter)
	if deps.Approvals != nil {
		approval.SetStore(deps.Approvals)
	}
	s := &Server{
		emitter:       deps.Emitter,
		approval:      approval,
		editors:       deps.Editors,
		saveAfterEdit: deps.SaveAfterEdit,
		activeKey:     deps.DefaultKey,
	}

	s.mcp = server.NewMCPServer(
		"pageeditor-mcp",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(true, false),
		server.WithPromptCapabilities(true),
	)

	s.registerDocumentTools()
	s.registerElementTools()
	s.registerHistoryTools()
	s.registerResources()
	s.registerPrompts()

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	log.Println("[MCP] Starting stdio server...")
	return server.ServeStdio(s.mcp)
}

// Approve forwards a user approval to the approval queue.
func (s *Server) Approve(actionID string) bool {
	return s.approval.Approve(actionID)
}

// Reject forwards a user rejection to the approval queue.
func (s *Server) Reject(actionID string) bool {
	return s.approval.Reject(actionID)
}

// ── Helpers ────────────────────────────────────────────────

// resolveKey returns the document key from tool args or falls back to the
// active document.
func (s *Server) resolveKey(req mcp.CallToolRequest) (string, error) {
	if key := req.GetString("key", ""); key != "" {
		return key, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.activeKey != "" {
		return s.activeKey, nil
	}
	return "", fmt.Errorf("no key provided and no active document set (use open_document first)")
}

func (s *Server) storeFor(ctx context.Context, req mcp.CallToolRequest) (*editor.Store, error) {
	key, err := s.resolveKey(req)
	if err != nil {
		return nil, err
	}
	return s.editors.Open(ctx, key)
}

// dispatch runs intent against the document named by req and reports the
// resulting session state.
func (s *Server) dispatch(ctx context.Context, req mcp.CallToolRequest, intent command.Intent, args command.Args) (*mcp.CallToolResult, error) {
	store, err := s.storeFor(ctx, req)
	if err != nil {
		return nil, err
	}
	res, err := command.NewDispatcher(store).Dispatch(ctx, intent, args)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", intent, err)
	}
	if res.Applied && mutates(intent) {
		if err := s.afterEdit(ctx, store); err != nil {
			return nil, err
		}
		res.State = store.Snapshot()
	}
	return jsonResult(res)
}

func mutates(intent command.Intent) bool {
	switch intent {
	case command.IntentSave, command.IntentExport:
		return false
	}
	return true
}

// afterEdit notifies the frontend and, in standalone mode, persists the
// change.
func (s *Server) afterEdit(ctx context.Context, store *editor.Store) error {
	if s.saveAfterEdit {
		if err := store.Save(ctx); err != nil {
			return err
		}
		if err := store.Wait(ctx); err != nil {
			return err
		}
	}
	if s.emitter != nil {
		s.emitter.Emit(ctx, EventDocumentChanged, map[string]string{"key": store.Key()})
	}
	return nil
}
