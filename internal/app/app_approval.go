package app

import (
	"context"
	"time"

	"pageeditor/internal/storage"
)

// ============================================================
// MCP approvals
// ============================================================
//
// The standalone MCP server (`pageeditor mcp`) records destructive actions
// in the shared SQLite file and waits for the user to resolve them here.

// ListPendingApprovals returns the MCP actions waiting for the user.
func (a *App) ListPendingApprovals() ([]storage.Approval, error) {
	ctx, cancel := context.WithTimeout(a.ctx, 5*time.Second)
	defer cancel()
	return a.approvals.ListPending(ctx)
}

// ResolveApproval approves or rejects a pending MCP action.
func (a *App) ResolveApproval(id string, approved bool) error {
	ctx, cancel := context.WithTimeout(a.ctx, 5*time.Second)
	defer cancel()
	return a.approvals.Resolve(ctx, id, approved)
}
