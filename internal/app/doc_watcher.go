package app

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/samber/lo"

	mcpserver "pageeditor/internal/mcp"
	"pageeditor/internal/service"
	"pageeditor/internal/storage"
)

// docWatcher polls for changes made by the standalone MCP process: documents
// saved to the shared database and approvals waiting for the user.
type docWatcher struct {
	editors   *service.EditorService
	approvals *storage.ApprovalStore
	emitter   service.EventEmitter
	// reload is false when documents live in a backend with its own watcher.
	reload bool

	mu      sync.Mutex
	emitted map[string]bool // approval ids already sent to the frontend
}

func newDocWatcher(editors *service.EditorService, approvals *storage.ApprovalStore, emitter service.EventEmitter, reload bool) *docWatcher {
	return &docWatcher{
		editors:   editors,
		approvals: approvals,
		emitter:   emitter,
		reload:    reload,
		emitted:   make(map[string]bool),
	}
}

// Run checks every interval until ctx is done.
func (w *docWatcher) Run(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.check(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (w *docWatcher) check(ctx context.Context) {
	if w.reload {
		for _, key := range w.editors.Keys() {
			if err := w.editors.Reload(ctx, key); err != nil {
				log.Printf("[WATCH] reload %s: %v", key, err)
			}
		}
	}
	if w.approvals != nil {
		w.checkApprovals(ctx)
	}
}

// checkApprovals emits each pending approval once and dismisses the ones
// that were resolved or timed out.
func (w *docWatcher) checkApprovals(ctx context.Context) {
	pending, err := w.approvals.ListPending(ctx)
	if err != nil {
		log.Printf("[WATCH] list approvals: %v", err)
		return
	}

	w.mu.Lock()
	fresh := lo.Filter(pending, func(a storage.Approval, _ int) bool {
		return !w.emitted[a.ID]
	})
	live := lo.SliceToMap(pending, func(a storage.Approval) (string, bool) {
		return a.ID, true
	})
	var gone []string
	for id := range w.emitted {
		if !live[id] {
			delete(w.emitted, id)
			gone = append(gone, id)
		}
	}
	for _, a := range fresh {
		w.emitted[a.ID] = true
	}
	w.mu.Unlock()

	for _, a := range fresh {
		w.emitter.Emit(ctx, mcpserver.EventApprovalRequired, mcpserver.PendingAction{
			ID:          a.ID,
			Tool:        a.Tool,
			Description: a.Description,
			CreatedAt:   a.CreatedAt,
			Metadata:    a.Metadata,
		})
	}
	for _, id := range gone {
		w.emitter.Emit(ctx, mcpserver.EventApprovalDismissed, map[string]string{"id": id})
	}
}
