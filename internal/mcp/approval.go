package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"pageeditor/internal/storage"
)

// EventEmitter allows the server to notify the frontend.
type EventEmitter interface {
	Emit(ctx context.Context, event string, data any)
}

// Approval events sent to the frontend.
const (
	EventApprovalRequired  = "mcp:approval-required"
	EventApprovalDismissed = "mcp:approval-dismissed"
)

// ErrRejected is returned when the user rejects or ignores a destructive tool
// call.
var ErrRejected = errors.New("action rejected")

// PendingAction is a destructive operation awaiting user approval.
type PendingAction struct {
	ID          string `json:"id"`
	Tool        string `json:"tool"`
	Description string `json:"description"`
	CreatedAt   string `json:"createdAt"`
	Metadata    string `json:"metadata"` // JSON with extra context (e.g. element ids)
}

// ApprovalQueue asks the user before destructive MCP tool calls run.
// In-process it signals the frontend with an event and waits on a channel.
// With a store set (standalone MCP) it writes the request to SQLite and
// polls until the desktop app resolves it.
type ApprovalQueue struct {
	mu      sync.Mutex
	pending map[string]chan bool
	emitter EventEmitter
	store   *storage.ApprovalStore

	timeout   time.Duration
	pollEvery time.Duration
}

func NewApprovalQueue(emitter EventEmitter) *ApprovalQueue {
	return &ApprovalQueue{
		pending:   make(map[string]chan bool),
		emitter:   emitter,
		timeout:   120 * time.Second,
		pollEvery: 500 * time.Millisecond,
	}
}

// SetStore switches the queue to cross-process mode.
func (q *ApprovalQueue) SetStore(store *storage.ApprovalStore) {
	q.store = store
}

// Request blocks until the action is approved, rejected, timed out or ctx
// is done. Anything but approval returns an error wrapping ErrRejected or
// the context error.
func (q *ApprovalQueue) Request(ctx context.Context, tool, description, metadata string) error {
	if metadata == "" {
		metadata = "{}"
	}
	id := uuid.NewString()
	if q.store != nil {
		return q.requestViaStore(ctx, id, tool, description, metadata)
	}
	return q.requestViaChannel(ctx, id, tool, description, metadata)
}

func (q *ApprovalQueue) requestViaStore(ctx context.Context, id, tool, description, metadata string) error {
	err := q.store.Create(ctx, storage.Approval{ID: id, Tool: tool, Description: description, Metadata: metadata})
	if err != nil {
		return err
	}
	// The row is ours to remove whatever the outcome.
	defer q.store.Delete(context.WithoutCancel(ctx), id)

	deadline := time.NewTimer(q.timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(q.pollEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			status, err := q.store.Status(ctx, id)
			if err != nil {
				continue
			}
			switch status {
			case storage.ApprovalApproved:
				return nil
			case storage.ApprovalRejected:
				return fmt.Errorf("%w by user: %s", ErrRejected, tool)
			}
		case <-deadline.C:
			return fmt.Errorf("%w: timed out after %s: %s", ErrRejected, q.timeout, tool)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (q *ApprovalQueue) requestViaChannel(ctx context.Context, id, tool, description, metadata string) error {
	ch := make(chan bool, 1)

	q.mu.Lock()
	q.pending[id] = ch
	q.mu.Unlock()
	defer q.cleanup(id)

	q.emitter.Emit(ctx, EventApprovalRequired, PendingAction{
		ID:          id,
		Tool:        tool,
		Description: description,
		CreatedAt:   time.Now().UTC().Format(time.RFC3339),
		Metadata:    metadata,
	})

	select {
	case approved := <-ch:
		if !approved {
			return fmt.Errorf("%w by user: %s", ErrRejected, tool)
		}
		return nil
	case <-time.After(q.timeout):
		q.emitter.Emit(ctx, EventApprovalDismissed, map[string]string{"id": id})
		return fmt.Errorf("%w: timed out after %s: %s", ErrRejected, q.timeout, tool)
	case <-ctx.Done():
		q.emitter.Emit(context.WithoutCancel(ctx), EventApprovalDismissed, map[string]string{"id": id})
		return ctx.Err()
	}
}

// Approve resolves a pending in-process action. It reports whether id was
// pending.
func (q *ApprovalQueue) Approve(actionID string) bool {
	return q.resolve(actionID, true)
}

// Reject resolves a pending in-process action as rejected.
func (q *ApprovalQueue) Reject(actionID string) bool {
	return q.resolve(actionID, false)
}

func (q *ApprovalQueue) resolve(actionID string, approved bool) bool {
	q.mu.Lock()
	ch, ok := q.pending[actionID]
	q.mu.Unlock()
	if !ok {
		return false
	}
	select {
	case ch <- approved:
	default:
	}
	return true
}

func (q *ApprovalQueue) cleanup(id string) {
	q.mu.Lock()
	delete(q.pending, id)
	q.mu.Unlock()
}
