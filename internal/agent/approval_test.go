package agent

import (
	"context"
	"testing"
	"time"
)

func TestMemoryApprovalStore_CreateGet(t *testing.T) {
	store := NewMemoryApprovalStore()
	ctx := context.Background()

	req := &ApprovalRequest{
		ID:         "a1",
		ToolCallID: "call-1",
		ToolName:   "execute_command",
		RiskLevel:  "dangerous",
		CreatedAt:  time.Now(),
		Decision:   ApprovalPending,
	}
	if err := store.Create(ctx, req); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := store.Get(ctx, "a1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got == nil || got.ToolCallID != "call-1" {
		t.Errorf("Get(a1) = %+v, want ToolCallID call-1", got)
	}
}

func TestMemoryApprovalStore_UpdateDecision(t *testing.T) {
	store := NewMemoryApprovalStore()
	ctx := context.Background()

	req := &ApprovalRequest{ID: "a2", ToolCallID: "call-2", AgentID: "host-1", CreatedAt: time.Now(), Decision: ApprovalPending}
	_ = store.Create(ctx, req)

	req.Decision = ApprovalAllowed
	req.DecidedAt = time.Now()
	if err := store.Update(ctx, req); err != nil {
		t.Fatalf("Update: %v", err)
	}

	got, _ := store.Get(ctx, "a2")
	if got.Decision != ApprovalAllowed {
		t.Errorf("Decision = %v, want allowed", got.Decision)
	}
}

func TestMemoryApprovalStore_ListPendingFiltersByAgentAndExpiry(t *testing.T) {
	store := NewMemoryApprovalStore()
	ctx := context.Background()
	now := time.Now()

	_ = store.Create(ctx, &ApprovalRequest{ID: "p1", AgentID: "host-1", CreatedAt: now, ExpiresAt: now.Add(time.Hour), Decision: ApprovalPending})
	_ = store.Create(ctx, &ApprovalRequest{ID: "p2", AgentID: "host-2", CreatedAt: now, ExpiresAt: now.Add(time.Hour), Decision: ApprovalPending})
	_ = store.Create(ctx, &ApprovalRequest{ID: "p3", AgentID: "host-1", CreatedAt: now, ExpiresAt: now.Add(-time.Hour), Decision: ApprovalPending})
	_ = store.Create(ctx, &ApprovalRequest{ID: "p4", AgentID: "host-1", CreatedAt: now, Decision: ApprovalAllowed})

	pending, err := store.ListPending(ctx, "host-1")
	if err != nil {
		t.Fatalf("ListPending: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != "p1" {
		t.Errorf("ListPending(host-1) = %+v, want just p1", pending)
	}
}

func TestMemoryApprovalStore_Prune(t *testing.T) {
	store := NewMemoryApprovalStore()
	ctx := context.Background()

	old := &ApprovalRequest{ID: "old", CreatedAt: time.Now().Add(-2 * time.Hour), Decision: ApprovalAllowed}
	recent := &ApprovalRequest{ID: "recent", CreatedAt: time.Now(), Decision: ApprovalAllowed}
	_ = store.Create(ctx, old)
	_ = store.Create(ctx, recent)

	n, err := store.Prune(ctx, time.Hour)
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if n != 1 {
		t.Errorf("Prune removed %d, want 1", n)
	}
	got, _ := store.Get(ctx, "old")
	if got != nil {
		t.Error("expected old request to be gone after Prune")
	}
	got, _ = store.Get(ctx, "recent")
	if got == nil {
		t.Error("expected recent request to survive Prune")
	}
}
