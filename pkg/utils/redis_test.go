package utils

import (
	"context"
	"testing"
)

func TestConnSlotScriptsCompile(t *testing.T) {
	// Compile-time smoke test: scripts should be initialized.
	if connSlotAcquireScript == nil || connSlotReleaseScript == nil {
		t.Fatalf("expected scripts to be initialized")
	}
}

func TestAcquireConnSlot_RejectsBadArguments(t *testing.T) {
	ctx := context.Background()
	if _, err := AcquireConnSlot(ctx, nil, "k", 1, 1); err == nil {
		t.Fatalf("expected error for nil client")
	}
	if err := ReleaseConnSlot(ctx, nil, "k"); err == nil {
		t.Fatalf("expected error for nil client")
	}
}
