package terminal

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestLocalDriver_ExecuteInTerminal(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	d, err := NewLocalDriver(ctx)
	if err != nil {
		t.Fatalf("NewLocalDriver: %v", err)
	}
	defer d.Dispose()

	// Force a predictable prompt so DetectPrompt can find it.
	if err := d.Write(ctx, []byte("PS1='$ '\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	time.Sleep(200 * time.Millisecond)

	res, err := d.ExecuteInTerminal(ctx, "echo marker123", 5*time.Second)
	if err != nil {
		t.Fatalf("ExecuteInTerminal: %v", err)
	}
	if !strings.Contains(res.Output, "marker123") {
		t.Errorf("expected output to contain marker123, got %q", res.Output)
	}
}

func TestLocalDriver_SendControl_UnknownKey(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	d, err := NewLocalDriver(ctx)
	if err != nil {
		t.Fatalf("NewLocalDriver: %v", err)
	}
	defer d.Dispose()

	if err := d.SendControl(ctx, "not-a-key"); err == nil {
		t.Fatalf("expected error for unknown control key")
	}
}
