package services

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"solace/internal/database"
)

func TestMemoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	svc := NewMemoryService(newTestDB(t))

	if err := svc.PutGlobal(ctx, "- likes rainy days\n- allergic to cats\n"); err != nil {
		t.Fatalf("put global: %v", err)
	}
	lines, err := svc.GetGlobal(ctx)
	if err != nil {
		t.Fatalf("get global: %v", err)
	}
	want := []string{"- likes rainy days", "- allergic to cats"}
	if !reflect.DeepEqual(lines, want) {
		t.Errorf("global memory = %q, want %q", lines, want)
	}

	if err := svc.PutContact(ctx, "mika", "- plays piano"); err != nil {
		t.Fatalf("put contact: %v", err)
	}
	lines, err = svc.GetContact(ctx, "mika")
	if err != nil {
		t.Fatalf("get contact: %v", err)
	}
	if !reflect.DeepEqual(lines, []string{"- plays piano"}) {
		t.Errorf("contact memory = %q", lines)
	}

	// Contact and global scopes never bleed into each other.
	global, _ := svc.GetGlobal(ctx)
	if !reflect.DeepEqual(global, want) {
		t.Errorf("global memory after contact write = %q, want %q", global, want)
	}
}

func TestMemoryNormalization(t *testing.T) {
	ctx := context.Background()
	svc := NewMemoryService(newTestDB(t))

	// Blank lines and trailing whitespace are dropped, not stored.
	if err := svc.PutGlobal(ctx, "\n- first  \r\n\n- second\t\n\n"); err != nil {
		t.Fatalf("put global: %v", err)
	}
	lines, err := svc.GetGlobal(ctx)
	if err != nil {
		t.Fatalf("get global: %v", err)
	}
	if !reflect.DeepEqual(lines, []string{"- first", "- second"}) {
		t.Errorf("normalized lines = %q", lines)
	}

	for _, bad := range []string{"no bullet", "-missing space", "- ", "-  \t"} {
		if err := svc.PutGlobal(ctx, bad); !errors.Is(err, database.ErrInvalidInput) {
			t.Errorf("PutGlobal(%q): err = %v, want ErrInvalidInput", bad, err)
		}
	}
}

func TestAppendContactPreservesExistingLines(t *testing.T) {
	ctx := context.Background()
	svc := NewMemoryService(newTestDB(t))

	if err := svc.AppendContact(ctx, "mika", "- met at the bookstore"); err != nil {
		t.Fatalf("append to empty: %v", err)
	}
	if err := svc.AppendContact(ctx, "mika", "- prefers tea over coffee"); err != nil {
		t.Fatalf("append: %v", err)
	}

	lines, err := svc.GetContact(ctx, "mika")
	if err != nil {
		t.Fatalf("get contact: %v", err)
	}
	want := []string{"- met at the bookstore", "- prefers tea over coffee"}
	if !reflect.DeepEqual(lines, want) {
		t.Errorf("contact memory = %q, want %q", lines, want)
	}
}

func TestConversationCounterLifecycle(t *testing.T) {
	ctx := context.Background()
	svc := NewMemoryService(newTestDB(t))

	for i := 1; i < SummarizeThreshold; i++ {
		value, err := svc.BumpConversationCounter(ctx, "mika", 1)
		if err != nil {
			t.Fatalf("bump %d: %v", i, err)
		}
		if value != i {
			t.Fatalf("counter after bump %d = %d", i, value)
		}
		due, err := svc.ShouldSummarize(ctx, "mika")
		if err != nil {
			t.Fatalf("should summarize: %v", err)
		}
		if due {
			t.Fatalf("summarize due at counter %d, threshold is %d", value, SummarizeThreshold)
		}
	}

	value, err := svc.BumpConversationCounter(ctx, "mika", 1)
	if err != nil {
		t.Fatalf("bump: %v", err)
	}
	if value != SummarizeThreshold {
		t.Fatalf("counter = %d, want %d", value, SummarizeThreshold)
	}
	due, err := svc.ShouldSummarize(ctx, "mika")
	if err != nil {
		t.Fatalf("should summarize: %v", err)
	}
	if !due {
		t.Fatal("summarize not due at threshold")
	}

	if err := svc.ResetCounter(ctx, "mika"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	due, err = svc.ShouldSummarize(ctx, "mika")
	if err != nil {
		t.Fatalf("should summarize after reset: %v", err)
	}
	if due {
		t.Fatal("summarize still due after reset")
	}

	// Counter accrues per contact.
	if _, err := svc.BumpConversationCounter(ctx, "rin", 2); err != nil {
		t.Fatalf("bump rin: %v", err)
	}
	value, err = svc.BumpConversationCounter(ctx, "mika", 1)
	if err != nil {
		t.Fatalf("bump mika: %v", err)
	}
	if value != 1 {
		t.Errorf("mika counter = %d, want 1", value)
	}
}

func TestClearContactRemovesLinesAndCounter(t *testing.T) {
	ctx := context.Background()
	svc := NewMemoryService(newTestDB(t))

	if err := svc.PutContact(ctx, "mika", "- plays piano"); err != nil {
		t.Fatalf("put contact: %v", err)
	}
	if _, err := svc.BumpConversationCounter(ctx, "mika", 5); err != nil {
		t.Fatalf("bump: %v", err)
	}

	if err := svc.ClearContact(ctx, "mika"); err != nil {
		t.Fatalf("clear: %v", err)
	}

	lines, err := svc.GetContact(ctx, "mika")
	if err != nil {
		t.Fatalf("get contact: %v", err)
	}
	if len(lines) != 0 {
		t.Errorf("lines after clear = %q", lines)
	}
	value, err := svc.BumpConversationCounter(ctx, "mika", 1)
	if err != nil {
		t.Fatalf("bump after clear: %v", err)
	}
	if value != 1 {
		t.Errorf("counter after clear = %d, want 1", value)
	}
}
