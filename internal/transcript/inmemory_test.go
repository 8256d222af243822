package transcript

import (
	"context"
	"testing"
)

func TestInMemoryStoreKeepsOrder(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	for _, text := range []string{"Hola", "Hola, ¿en qué puedo ayudarte?", "Estoy aquí para ti."} {
		if err := s.SaveLine(ctx, Line{UserID: "u1", RoleID: "companion", SessionID: "s1", Speaker: "assistant", Text: text}); err != nil {
			t.Fatalf("SaveLine() error = %v", err)
		}
	}

	lines, err := s.RecentLines(ctx, "u1", 10)
	if err != nil {
		t.Fatalf("RecentLines() error = %v", err)
	}
	if len(lines) != 3 {
		t.Fatalf("len(lines) = %d, want 3", len(lines))
	}
	if lines[0].Text != "Hola" || lines[2].Text != "Estoy aquí para ti." {
		t.Fatalf("lines out of order: %+v", lines)
	}
}

func TestInMemoryStoreLimit(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := s.SaveLine(ctx, Line{UserID: "u1", Text: "line"}); err != nil {
			t.Fatalf("SaveLine() error = %v", err)
		}
	}

	lines, err := s.RecentLines(ctx, "u1", 2)
	if err != nil {
		t.Fatalf("RecentLines() error = %v", err)
	}
	if len(lines) != 2 {
		t.Fatalf("len(lines) = %d, want 2", len(lines))
	}
}

func TestInMemoryStoreUnknownUser(t *testing.T) {
	s := NewInMemoryStore()

	lines, err := s.RecentLines(context.Background(), "nobody", 5)
	if err != nil {
		t.Fatalf("RecentLines() error = %v", err)
	}
	if lines != nil {
		t.Fatalf("RecentLines() = %v, want nil", lines)
	}
}
