package file

import (
	"context"
	"testing"
)

func TestStore_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	s := New()
	ctx := context.Background()

	if _, ok, err := s.Load(ctx, "app", dir); ok || err != nil {
		t.Fatalf("Load on empty dir: ok=%v err=%v", ok, err)
	}

	if err := s.Save(ctx, "app", dir, "Level: Info\n"); err != nil {
		t.Fatalf("Save: %v", err)
	}
	text, ok, err := s.Load(ctx, "app", dir)
	if err != nil || !ok {
		t.Fatalf("Load: text=%q ok=%v err=%v", text, ok, err)
	}
	if text != "Level: Info\n" {
		t.Fatalf("text = %q, want %q", text, "Level: Info\n")
	}
}

func TestStore_SaveCreatesDirectory(t *testing.T) {
	dir := t.TempDir() + "/nested/config"
	s := New()
	ctx := context.Background()
	if err := s.Save(ctx, "app", dir, "x"); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, ok, err := s.Load(ctx, "app", dir); !ok || err != nil {
		t.Fatalf("Load after Save into nested dir: ok=%v err=%v", ok, err)
	}
}
