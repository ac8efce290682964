package kv

import (
	"context"
	"testing"
)

func TestMemory(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	if _, ok, err := m.Get(ctx, "missing"); err != nil || ok {
		t.Fatalf("Get(missing) = (ok=%v, err=%v), want absent", ok, err)
	}

	if err := m.Set(ctx, "k", "v1"); err != nil {
		t.Fatal(err)
	}
	if v, ok, _ := m.Get(ctx, "k"); !ok || v != "v1" {
		t.Fatalf("Get = (%q, %v), want (v1, true)", v, ok)
	}

	if err := m.Set(ctx, "k", "v2"); err != nil {
		t.Fatal(err)
	}
	if v, _, _ := m.Get(ctx, "k"); v != "v2" {
		t.Fatalf("Get after overwrite = %q, want v2", v)
	}

	if err := m.Remove(ctx, "k"); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := m.Get(ctx, "k"); ok {
		t.Fatal("key present after Remove")
	}

	if !m.Healthy(ctx) {
		t.Fatal("memory backend reported unhealthy")
	}
}
