package calendar

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"worksync/internal/kv"
	"worksync/internal/store"
)

func newFixture(t *testing.T) (*Service, *store.Store) {
	t.Helper()
	st := store.New(kv.NewMemory())
	if err := st.Load(context.Background(), true); err != nil {
		t.Fatalf("load store: %v", err)
	}
	n := 0
	newID := func() string {
		n++
		return fmt.Sprintf("evt-%d", n)
	}
	return NewService(st, newID, time.UTC), st
}

func TestAddEvent(t *testing.T) {
	svc, _ := newFixture(t)
	ctx := context.Background()
	start := time.Date(2026, 8, 28, 14, 0, 0, 0, time.UTC)

	t.Run("creates an event", func(t *testing.T) {
		e, err := svc.AddEvent(ctx, "standup", start, start.Add(time.Hour), "u1", true, "daily sync")
		if err != nil {
			t.Fatal(err)
		}
		if e.ID == "" || e.Title != "standup" || !e.IsPublic {
			t.Fatalf("event = %+v", e)
		}
	})

	t.Run("requires title and timestamps", func(t *testing.T) {
		if _, err := svc.AddEvent(ctx, "  ", start, start, "u1", true, ""); !errors.Is(err, ErrInvalidEvent) {
			t.Fatalf("err = %v, want ErrInvalidEvent", err)
		}
		if _, err := svc.AddEvent(ctx, "x", time.Time{}, start, "u1", true, ""); !errors.Is(err, ErrInvalidEvent) {
			t.Fatalf("err = %v, want ErrInvalidEvent", err)
		}
		if _, err := svc.AddEvent(ctx, "x", start, time.Time{}, "u1", true, ""); !errors.Is(err, ErrInvalidEvent) {
			t.Fatalf("err = %v, want ErrInvalidEvent", err)
		}
	})
}

func TestVisibility(t *testing.T) {
	svc, _ := newFixture(t)
	ctx := context.Background()
	start := time.Date(2026, 8, 28, 14, 0, 0, 0, time.UTC)

	private, err := svc.AddEvent(ctx, "1on1", start, start.Add(time.Hour), "u2", false, "")
	if err != nil {
		t.Fatal(err)
	}
	public, err := svc.AddEvent(ctx, "all hands", start, start.Add(time.Hour), "u2", true, "")
	if err != nil {
		t.Fatal(err)
	}

	t.Run("private event hidden from other viewers", func(t *testing.T) {
		for _, e := range svc.VisibleTo("u1") {
			if e.ID == private.ID {
				t.Fatal("private event of u2 visible to u1")
			}
		}
	})

	t.Run("private event visible to its owner", func(t *testing.T) {
		found := false
		for _, e := range svc.VisibleTo("u2") {
			if e.ID == private.ID {
				found = true
			}
		}
		if !found {
			t.Fatal("owner cannot see own private event")
		}
	})

	t.Run("public event visible to everyone", func(t *testing.T) {
		found := false
		for _, e := range svc.VisibleTo("u1") {
			if e.ID == public.ID {
				found = true
			}
		}
		if !found {
			t.Fatal("public event not visible to u1")
		}
	})
}

func TestOnDay(t *testing.T) {
	svc, _ := newFixture(t)
	ctx := context.Background()

	// 23:30 UTC on the 28th; a string-prefix match against a shifted
	// timestamp would land this on the wrong day.
	late, err := svc.AddEvent(ctx, "late meeting",
		time.Date(2026, 8, 28, 23, 30, 0, 0, time.UTC),
		time.Date(2026, 8, 29, 0, 30, 0, 0, time.UTC), "u1", true, "")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.AddEvent(ctx, "next day",
		time.Date(2026, 8, 29, 9, 0, 0, 0, time.UTC),
		time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC), "u1", true, ""); err != nil {
		t.Fatal(err)
	}

	t.Run("matches parsed date components", func(t *testing.T) {
		got := svc.OnDay("u1", time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC))
		if len(got) != 1 || got[0].ID != late.ID {
			t.Fatalf("OnDay(28th) = %+v, want only the late meeting", got)
		}
	})

	t.Run("offset representation of the same instant still matches", func(t *testing.T) {
		// 23:30Z on the 28th expressed as 08:30+09:00 on the 29th.
		jst := time.FixedZone("JST", 9*60*60)
		got := svc.OnDay("u1", time.Date(2026, 8, 29, 8, 30, 0, 0, jst))
		if len(got) != 1 || got[0].ID != late.ID {
			t.Fatalf("OnDay = %+v, want only the late meeting", got)
		}
	})
}
