package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"worksync/internal/kv"
	"worksync/internal/model"
)

// flakySubstrate wraps the memory backend and fails writes on demand.
type flakySubstrate struct {
	*kv.Memory
	failSet bool
}

func (f *flakySubstrate) Set(ctx context.Context, key, value string) error {
	if f.failSet {
		return errors.New("substrate unavailable")
	}
	return f.Memory.Set(ctx, key, value)
}

func TestLoadSeedsDemoUsersOnce(t *testing.T) {
	ctx := context.Background()
	substrate := kv.NewMemory()

	st := New(substrate)
	if err := st.Load(ctx, true); err != nil {
		t.Fatal(err)
	}
	users := st.Users()
	if len(users) != 3 {
		t.Fatalf("seeded users = %d, want 3", len(users))
	}

	// A second process over the same substrate sees the persisted users,
	// not a fresh seed.
	admin := users[0]
	admin.Bio = "updated"
	if _, err := st.UpdateUser(ctx, admin); err != nil {
		t.Fatal(err)
	}

	st2 := New(substrate)
	if err := st2.Load(ctx, true); err != nil {
		t.Fatal(err)
	}
	got, ok := st2.UserByID(admin.ID)
	if !ok || got.Bio != "updated" {
		t.Fatalf("reloaded user = %+v, want persisted bio", got)
	}
}

func TestLoadWithoutSeed(t *testing.T) {
	st := New(kv.NewMemory())
	if err := st.Load(context.Background(), false); err != nil {
		t.Fatal(err)
	}
	if len(st.Users()) != 0 {
		t.Fatal("users seeded despite seedDemo=false")
	}
	if st.Theme() != model.DefaultTheme {
		t.Fatalf("theme = %s, want default", st.Theme())
	}
}

func TestLoadIgnoresInvalidPersistedTheme(t *testing.T) {
	ctx := context.Background()
	substrate := kv.NewMemory()
	if err := substrate.Set(ctx, KeyTheme, "hotpink"); err != nil {
		t.Fatal(err)
	}
	st := New(substrate)
	if err := st.Load(ctx, false); err != nil {
		t.Fatal(err)
	}
	if st.Theme() != model.DefaultTheme {
		t.Fatalf("theme = %s, want fallback to default", st.Theme())
	}
}

func TestUserLookups(t *testing.T) {
	st := New(kv.NewMemory())
	if err := st.Load(context.Background(), true); err != nil {
		t.Fatal(err)
	}

	t.Run("by email exact match", func(t *testing.T) {
		u, ok := st.UserByEmail("sato@example.com")
		if !ok || u.ID != "u2" {
			t.Fatalf("lookup = (%+v, %v)", u, ok)
		}
		if _, ok := st.UserByEmail("SATO@example.com"); ok {
			t.Fatal("email lookup should be exact, not case-folded")
		}
	})

	t.Run("unknown id degrades", func(t *testing.T) {
		if _, ok := st.UserByID("ghost"); ok {
			t.Fatal("found a user that does not exist")
		}
	})
}

func TestSetTheme(t *testing.T) {
	ctx := context.Background()
	substrate := kv.NewMemory()
	st := New(substrate)
	if err := st.Load(ctx, true); err != nil {
		t.Fatal(err)
	}

	ok, err := st.SetTheme(ctx, "rose")
	if err != nil || !ok {
		t.Fatalf("SetTheme = (%v, %v)", ok, err)
	}
	if raw, found, _ := substrate.Get(ctx, KeyTheme); !found || raw != "rose" {
		t.Fatalf("persisted theme = (%q, %v)", raw, found)
	}

	if ok, _ := st.SetTheme(ctx, "plaid"); ok {
		t.Fatal("invalid theme accepted")
	}
	if st.Theme() != "rose" {
		t.Fatalf("theme = %s after rejected set", st.Theme())
	}
}

func TestSetThemeKeepsMemoryOnPersistFailure(t *testing.T) {
	ctx := context.Background()
	substrate := &flakySubstrate{Memory: kv.NewMemory()}
	st := New(substrate)
	if err := st.Load(ctx, true); err != nil {
		t.Fatal(err)
	}

	substrate.failSet = true
	ok, err := st.SetTheme(ctx, "rose")
	if !ok || err == nil {
		t.Fatalf("SetTheme = (%v, %v), want valid color with persist error", ok, err)
	}
	if st.Theme() != model.DefaultTheme {
		t.Fatalf("theme = %s, want unchanged default after failed persist", st.Theme())
	}

	substrate.failSet = false
	if ok, err := st.SetTheme(ctx, "rose"); !ok || err != nil {
		t.Fatalf("SetTheme after recovery = (%v, %v)", ok, err)
	}
	if raw, found, _ := substrate.Get(ctx, KeyTheme); !found || raw != "rose" {
		t.Fatalf("persisted theme = (%q, %v)", raw, found)
	}
}

func TestMutateRecordIsAtomic(t *testing.T) {
	ctx := context.Background()
	st := New(kv.NewMemory())
	if err := st.Load(ctx, true); err != nil {
		t.Fatal(err)
	}

	// Each goroutine inserts only when no record exists yet. Because the
	// existence check and the write share one critical section, exactly
	// one insert can win.
	const workers = 16
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			err := st.MutateRecord(ctx, "u1", "2026-08-28", func(rec model.TimeRecord, exists bool) (model.TimeRecord, bool) {
				if exists {
					return rec, false
				}
				return model.TimeRecord{
					ID: "r-winner", UserID: "u1", Date: "2026-08-28",
					StartTime: time.Date(2026, 8, 28, 9, 0, 0, 0, time.UTC),
					Breaks:    []model.BreakPeriod{},
				}, true
			})
			if err != nil {
				t.Error(err)
			}
		}(i)
	}
	close(start)
	wg.Wait()

	if got := len(st.RecordsForUser("u1")); got != 1 {
		t.Fatalf("records = %d, want exactly 1", got)
	}
}

func TestRecordCopiesAreIsolated(t *testing.T) {
	ctx := context.Background()
	st := New(kv.NewMemory())
	if err := st.Load(ctx, true); err != nil {
		t.Fatal(err)
	}

	rec := model.TimeRecord{
		ID: "r1", UserID: "u1", Date: "2026-08-28",
		StartTime: time.Date(2026, 8, 28, 9, 0, 0, 0, time.UTC),
		Breaks:    []model.BreakPeriod{{Start: time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)}},
	}
	if err := st.InsertTimeRecord(ctx, rec); err != nil {
		t.Fatal(err)
	}

	got, ok := st.RecordFor("u1", "2026-08-28")
	if !ok {
		t.Fatal("record not found")
	}
	// Mutating the returned copy must not leak into the store.
	end := time.Date(2026, 8, 28, 12, 30, 0, 0, time.UTC)
	got.Breaks[0].End = &end

	again, _ := st.RecordFor("u1", "2026-08-28")
	if again.Breaks[0].End != nil {
		t.Fatal("mutation of a returned copy leaked into the store")
	}
}

func TestEveryMutationPersists(t *testing.T) {
	ctx := context.Background()
	substrate := kv.NewMemory()
	st := New(substrate)
	if err := st.Load(ctx, true); err != nil {
		t.Fatal(err)
	}

	if err := st.InsertThread(ctx, model.Thread{ID: "t1", AuthorID: "u1", Title: "a", Content: "b", Category: "c", Comments: []model.Comment{}}); err != nil {
		t.Fatal(err)
	}
	if err := st.InsertEvent(ctx, model.CalendarEvent{ID: "e1", UserID: "u1", Title: "x", Start: time.Now(), End: time.Now()}); err != nil {
		t.Fatal(err)
	}

	// A fresh store over the same substrate must see everything.
	st2 := New(substrate)
	if err := st2.Load(ctx, false); err != nil {
		t.Fatal(err)
	}
	if _, ok := st2.ThreadByID("t1"); !ok {
		t.Fatal("thread not persisted")
	}
	if len(st2.Events()) != 1 {
		t.Fatal("event not persisted")
	}
}

func TestAppendCommentUnknownThread(t *testing.T) {
	ctx := context.Background()
	st := New(kv.NewMemory())
	if err := st.Load(ctx, true); err != nil {
		t.Fatal(err)
	}
	ok, err := st.AppendComment(ctx, "missing", model.Comment{ID: "c1"})
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("comment appended to a thread that does not exist")
	}
}
