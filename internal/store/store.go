// Package store holds the portal's in-memory record collections and keeps
// them synchronized with the key-value persistence substrate. Every
// mutating method writes its collection back before returning.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"worksync/internal/kv"
	"worksync/internal/model"
)

// Substrate keys, one JSON document per collection.
const (
	KeyUsers       = "app_users"
	KeyTimeRecords = "app_time_records"
	KeyThreads     = "app_threads"
	KeyEvents      = "app_events"
	KeyTheme       = "app_theme_color"
)

// Store is the portal record store. Handlers share one instance, so all
// access goes through the mutex.
type Store struct {
	mu      sync.Mutex
	kv      kv.Store
	users   []model.User
	records []model.TimeRecord
	threads []model.Thread
	events  []model.CalendarEvent
	theme   model.ThemeColor
}

// New creates a store backed by the given substrate. Call Load before use.
func New(substrate kv.Store) *Store {
	return &Store{kv: substrate, theme: model.DefaultTheme}
}

// Load reads every collection from the substrate. When no users have ever
// been persisted and seedDemo is set, the demo accounts are seeded.
func (s *Store) Load(ctx context.Context, seedDemo bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := loadJSON(ctx, s.kv, KeyUsers, &s.users); err != nil {
		return err
	}
	if err := loadJSON(ctx, s.kv, KeyTimeRecords, &s.records); err != nil {
		return err
	}
	if err := loadJSON(ctx, s.kv, KeyThreads, &s.threads); err != nil {
		return err
	}
	if err := loadJSON(ctx, s.kv, KeyEvents, &s.events); err != nil {
		return err
	}

	raw, ok, err := s.kv.Get(ctx, KeyTheme)
	if err != nil {
		return fmt.Errorf("load %s: %w", KeyTheme, err)
	}
	s.theme = model.DefaultTheme
	if ok && model.ValidTheme(model.ThemeColor(raw)) {
		s.theme = model.ThemeColor(raw)
	}

	if len(s.users) == 0 && seedDemo {
		s.users = demoUsers()
		return s.saveUsers(ctx)
	}
	return nil
}

func loadJSON[T any](ctx context.Context, substrate kv.Store, key string, dst *[]T) error {
	raw, ok, err := substrate.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("load %s: %w", key, err)
	}
	if !ok {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

func demoUsers() []model.User {
	return []model.User{
		{ID: "u1", Name: "田中 太郎", Email: "tanaka@example.com", Role: model.RoleAdmin, Department: "開発部", Bio: "マネージャー"},
		{ID: "u2", Name: "佐藤 花子", Email: "sato@example.com", Role: model.RoleUser, Department: "営業部", Bio: "営業担当"},
		{ID: "u3", Name: "鈴木 一郎", Email: "suzuki@example.com", Role: model.RoleUser, Department: "総務部", Bio: "事務"},
	}
}

// Healthy reports substrate connectivity.
func (s *Store) Healthy(ctx context.Context) bool { return s.kv.Healthy(ctx) }

// ---- persistence helpers (callers hold s.mu) ----

func (s *Store) saveJSON(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := s.kv.Set(ctx, key, string(raw)); err != nil {
		return fmt.Errorf("persist %s: %w", key, err)
	}
	return nil
}

func (s *Store) saveUsers(ctx context.Context) error   { return s.saveJSON(ctx, KeyUsers, s.users) }
func (s *Store) saveRecords(ctx context.Context) error { return s.saveJSON(ctx, KeyTimeRecords, s.records) }
func (s *Store) saveThreads(ctx context.Context) error { return s.saveJSON(ctx, KeyThreads, s.threads) }
func (s *Store) saveEvents(ctx context.Context) error  { return s.saveJSON(ctx, KeyEvents, s.events) }

// ---- users ----

// Users returns a copy of all users.
func (s *Store) Users() []model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.User, len(s.users))
	copy(out, s.users)
	return out
}

// UserByID looks up a user by id.
func (s *Store) UserByID(id string) (model.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.ID == id {
			return u, true
		}
	}
	return model.User{}, false
}

// UserByEmail looks up a user by exact email match.
func (s *Store) UserByEmail(email string) (model.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			return u, true
		}
	}
	return model.User{}, false
}

// UpdateUser replaces the stored user with the same id and persists.
func (s *Store) UpdateUser(ctx context.Context, updated model.User) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, u := range s.users {
		if u.ID == updated.ID {
			s.users[i] = updated
			return true, s.saveUsers(ctx)
		}
	}
	return false, nil
}

// ---- time records ----

// RecordFor returns the record for (userID, date) if one exists.
func (s *Store) RecordFor(userID, date string) (model.TimeRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.records {
		if r.UserID == userID && r.Date == date {
			return copyRecord(r), true
		}
	}
	return model.TimeRecord{}, false
}

// RecordsForUser returns all records owned by userID.
func (s *Store) RecordsForUser(userID string) []model.TimeRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.TimeRecord
	for _, r := range s.records {
		if r.UserID == userID {
			out = append(out, copyRecord(r))
		}
	}
	return out
}

// InsertTimeRecord appends a new record and persists. The caller is
// responsible for the one-record-per-day precondition.
func (s *Store) InsertTimeRecord(ctx context.Context, rec model.TimeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, copyRecord(rec))
	return s.saveRecords(ctx)
}

// MutateRecord runs fn against the record for (userID, date) while
// holding the store lock, so a precondition check and its write cannot
// interleave with another request's. fn receives a copy of the current
// record (zero value when none exists) and returns the record to keep
// plus whether to write it; a write inserts or replaces and persists
// before the lock is released.
func (s *Store) MutateRecord(ctx context.Context, userID, date string, fn func(rec model.TimeRecord, exists bool) (model.TimeRecord, bool)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := -1
	for i, r := range s.records {
		if r.UserID == userID && r.Date == date {
			idx = i
			break
		}
	}
	var cur model.TimeRecord
	if idx >= 0 {
		cur = copyRecord(s.records[idx])
	}
	next, write := fn(cur, idx >= 0)
	if !write {
		return nil
	}
	if idx >= 0 {
		s.records[idx] = copyRecord(next)
	} else {
		s.records = append(s.records, copyRecord(next))
	}
	return s.saveRecords(ctx)
}

func copyRecord(r model.TimeRecord) model.TimeRecord {
	out := r
	out.Breaks = make([]model.BreakPeriod, len(r.Breaks))
	copy(out.Breaks, r.Breaks)
	return out
}

// ---- threads ----

// Threads returns a copy of all threads, most recent first.
func (s *Store) Threads() []model.Thread {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Thread, len(s.threads))
	for i, t := range s.threads {
		out[i] = copyThread(t)
	}
	return out
}

// ThreadByID looks up a thread by id.
func (s *Store) ThreadByID(id string) (model.Thread, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.threads {
		if t.ID == id {
			return copyThread(t), true
		}
	}
	return model.Thread{}, false
}

// InsertThread places a new thread at the head of the collection and
// persists. Most-recent-first is an invariant of the stored order.
func (s *Store) InsertThread(ctx context.Context, t model.Thread) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.threads = append([]model.Thread{copyThread(t)}, s.threads...)
	return s.saveThreads(ctx)
}

// AppendComment adds a comment to the end of the thread's comment
// sequence. Returns false without mutation when the thread is unknown.
func (s *Store) AppendComment(ctx context.Context, threadID string, c model.Comment) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.threads {
		if s.threads[i].ID == threadID {
			s.threads[i].Comments = append(s.threads[i].Comments, c)
			return true, s.saveThreads(ctx)
		}
	}
	return false, nil
}

func copyThread(t model.Thread) model.Thread {
	out := t
	out.Comments = make([]model.Comment, len(t.Comments))
	copy(out.Comments, t.Comments)
	return out
}

// ---- calendar events ----

// Events returns a copy of all events.
func (s *Store) Events() []model.CalendarEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.CalendarEvent, len(s.events))
	copy(out, s.events)
	return out
}

// InsertEvent appends a new event and persists.
func (s *Store) InsertEvent(ctx context.Context, e model.CalendarEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return s.saveEvents(ctx)
}

// ---- theme ----

// Theme returns the current theme color.
func (s *Store) Theme() model.ThemeColor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.theme
}

// SetTheme replaces the theme preference and persists. Invalid colors are
// rejected without mutation; a persist failure leaves the in-memory value
// unchanged so the store never reports a theme the substrate lost.
func (s *Store) SetTheme(ctx context.Context, c model.ThemeColor) (bool, error) {
	if !model.ValidTheme(c) {
		return false, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.kv.Set(ctx, KeyTheme, string(c)); err != nil {
		return true, fmt.Errorf("persist %s: %w", KeyTheme, err)
	}
	s.theme = c
	return true, nil
}

// ---- wholesale replacement (backup restore) ----

// ReplaceUsers swaps the entire user collection and persists.
func (s *Store) ReplaceUsers(ctx context.Context, users []model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = users
	return s.saveUsers(ctx)
}

// ReplaceTimeRecords swaps the entire record collection and persists.
func (s *Store) ReplaceTimeRecords(ctx context.Context, records []model.TimeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = records
	return s.saveRecords(ctx)
}

// ReplaceThreads swaps the entire thread collection and persists.
func (s *Store) ReplaceThreads(ctx context.Context, threads []model.Thread) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.threads = threads
	return s.saveThreads(ctx)
}

// ReplaceEvents swaps the entire event collection and persists.
func (s *Store) ReplaceEvents(ctx context.Context, events []model.CalendarEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = events
	return s.saveEvents(ctx)
}

// Snapshot captures all five collections/scalars at one instant.
type Snapshot struct {
	Users       []model.User          `json:"app_users"`
	TimeRecords []model.TimeRecord    `json:"app_time_records"`
	Threads     []model.Thread        `json:"app_threads"`
	Events      []model.CalendarEvent `json:"app_events"`
	Theme       model.ThemeColor      `json:"app_theme_color"`
}

// Snapshot returns a deep copy of the full store state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		Users:       make([]model.User, len(s.users)),
		TimeRecords: make([]model.TimeRecord, len(s.records)),
		Threads:     make([]model.Thread, len(s.threads)),
		Events:      make([]model.CalendarEvent, len(s.events)),
		Theme:       s.theme,
	}
	copy(snap.Users, s.users)
	for i, r := range s.records {
		snap.TimeRecords[i] = copyRecord(r)
	}
	for i, t := range s.threads {
		snap.Threads[i] = copyThread(t)
	}
	copy(snap.Events, s.events)
	return snap
}
