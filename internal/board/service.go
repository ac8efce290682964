// Package board implements the bulletin-board mutator. Threads are
// head-inserted and comments append-only; nothing is ever edited or
// deleted.
package board

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"worksync/internal/model"
	"worksync/internal/store"
)

var (
	// ErrEmptyField is returned when a required field is blank.
	ErrEmptyField = errors.New("board: required field is empty")
	// ErrThreadNotFound is returned when the target thread does not exist.
	ErrThreadNotFound = errors.New("board: thread not found")
)

// Service mutates the thread collection through the record store.
type Service struct {
	store *store.Store
	now   func() time.Time
	newID func() string
}

// NewService wires the board mutator. now and newID default to the wall
// clock and uuid generation when nil.
func NewService(st *store.Store, now func() time.Time, newID func() string) *Service {
	if now == nil {
		now = time.Now
	}
	if newID == nil {
		newID = uuid.NewString
	}
	return &Service{store: st, now: now, newID: newID}
}

// CreateThread inserts a new thread at the head of the collection. All
// four fields are required.
func (s *Service) CreateThread(ctx context.Context, title, content, category, authorID string) (model.Thread, error) {
	if blank(title) || blank(content) || blank(category) || blank(authorID) {
		return model.Thread{}, ErrEmptyField
	}
	t := model.Thread{
		ID:        s.newID(),
		AuthorID:  authorID,
		Title:     strings.TrimSpace(title),
		Content:   content,
		Category:  strings.TrimSpace(category),
		CreatedAt: s.now(),
		Comments:  []model.Comment{},
	}
	if err := s.store.InsertThread(ctx, t); err != nil {
		return model.Thread{}, err
	}
	return t, nil
}

// AddComment appends a comment to an existing thread, preserving append
// order. Unknown thread ids mutate nothing.
func (s *Service) AddComment(ctx context.Context, threadID, content, authorID string) (model.Comment, error) {
	if blank(content) || blank(authorID) {
		return model.Comment{}, ErrEmptyField
	}
	c := model.Comment{
		ID:        s.newID(),
		AuthorID:  authorID,
		Content:   content,
		CreatedAt: s.now(),
	}
	ok, err := s.store.AppendComment(ctx, threadID, c)
	if err != nil {
		return model.Comment{}, err
	}
	if !ok {
		return model.Comment{}, ErrThreadNotFound
	}
	return c, nil
}

// Threads lists all threads, most recent first.
func (s *Service) Threads() []model.Thread { return s.store.Threads() }

// Thread returns a single thread by id.
func (s *Service) Thread(id string) (model.Thread, bool) { return s.store.ThreadByID(id) }

func blank(v string) bool { return strings.TrimSpace(v) == "" }
