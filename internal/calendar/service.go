// Package calendar implements shared calendar events with read-time
// visibility filtering. Events are immutable once created.
package calendar

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"worksync/internal/model"
	"worksync/internal/store"
)

// ErrInvalidEvent is returned when a required field is missing.
var ErrInvalidEvent = errors.New("calendar: title and both timestamps required")

// Service creates and queries calendar events through the record store.
type Service struct {
	store *store.Store
	newID func() string
	loc   *time.Location
}

// NewService wires the calendar. loc is the location used for calendar-day
// membership; it defaults to time.Local.
func NewService(st *store.Store, newID func() string, loc *time.Location) *Service {
	if newID == nil {
		newID = uuid.NewString
	}
	if loc == nil {
		loc = time.Local
	}
	return &Service{store: st, newID: newID, loc: loc}
}

// AddEvent creates a new event. End >= Start is expected from callers but
// not enforced.
func (s *Service) AddEvent(ctx context.Context, title string, start, end time.Time, userID string, isPublic bool, description string) (model.CalendarEvent, error) {
	if strings.TrimSpace(title) == "" || start.IsZero() || end.IsZero() {
		return model.CalendarEvent{}, ErrInvalidEvent
	}
	e := model.CalendarEvent{
		ID:          s.newID(),
		UserID:      userID,
		Title:       strings.TrimSpace(title),
		Start:       start,
		End:         end,
		IsPublic:    isPublic,
		Description: description,
	}
	if err := s.store.InsertEvent(ctx, e); err != nil {
		return model.CalendarEvent{}, err
	}
	return e, nil
}

// VisibleTo returns every event the viewer may see: public events plus the
// viewer's own.
func (s *Service) VisibleTo(viewerID string) []model.CalendarEvent {
	var out []model.CalendarEvent
	for _, e := range s.store.Events() {
		if e.VisibleTo(viewerID) {
			out = append(out, e)
		}
	}
	return out
}

// OnDay returns the viewer-visible events whose start falls on the given
// calendar day. Membership compares parsed date components in the
// service's location, not string prefixes, so it holds across timezones.
func (s *Service) OnDay(viewerID string, day time.Time) []model.CalendarEvent {
	y, m, d := day.In(s.loc).Date()
	var out []model.CalendarEvent
	for _, e := range s.VisibleTo(viewerID) {
		ey, em, ed := e.Start.In(s.loc).Date()
		if ey == y && em == m && ed == d {
			out = append(out, e)
		}
	}
	return out
}
