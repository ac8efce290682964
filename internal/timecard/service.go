// Package timecard implements the attendance state machine. A user's work
// status is derived from today's record; each transition checks its
// precondition against that record and reports a tagged outcome instead of
// silently dropping an illegal operation.
package timecard

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"worksync/internal/model"
	"worksync/internal/store"
)

// Rejection reasons surfaced in Outcome when a transition's precondition
// does not hold. The store is never touched on a rejection.
const (
	ReasonAlreadyClockedIn = "already clocked in today"
	ReasonNotClockedIn     = "not clocked in today"
	ReasonDayComplete      = "today's record is already closed"
	ReasonAlreadyOnBreak   = "already on break"
	ReasonNotOnBreak       = "not on break"
)

// Outcome is the result of a transition attempt. Reason is empty when the
// transition applied; Record carries the post-transition record when it did
// and is nil on a rejection.
type Outcome struct {
	Applied bool              `json:"applied"`
	Reason  string            `json:"reason,omitempty"`
	Record  *model.TimeRecord `json:"record,omitempty"`
}

func rejected(reason string) Outcome { return Outcome{Reason: reason} }

// Service applies clock transitions against the record store.
type Service struct {
	store *store.Store
	now   func() time.Time
	newID func() string
}

// NewService wires the state machine. now and newID default to the wall
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

func (s *Service) today() string { return s.now().Format("2006-01-02") }

// Status derives the user's current work status from today's record.
func (s *Service) Status(userID string) model.WorkStatus {
	rec, ok := s.store.RecordFor(userID, s.today())
	if !ok {
		return model.StatusOff
	}
	return rec.Status()
}

// TodayRecord returns today's record for the user, if any.
func (s *Service) TodayRecord(userID string) (model.TimeRecord, bool) {
	return s.store.RecordFor(userID, s.today())
}

// ClockIn opens today's record. Rejected when one already exists, which
// keeps the one-record-per-day invariant and makes repeat calls harmless.
// The precondition check and the insert run atomically under the store
// lock, so concurrent requests cannot both open a record for the same day.
func (s *Service) ClockIn(ctx context.Context, userID string) (Outcome, error) {
	var out Outcome
	err := s.store.MutateRecord(ctx, userID, s.today(), func(rec model.TimeRecord, exists bool) (model.TimeRecord, bool) {
		if exists {
			out = rejected(ReasonAlreadyClockedIn)
			return rec, false
		}
		rec = model.TimeRecord{
			ID:        s.newID(),
			UserID:    userID,
			Date:      s.today(),
			StartTime: s.now(),
			Breaks:    []model.BreakPeriod{},
		}
		out = Outcome{Applied: true, Record: &rec}
		return rec, true
	})
	if err != nil {
		return Outcome{}, err
	}
	return out, nil
}

// ClockOut closes today's record. An open trailing break is closed first so
// a finished day never carries an open break.
func (s *Service) ClockOut(ctx context.Context, userID string) (Outcome, error) {
	var out Outcome
	err := s.store.MutateRecord(ctx, userID, s.today(), func(rec model.TimeRecord, exists bool) (model.TimeRecord, bool) {
		if !exists {
			out = rejected(ReasonNotClockedIn)
			return rec, false
		}
		if rec.EndTime != nil {
			out = rejected(ReasonDayComplete)
			return rec, false
		}
		now := s.now()
		if rec.OnBreak() {
			end := now
			rec.Breaks[len(rec.Breaks)-1].End = &end
		}
		rec.EndTime = &now
		out = Outcome{Applied: true, Record: &rec}
		return rec, true
	})
	if err != nil {
		return Outcome{}, err
	}
	return out, nil
}

// StartBreak appends an open break to today's record.
func (s *Service) StartBreak(ctx context.Context, userID string) (Outcome, error) {
	var out Outcome
	err := s.store.MutateRecord(ctx, userID, s.today(), func(rec model.TimeRecord, exists bool) (model.TimeRecord, bool) {
		if !exists {
			out = rejected(ReasonNotClockedIn)
			return rec, false
		}
		if rec.EndTime != nil {
			out = rejected(ReasonDayComplete)
			return rec, false
		}
		if rec.OnBreak() {
			out = rejected(ReasonAlreadyOnBreak)
			return rec, false
		}
		rec.Breaks = append(rec.Breaks, model.BreakPeriod{Start: s.now()})
		out = Outcome{Applied: true, Record: &rec}
		return rec, true
	})
	if err != nil {
		return Outcome{}, err
	}
	return out, nil
}

// EndBreak closes the open trailing break on today's record.
func (s *Service) EndBreak(ctx context.Context, userID string) (Outcome, error) {
	var out Outcome
	err := s.store.MutateRecord(ctx, userID, s.today(), func(rec model.TimeRecord, exists bool) (model.TimeRecord, bool) {
		if !exists {
			out = rejected(ReasonNotClockedIn)
			return rec, false
		}
		if rec.EndTime != nil {
			out = rejected(ReasonDayComplete)
			return rec, false
		}
		if !rec.OnBreak() {
			out = rejected(ReasonNotOnBreak)
			return rec, false
		}
		end := s.now()
		rec.Breaks[len(rec.Breaks)-1].End = &end
		out = Outcome{Applied: true, Record: &rec}
		return rec, true
	})
	if err != nil {
		return Outcome{}, err
	}
	return out, nil
}

// History returns the user's records most recent date first, capped at
// limit when limit > 0.
func (s *Service) History(userID string, limit int) []model.TimeRecord {
	recs := s.store.RecordsForUser(userID)
	sort.Slice(recs, func(i, j int) bool { return recs[i].Date > recs[j].Date })
	if limit > 0 && len(recs) > limit {
		recs = recs[:limit]
	}
	return recs
}

// Worked reports the time on the clock minus completed breaks. An open day
// is measured up to now; an open break up to now as well.
func (s *Service) Worked(rec model.TimeRecord) time.Duration {
	return Worked(rec, s.now())
}

// Worked computes on-the-clock time for a record as of now.
func Worked(rec model.TimeRecord, now time.Time) time.Duration {
	end := now
	if rec.EndTime != nil {
		end = *rec.EndTime
	}
	total := end.Sub(rec.StartTime)
	for _, b := range rec.Breaks {
		bEnd := end
		if b.End != nil {
			bEnd = *b.End
		}
		total -= bEnd.Sub(b.Start)
	}
	if total < 0 {
		total = 0
	}
	return total
}
