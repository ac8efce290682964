package model

import "time"

// Role identifies a user's privilege level.
type Role string

const (
	RoleAdmin Role = "ADMIN"
	RoleUser  Role = "USER"
)

// User represents a portal member.
type User struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Role       Role   `json:"role"`
	Department string `json:"department,omitempty"`
	Bio        string `json:"bio,omitempty"`
	Avatar     string `json:"avatar,omitempty"`
}

// WorkStatus is derived from today's TimeRecord, never stored.
type WorkStatus string

const (
	StatusOff     WorkStatus = "OFF"
	StatusWorking WorkStatus = "WORKING"
	StatusBreak   WorkStatus = "BREAK"
)

// BreakPeriod is one break inside a working day. End is nil while the
// break is still open; only the last entry may be open.
type BreakPeriod struct {
	Start time.Time  `json:"start"`
	End   *time.Time `json:"end,omitempty"`
}

// TimeRecord is the single attendance record for one (user, calendar day).
// Once EndTime is set the record is terminal.
type TimeRecord struct {
	ID        string        `json:"id"`
	UserID    string        `json:"userId"`
	Date      string        `json:"date"` // YYYY-MM-DD, local calendar day
	StartTime time.Time     `json:"startTime"`
	EndTime   *time.Time    `json:"endTime,omitempty"`
	Breaks    []BreakPeriod `json:"breaks"`
}

// Status derives the work status from the record's current shape.
func (r TimeRecord) Status() WorkStatus {
	if r.EndTime != nil {
		return StatusOff
	}
	if n := len(r.Breaks); n > 0 && r.Breaks[n-1].End == nil {
		return StatusBreak
	}
	return StatusWorking
}

// OnBreak reports whether the trailing break entry is still open.
func (r TimeRecord) OnBreak() bool {
	n := len(r.Breaks)
	return n > 0 && r.Breaks[n-1].End == nil
}

// Comment belongs to exactly one thread and is never edited or removed.
type Comment struct {
	ID        string    `json:"id"`
	AuthorID  string    `json:"authorId"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// Thread is a bulletin-board post with append-only comments.
type Thread struct {
	ID        string    `json:"id"`
	AuthorID  string    `json:"authorId"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Category  string    `json:"category"`
	CreatedAt time.Time `json:"createdAt"`
	Comments  []Comment `json:"comments"`
}

// CalendarEvent is immutable after creation. End >= Start is expected but
// not enforced.
type CalendarEvent struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	Title       string    `json:"title"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	IsPublic    bool      `json:"isPublic"`
	Description string    `json:"description,omitempty"`
}

// VisibleTo reports whether the event may be shown to the given viewer.
func (e CalendarEvent) VisibleTo(viewerID string) bool {
	return e.IsPublic || e.UserID == viewerID
}

// ThemeColor is the process-wide accent color preference.
type ThemeColor string

const DefaultTheme = ThemeColor("indigo")

var themeColors = map[ThemeColor]bool{
	"indigo":  true,
	"blue":    true,
	"emerald": true,
	"rose":    true,
	"amber":   true,
	"violet":  true,
	"cyan":    true,
}

// ValidTheme reports whether c is one of the supported theme colors.
func ValidTheme(c ThemeColor) bool { return themeColors[c] }

// ThemeColors lists the supported theme identifiers.
func ThemeColors() []ThemeColor {
	return []ThemeColor{"indigo", "blue", "emerald", "rose", "amber", "violet", "cyan"}
}
