// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"fmt"
	"time"
)

// ═══════════════════════════════════════════════════════════════════════════
// ID Value Objects
// ═══════════════════════════════════════════════════════════════════════════

// TelegramID represents a unique Telegram user identifier.
type TelegramID int64

// IsValid checks if the Telegram ID is valid (positive number).
func (t TelegramID) IsValid() bool {
	return t > 0
}

// Int64 returns the underlying int64 value.
func (t TelegramID) Int64() int64 {
	return int64(t)
}

// String returns the string representation.
func (t TelegramID) String() string {
	return fmt.Sprintf("%d", t)
}

// NewTelegramID creates a new TelegramID with validation.
func NewTelegramID(id int64) (TelegramID, error) {
	if id <= 0 {
		return 0, ErrInvalidTelegramID
	}
	return TelegramID(id), nil
}

// ChatID represents a Telegram chat/group identifier. Unlike TelegramID
// (always a positive user id), group chat ids are negative on the wire.
type ChatID int64

// IsValid checks that the chat id is non-zero; Telegram supergroups carry
// large negative ids, ordinary groups smaller negative ones.
func (c ChatID) IsValid() bool {
	return c != 0
}

// Int64 returns the underlying int64 value.
func (c ChatID) Int64() int64 {
	return int64(c)
}

// String returns a log-friendly representation, e.g. "#gid_100500".
func (c ChatID) String() string {
	id := int64(c)
	if id < 0 {
		id = -id
	}
	return fmt.Sprintf("#gid_%d", id)
}

// NewChatID creates a new ChatID with validation.
func NewChatID(id int64) (ChatID, error) {
	c := ChatID(id)
	if !c.IsValid() {
		return 0, ErrInvalidChatID
	}
	return c, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// TimeRange Value Object
// ═══════════════════════════════════════════════════════════════════════════

// TimeRange represents an inclusive span of time.
type TimeRange struct {
	From time.Time
	To   time.Time
}

// IsValid checks if the time range is valid.
func (t TimeRange) IsValid() bool {
	return !t.From.IsZero() && !t.To.IsZero() && !t.From.After(t.To)
}

// Duration returns the duration of the time range.
func (t TimeRange) Duration() time.Duration {
	return t.To.Sub(t.From)
}

// Contains checks if a time is within the range.
func (t TimeRange) Contains(tm time.Time) bool {
	return (tm.Equal(t.From) || tm.After(t.From)) && (tm.Equal(t.To) || tm.Before(t.To))
}

// NewTimeRange creates a new TimeRange with validation.
func NewTimeRange(from, to time.Time) (TimeRange, error) {
	tr := TimeRange{From: from, To: to}
	if !tr.IsValid() {
		return TimeRange{}, NewDomainError("shared", "NewTimeRange", ErrInvalidInput, "'from' must be before 'to'")
	}
	return tr, nil
}

// Last24Hours returns a TimeRange for the last 24 hours.
func Last24Hours() TimeRange {
	now := time.Now()
	return TimeRange{
		From: now.Add(-24 * time.Hour),
		To:   now,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Pagination Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Pagination represents pagination parameters, used by repository List
// methods across every bounded context.
type Pagination struct {
	Page     int
	PageSize int
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Offset returns the offset for database queries.
func (p Pagination) Offset() int {
	if p.Page <= 0 {
		return 0
	}
	return (p.Page - 1) * p.Limit()
}

// Limit returns the limit for database queries.
func (p Pagination) Limit() int {
	if p.PageSize <= 0 {
		return DefaultPageSize
	}
	if p.PageSize > MaxPageSize {
		return MaxPageSize
	}
	return p.PageSize
}

// NewPagination creates a new Pagination with defaults.
func NewPagination(page, pageSize int) Pagination {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return Pagination{Page: page, PageSize: pageSize}
}

// DefaultPagination returns default pagination.
func DefaultPagination() Pagination {
	return NewPagination(1, DefaultPageSize)
}
