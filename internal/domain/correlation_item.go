package domain

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"
)

// ItemStatus represents the local status of a correlated item.
type ItemStatus string

// Item status constants.
const (
	StatusOpen     ItemStatus = "open"
	StatusResolved ItemStatus = "resolved"
)

// MaxDescriptionLength caps a stored description, in runes.
const MaxDescriptionLength = 1000

// NewItemStatus creates a new ItemStatus with validation.
func NewItemStatus(s string) (ItemStatus, error) {
	status := ItemStatus(s)
	if !status.IsValid() {
		return "", fmt.Errorf("invalid item status: %s (must be one of: %s, %s)", s, StatusOpen, StatusResolved)
	}
	return status, nil
}

// MapStatus maps a remote state to the local status. "closed" is resolved,
// everything else (including empty and unknown states) is open.
func MapStatus(remote string) ItemStatus {
	if strings.EqualFold(strings.TrimSpace(remote), "closed") {
		return StatusResolved
	}
	return StatusOpen
}

// IsValid checks if the status is valid.
func (s ItemStatus) IsValid() bool {
	return s == StatusOpen || s == StatusResolved
}

// Scan implements sql.Scanner interface for automatic validation when reading from database.
func (s *ItemStatus) Scan(value any) error {
	if value == nil {
		return fmt.Errorf("ItemStatus cannot be NULL")
	}

	var str string
	switch v := value.(type) {
	case string:
		str = v
	case []byte:
		str = string(v)
	default:
		return fmt.Errorf("cannot scan %T into ItemStatus", value)
	}

	status, err := NewItemStatus(str)
	if err != nil {
		return err
	}
	*s = status
	return nil
}

// Value implements driver.Valuer interface for writing to database.
func (s ItemStatus) Value() (driver.Value, error) {
	if !s.IsValid() {
		return nil, fmt.Errorf("invalid ItemStatus value: %s", s)
	}
	return string(s), nil
}

// CorrelationItem is a remote issue linked to a member.
type CorrelationItem struct {
	ID                int64      `json:"id" db:"id"`
	MemberID          int64      `json:"member_id" db:"member_id"`
	Number            int        `json:"number" db:"number"`
	URL               string     `json:"url" db:"url"`
	Title             string     `json:"title" db:"title"`
	Description       string     `json:"description" db:"description"`
	Status            ItemStatus `json:"status" db:"status"`
	Author            string     `json:"author,omitempty"`
	ExternalCreatedAt *time.Time `json:"external_created_at,omitempty" db:"external_created_at"`
	ExternalUpdatedAt *time.Time `json:"external_updated_at,omitempty" db:"external_updated_at"`
	ExpiresAt         *time.Time `json:"expires_at,omitempty" db:"expires_at"`
	CreatedAt         *time.Time `json:"created_at,omitempty" db:"created_at"`
	UpdatedAt         *time.Time `json:"updated_at,omitempty" db:"updated_at"`
}

// TruncateDescription cuts s to MaxDescriptionLength runes.
func TruncateDescription(s string) string {
	if len(s) <= MaxDescriptionLength {
		return s
	}
	runes := []rune(s)
	if len(runes) <= MaxDescriptionLength {
		return s
	}
	return string(runes[:MaxDescriptionLength])
}

// CorrelationSummary reports the outcome of a correlation sync.
type CorrelationSummary struct {
	Members  int             `json:"members"`
	Upserted int             `json:"upserted"`
	Deleted  int             `json:"deleted"`
	Failures []MemberFailure `json:"failures,omitempty"`
}

// MemberFailure records why one member could not be synced.
type MemberFailure struct {
	Login string `json:"login"`
	Kind  string `json:"kind"`
	Error string `json:"error"`
}

// ExpirationExtractor reads an access expiration date out of free text. It
// reports false when the text holds no date.
type ExpirationExtractor interface {
	Extract(text string) (time.Time, bool)
}
