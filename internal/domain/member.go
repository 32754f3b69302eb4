package domain

import "time"

// Member is a mirrored member of a remote group.
type Member struct {
	ID             int64      `json:"id" db:"id"`
	GroupID        string     `json:"group_id" db:"group_id"`
	Login          string     `json:"login" db:"login"`
	DisplayName    string     `json:"display_name" db:"display_name"`
	AvatarURL      string     `json:"avatar_url" db:"avatar_url"`
	IsMaintainer   bool       `json:"is_maintainer" db:"is_maintainer"`
	IsActive       bool       `json:"is_active" db:"is_active"`
	GovernmentFlag *bool      `json:"government_flag" db:"government_flag"`
	FirstSeenAt    *time.Time `json:"first_seen_at,omitempty" db:"first_seen_at"`
	LastSyncedAt   *time.Time `json:"last_synced_at,omitempty" db:"last_synced_at"`
	CreatedAt      *time.Time `json:"created_at,omitempty" db:"created_at"`
	UpdatedAt      *time.Time `json:"updated_at,omitempty" db:"updated_at"`
}

// SyncSummary reports the outcome of a membership sync.
type SyncSummary struct {
	Total        int `json:"total"`
	NewCount     int `json:"new_count"`
	UpdatedCount int `json:"updated_count"`
	Deactivated  int `json:"deactivated"`
}
