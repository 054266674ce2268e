package models

import (
	"strings"
	"time"
)

// ModerationStatus is shared by services and provider accounts.
type ModerationStatus string

const (
	ModerationPending  ModerationStatus = "pending"
	ModerationApproved ModerationStatus = "approved"
	ModerationRejected ModerationStatus = "rejected"
)

// ParseModerationStatus maps legacy "active"/"inactive" labels onto the
// approved/rejected states.
func ParseModerationStatus(raw string) (ModerationStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "pending":
		return ModerationPending, true
	case "approved", "active":
		return ModerationApproved, true
	case "rejected", "inactive":
		return ModerationRejected, true
	}
	return "", false
}

// CanModerateTo reports whether an admin decision may be applied.
func (s ModerationStatus) CanModerateTo(target ModerationStatus) bool {
	return s == ModerationPending && (target == ModerationApproved || target == ModerationRejected)
}

type Service struct {
	ID               string           `json:"id" yaml:"id"`
	ProviderID       string           `json:"provider_id" yaml:"provider_id"`
	CategoryID       string           `json:"category_id" yaml:"category_id"`
	Title            string           `json:"title" yaml:"title"`
	Description      string           `json:"description,omitempty" yaml:"description"`
	Price            float64          `json:"price" yaml:"price"`
	DurationMinutes  int              `json:"duration_minutes" yaml:"duration_minutes"`
	ImageURL         string           `json:"image_url,omitempty" yaml:"image_url"`
	ModerationStatus ModerationStatus `json:"moderation_status" yaml:"moderation_status"`
	IsActive         bool             `json:"is_active" yaml:"is_active"`
	Rating           float64          `json:"rating"`
	ReviewCount      int              `json:"review_count"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// IsBookable is true for approved services that have not been removed.
func (s *Service) IsBookable() bool {
	return s.IsActive && s.ModerationStatus == ModerationApproved
}

type Package struct {
	ID          string    `json:"id"`
	ServiceID   string    `json:"service_id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Price       float64   `json:"price"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
}

type Category struct {
	ID          string    `json:"id" yaml:"id"`
	Name        string    `json:"name" yaml:"name"`
	Description string    `json:"description,omitempty" yaml:"description"`
	SortOrder   int64     `json:"sort_order" yaml:"sort_order"`
	IsActive    bool      `json:"is_active" yaml:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type ServiceFilter struct {
	CategoryID string
	ProviderID string
	Status     ModerationStatus
	// OnlyBookable restricts the listing to approved, active services.
	OnlyBookable bool
}
