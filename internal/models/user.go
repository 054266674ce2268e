package models

import (
	"strings"
	"time"
)

type Role string

const (
	RoleCustomer Role = "customer"
	RoleProvider Role = "provider"
	RoleAdmin    Role = "admin"
)

func ParseRole(raw string) (Role, bool) {
	r := Role(strings.ToLower(strings.TrimSpace(raw)))
	switch r {
	case RoleCustomer, RoleProvider, RoleAdmin:
		return r, true
	}
	return r, false
}

type User struct {
	ID                 string           `json:"id"`
	Role               Role             `json:"role"`
	FullName           string           `json:"full_name"`
	Email              string           `json:"email,omitempty"`
	Phone              string           `json:"phone,omitempty"`
	VerificationStatus ModerationStatus `json:"verification_status"`
	TelegramChatID     int64            `json:"telegram_chat_id,omitempty"`
	CreatedAt          time.Time        `json:"created_at"`
	UpdatedAt          time.Time        `json:"updated_at"`
}

// IsVerified is derived from the verification status.
func (u *User) IsVerified() bool {
	return u.VerificationStatus == ModerationApproved
}
