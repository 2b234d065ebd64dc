package team

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/acadamier/backend/core"
)

// Member statuses
const (
	MemberPending = "pending"
	MemberActive  = "active"
	MemberRevoked = "revoked"

	// reported for invited emails without an account
	InviteNotFound = "not_found"
)

type Organization struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	AdminID   string    `json:"admin"`
	CreatedAt time.Time `json:"created_at"` // UTC
}

type Member struct {
	ID             string     `json:"id"`
	OrganizationID string     `json:"organization"`
	UserID         string     `json:"user"`
	Email          string     `json:"email"`
	InvitedByID    *string    `json:"invited_by"`
	Status         string     `json:"status"`
	InvitedAt      time.Time  `json:"invited_at"` // UTC
	JoinedAt       *time.Time `json:"joined_at"`
}

type BulkPurchase struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization"`
	PurchasedByID  string    `json:"purchased_by"`
	Seats          int       `json:"seats"`
	CourseIDs      []string  `json:"courses"`
	OrderReference string    `json:"order_reference"`
	PurchasedAt    time.Time `json:"purchased_at"` // UTC
}

type SeatUsage struct {
	TotalSeats     int `json:"total_seats"`
	UsedSeats      int `json:"used_seats"`
	PendingInvites int `json:"pending_invites"`
}

// MemberProgress is the lesson completion of an active member.
type MemberProgress struct {
	UserID    string `json:"user_id"`
	Email     string `json:"email"`
	Completed int    `json:"completed"`
	Total     int    `json:"total"`
	Percent   int    `json:"percent"`
}

type AnalyticsSnapshot struct {
	ID               string           `json:"id"`
	OrganizationID   string           `json:"organization"`
	SnapshotAt       time.Time        `json:"snapshot_at"` // UTC
	SeatUsage        SeatUsage        `json:"seat_usage"`
	LearningProgress []MemberProgress `json:"learning_progress"`
}

type InviteResult struct {
	Email  string `json:"email"`
	Status string `json:"status"`
}

// Requests

type NewOrganization struct {
	Name string `json:"name" validate:"required,max=255"`
}

func (no *NewOrganization) Validate(validate *validator.Validate) error {
	no.Name = core.CleanString(no.Name)
	return validate.Struct(no)
}

type InviteMembers struct {
	Emails []string `json:"emails" validate:"required,min=1,dive,email"`
}

func (im *InviteMembers) Validate(validate *validator.Validate) error {
	for i, email := range im.Emails {
		im.Emails[i] = core.CleanString(email, true /* lower */)
	}
	return validate.Struct(im)
}
