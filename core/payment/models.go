package payment

import (
	"time"

	"github.com/go-playground/validator/v10"
)

// Transaction statuses
const (
	StatusPending = "pending"
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// Transaction is an individual course purchase. Amount is in the currency's minor unit (kobo).
type Transaction struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user"`
	CourseID  string     `json:"course"`
	Reference string     `json:"reference"`
	Amount    int64      `json:"amount"`
	Status    string     `json:"status"`
	PaidAt    *time.Time `json:"paid_at"`
	CreatedAt time.Time  `json:"created_at"` // UTC
}

// BulkTransaction is the purchase of seats in several courses by an organization.
type BulkTransaction struct {
	ID             string     `json:"id"`
	OrganizationID string     `json:"organization"`
	UserID         string     `json:"user"`
	Seats          int        `json:"seats"`
	CourseIDs      []string   `json:"courses"`
	Reference      string     `json:"reference"`
	Amount         int64      `json:"amount"`
	Status         string     `json:"status"`
	PaidAt         *time.Time `json:"paid_at"`
	CreatedAt      time.Time  `json:"created_at"` // UTC
}

type Enrollment struct {
	ID         string     `json:"id"`
	UserID     string     `json:"user"`
	CourseID   string     `json:"course"`
	EnrolledAt time.Time  `json:"enrolled_at"` // UTC
	ExpiresAt  *time.Time `json:"expires_at"`  // nil: lifetime access
}

// IsActive reports whether the enrollment still grants access at `at`.
func (e *Enrollment) IsActive(at time.Time) bool {
	return e.ExpiresAt == nil || at.Before(*e.ExpiresAt)
}

// Requests

type InitTransaction struct {
	CourseID string `json:"course_id" validate:"required,uuid"`
}

func (it *InitTransaction) Validate(validate *validator.Validate) error { return validate.Struct(it) }

type InitBulkTransaction struct {
	OrganizationID string   `json:"organization" validate:"required,uuid"`
	Seats          int      `json:"seats" validate:"required,min=1"`
	CourseIDs      []string `json:"courses" validate:"required,min=1,dive,uuid"`
}

func (ib *InitBulkTransaction) Validate(validate *validator.Validate) error {
	return validate.Struct(ib)
}

type VerifyTransaction struct {
	Reference string `json:"reference" validate:"required"`
}

func (vt *VerifyTransaction) Validate(validate *validator.Validate) error { return validate.Struct(vt) }

type InitResult struct {
	AuthorizationURL string `json:"authorization_url"`
	Reference        string `json:"reference"`
}

// GatewayInit holds what the payment gateway needs to start a payment.
type GatewayInit struct {
	Amount      int64
	Email       string
	Reference   string
	CallbackURL string
}
