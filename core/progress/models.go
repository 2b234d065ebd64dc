package progress

import (
	"time"

	"github.com/go-playground/validator/v10"
)

type LessonProgress struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user"`
	LessonID    string    `json:"lesson"`
	CourseID    string    `json:"course"`
	IsCompleted bool      `json:"is_completed"`
	UpdatedAt   time.Time `json:"updated_at"` // UTC
}

type CourseProgress struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user"`
	CourseID  string    `json:"course"`
	Percent   float64   `json:"percent"`
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

type ScormProgress struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user"`
	PackageID string    `json:"package"`
	Percent   float64   `json:"percent"`
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

type Certification struct {
	ID       string    `json:"id"`
	UserID   string    `json:"user"`
	LessonID string    `json:"lesson"`
	CertID   string    `json:"cert_id"`
	IssuedAt time.Time `json:"issued_at"` // UTC
}

type ScormCertification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user"`
	PackageID string    `json:"package"`
	CertID    string    `json:"cert_id"`
	IssuedAt  time.Time `json:"issued_at"` // UTC
}

// ScoRuntime is the runtime data a user reported for one SCO of a package.
type ScoRuntime struct {
	ScoID string
	Data  map[string]string
}

type SaveLessonProgress struct {
	LessonID    string `json:"lesson" validate:"required,uuid"`
	IsCompleted bool   `json:"is_completed"`
}

func (sp *SaveLessonProgress) Validate(validate *validator.Validate) error {
	return validate.Struct(sp)
}
