package scorm

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/acadamier/backend/core"
)

const (
	Version12   = "1.2"
	Version2004 = "2004"

	StatusProcessing = "processing"
	StatusReady      = "ready"
	StatusFailed     = "failed"
)

var Versions = []string{Version12, Version2004}

type Package struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	CourseID     string    `json:"course"`
	File         string    `json:"file"`
	Version      string    `json:"version"`
	UploadedByID string    `json:"uploaded_by"`
	Status       string    `json:"status"`
	Error        string    `json:"error,omitempty"`
	CreatedAt    time.Time `json:"created_at"` // UTC
}

// Sco is a single launchable item of a Package.
type Sco struct {
	ID         string `json:"id"`
	PackageID  string `json:"package"`
	Identifier string `json:"identifier"`
	LaunchURL  string `json:"launch_url"`
	Title      string `json:"title"`
	Sequence   int    `json:"sequence"`
}

// RuntimeData holds the cmi.* values a SCO reported for a user.
type RuntimeData struct {
	ID        string            `json:"id"`
	UserID    string            `json:"user"`
	ScoID     string            `json:"sco"`
	Attempt   int               `json:"attempt"`
	Data      map[string]string `json:"data"`
	UpdatedAt time.Time         `json:"updated_at"` // UTC
}

type NewPackage struct {
	Title    string `json:"title" form:"title" validate:"required,max=255"`
	CourseID string `json:"course" form:"course" validate:"required,uuid"`
	Version  string `json:"version" form:"version" validate:"omitempty,scorm_version"`
}

func (np *NewPackage) Validate(validate *validator.Validate) error {
	np.Title = core.CleanString(np.Title)
	np.Version = core.CleanString(np.Version)
	if np.Version == "" {
		np.Version = Version12
	}
	return validate.Struct(np)
}

type UpdateRuntime struct {
	Data map[string]string `json:"data" validate:"required"`
}

func (ur *UpdateRuntime) Validate(validate *validator.Validate) error {
	return validate.Struct(ur)
}
