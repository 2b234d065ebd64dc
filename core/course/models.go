package course

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/acadamier/backend/core"
)

// Difficulties
const (
	DifficultyBeginner     = "beginner"
	DifficultyIntermediate = "intermediate"
	DifficultyAdvanced     = "advanced"
)

var Difficulties = []string{DifficultyBeginner, DifficultyIntermediate, DifficultyAdvanced}

type Tag struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Category struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Slug        string  `json:"slug"`
	Subtitle    string  `json:"subtitle"`
	Description string  `json:"description"`
	Image       string  `json:"image"`
	ParentID    *string `json:"parent"`
}

type Course struct {
	ID                string          `json:"id"`
	Title             string          `json:"title"`
	Subtitle          string          `json:"subtitle"`
	Description       string          `json:"description"`
	About             string          `json:"about"`
	Learn             []string        `json:"learn"`
	Price             decimal.Decimal `json:"price"`
	InstructorID      string          `json:"instructor"`
	Language          string          `json:"language"`
	DefaultAccessDays *int            `json:"default_access_days"`
	PromoImage        string          `json:"promo_image"`
	PromoVideo        string          `json:"promo_video"`
	TagIDs            []string        `json:"tags"`
	Difficulty        string          `json:"difficulty"`
	DurationMinutes   *int            `json:"duration_minutes"`
	Prerequisites     []string        `json:"prerequisites"`
	Featured          bool            `json:"featured"`
	CategoryIDs       []string        `json:"categories"`
	AverageRating     float64         `json:"average_rating"`
	CreatedAt         time.Time       `json:"created_at"` // UTC
	UpdatedAt         time.Time       `json:"updated_at"` // UTC
}

// IsFree reports whether the course can be enrolled in without paying.
func (c *Course) IsFree() bool {
	return !c.Price.IsPositive()
}

type Module struct {
	ID          string `json:"id"`
	CourseID    string `json:"course"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Order       int    `json:"order"`
}

type Lesson struct {
	ID              string    `json:"id"`
	CourseID        string    `json:"course"`
	ModuleID        *string   `json:"module"`
	Title           string    `json:"title"`
	Content         string    `json:"content"`
	DurationMinutes *int      `json:"duration_minutes"`
	Video           string    `json:"video"`
	VideoURL        string    `json:"video_url"`
	HLSURL          string    `json:"hls_url"`
	Thumbnail       string    `json:"thumbnail"`
	Order           int       `json:"order"`
	CreatedAt       time.Time `json:"created_at"` // UTC
}

type Review struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user"`
	CourseID  string    `json:"course"`
	Rating    int       `json:"rating"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"` // UTC
}

type WishlistItem struct {
	ID       string    `json:"id"`
	UserID   string    `json:"user"`
	CourseID string    `json:"course"`
	AddedAt  time.Time `json:"added_at"` // UTC
}

type Promotion struct {
	ID              string    `json:"id"`
	CourseID        string    `json:"course"`
	DiscountPercent int       `json:"discount_percent"`
	StartDate       time.Time `json:"start_date"` // UTC
	EndDate         time.Time `json:"end_date"`   // UTC
}

// IsActive reports whether the promotion applies at `at`.
func (p *Promotion) IsActive(at time.Time) bool {
	return !at.Before(p.StartDate) && !at.After(p.EndDate)
}

// Requests

type NewTag struct {
	Name string `json:"name" validate:"required,max=50"`
}

func (nt *NewTag) Validate(validate *validator.Validate) error {
	nt.Name = core.CleanString(nt.Name)
	return validate.Struct(nt)
}

type NewCategory struct {
	Name        string  `json:"name" validate:"required,max=100"`
	Slug        string  `json:"slug" validate:"omitempty,slug"`
	Subtitle    string  `json:"subtitle"`
	Description string  `json:"description"`
	Image       string  `json:"image" validate:"omitempty,url"`
	ParentID    *string `json:"parent" validate:"omitempty,uuid"`
}

func (nc *NewCategory) Validate(validate *validator.Validate) error {
	nc.Name = core.CleanString(nc.Name)
	nc.Slug = core.CleanString(nc.Slug, true /* lower */)
	if nc.Slug == "" {
		nc.Slug = core.Slugify(nc.Name)
	}
	return validate.Struct(nc)
}

type NewCourse struct {
	Title             string          `json:"title" validate:"required,max=200"`
	Subtitle          string          `json:"subtitle" validate:"max=255"`
	Description       string          `json:"description"`
	About             string          `json:"about"`
	Learn             []string        `json:"learn"`
	Price             decimal.Decimal `json:"price"`
	Language          string          `json:"language" validate:"max=50"`
	DefaultAccessDays *int            `json:"default_access_days" validate:"omitempty,min=1"`
	PromoImage        string          `json:"promo_image"`
	PromoVideo        string          `json:"promo_video"`
	TagIDs            []string        `json:"tags" validate:"omitempty,dive,uuid"`
	Difficulty        string          `json:"difficulty" validate:"omitempty,difficulty"`
	DurationMinutes   *int            `json:"duration_minutes" validate:"omitempty,min=0"`
	Prerequisites     []string        `json:"prerequisites" validate:"omitempty,dive,uuid"`
	Featured          bool            `json:"featured"`
	CategoryIDs       []string        `json:"categories" validate:"omitempty,dive,uuid"`
}

func (nc *NewCourse) Validate(validate *validator.Validate) error {
	nc.Title = core.CleanString(nc.Title)
	nc.Subtitle = core.CleanString(nc.Subtitle)
	nc.Difficulty = core.CleanString(nc.Difficulty, true /* lower */)
	if err := validate.Struct(nc); err != nil {
		return err
	}
	return validatePrice(nc.Price)
}

// UpdateCourse defines what information may be provided to modify an existing Course. Nil fields are left unchanged.
type UpdateCourse struct {
	Title             *string          `json:"title" validate:"omitempty,min=1,max=200"`
	Subtitle          *string          `json:"subtitle" validate:"omitempty,max=255"`
	Description       *string          `json:"description"`
	About             *string          `json:"about"`
	Learn             []string         `json:"learn"`
	Price             *decimal.Decimal `json:"price"`
	Language          *string          `json:"language" validate:"omitempty,max=50"`
	DefaultAccessDays *int             `json:"default_access_days" validate:"omitempty,min=1"`
	PromoImage        *string          `json:"promo_image"`
	PromoVideo        *string          `json:"promo_video"`
	TagIDs            []string         `json:"tags" validate:"omitempty,dive,uuid"`
	Difficulty        *string          `json:"difficulty" validate:"omitempty,difficulty"`
	DurationMinutes   *int             `json:"duration_minutes" validate:"omitempty,min=0"`
	Prerequisites     []string         `json:"prerequisites" validate:"omitempty,dive,uuid"`
	Featured          *bool            `json:"featured"`
	CategoryIDs       []string         `json:"categories" validate:"omitempty,dive,uuid"`
}

func (uc *UpdateCourse) Validate(validate *validator.Validate) error {
	if uc.Title != nil {
		title := core.CleanString(*uc.Title)
		uc.Title = &title
	}
	if uc.Difficulty != nil {
		diff := core.CleanString(*uc.Difficulty, true /* lower */)
		uc.Difficulty = &diff
	}
	if err := validate.Struct(uc); err != nil {
		return err
	}
	if uc.Price != nil {
		return validatePrice(*uc.Price)
	}
	return nil
}

func validatePrice(price decimal.Decimal) error {
	if price.IsNegative() || price.GreaterThan(maxPrice) || !price.Equal(price.Round(2)) {
		return core.NewValidationError(nil, core.FieldError{Field: "price", Error: priceText})
	}
	return nil
}

type QueryFilter struct {
	Search       string `query:"search"`
	CategoryID   string `query:"category"`
	TagID        string `query:"tag"`
	Difficulty   string `query:"difficulty"`
	Featured     *bool  `query:"featured"`
	InstructorID string `query:"instructor"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Difficulty = core.CleanString(qf.Difficulty, true /* lower */)
}

type NewModule struct {
	CourseID    string `json:"course_id" validate:"required,uuid"`
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description"`
	Order       int    `json:"order" validate:"min=0"`
}

func (nm *NewModule) Validate(validate *validator.Validate) error {
	nm.Title = core.CleanString(nm.Title)
	return validate.Struct(nm)
}

type UpdateModule struct {
	Title       *string `json:"title" validate:"omitempty,min=1,max=200"`
	Description *string `json:"description"`
	Order       *int    `json:"order" validate:"omitempty,min=0"`
}

func (um *UpdateModule) Validate(validate *validator.Validate) error { return validate.Struct(um) }

type NewLesson struct {
	CourseID        string  `json:"course_id"`
	ModuleID        *string `json:"module" validate:"omitempty,uuid"`
	Title           string  `json:"title" validate:"required,max=200"`
	Content         string  `json:"content"`
	DurationMinutes *int    `json:"duration_minutes" validate:"omitempty,min=0"`
	VideoURL        string  `json:"video_url" validate:"omitempty,url"`
	Order           int     `json:"order" validate:"min=0"`
}

func (nl *NewLesson) Validate(validate *validator.Validate) error {
	nl.Title = core.CleanString(nl.Title)
	nl.CourseID = core.CleanString(nl.CourseID)
	return validate.Struct(nl)
}

type UpdateLesson struct {
	ModuleID        *string `json:"module" validate:"omitempty,uuid"`
	Title           *string `json:"title" validate:"omitempty,min=1,max=200"`
	Content         *string `json:"content"`
	DurationMinutes *int    `json:"duration_minutes" validate:"omitempty,min=0"`
	VideoURL        *string `json:"video_url" validate:"omitempty,url"`
	Order           *int    `json:"order" validate:"omitempty,min=0"`
}

func (ul *UpdateLesson) Validate(validate *validator.Validate) error { return validate.Struct(ul) }

type NewReview struct {
	CourseID string `json:"course" validate:"required,uuid"`
	Rating   int    `json:"rating" validate:"required,min=1,max=5"`
	Text     string `json:"text"`
}

func (nr *NewReview) Validate(validate *validator.Validate) error {
	nr.Text = core.CleanString(nr.Text)
	return validate.Struct(nr)
}

type UpdateReview struct {
	Rating *int    `json:"rating" validate:"omitempty,min=1,max=5"`
	Text   *string `json:"text"`
}

func (ur *UpdateReview) Validate(validate *validator.Validate) error { return validate.Struct(ur) }

type NewWishlistItem struct {
	CourseID string `json:"course" validate:"required,uuid"`
}

func (nw *NewWishlistItem) Validate(validate *validator.Validate) error { return validate.Struct(nw) }

type NewPromotion struct {
	CourseID        string    `json:"course" validate:"required,uuid"`
	DiscountPercent int       `json:"discount_percent" validate:"required,min=1,max=100"`
	StartDate       time.Time `json:"start_date" validate:"required"`
	EndDate         time.Time `json:"end_date" validate:"required,gtefield=StartDate"`
}

func (np *NewPromotion) Validate(validate *validator.Validate) error {
	np.StartDate = np.StartDate.UTC()
	np.EndDate = np.EndDate.UTC()
	return validate.Struct(np)
}
