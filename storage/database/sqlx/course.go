package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	pkgerrors "github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/acadamier/backend/core"
	"github.com/acadamier/backend/core/course"
)

type courseRepository struct {
	db *DB
}

var _ course.Repository = (*courseRepository)(nil)

func NewCourseRepository(db *DB) course.Repository {
	return &courseRepository{db: db}
}

// Tags

func (repo *courseRepository) QueryTags(ctx context.Context) ([]course.Tag, error) {
	tags := make([]course.Tag, 0)
	err := selectRows(ctx, repo.db, &tags, psql.Select("id", "name").From("tags").OrderBy("lower(name)"))
	return tags, err
}

func (repo *courseRepository) CreateTag(ctx context.Context, tag course.Tag) (course.Tag, error) {
	_, err := exec(ctx, repo.db, psql.Insert("tags").Columns("id", "name").Values(tag.ID, tag.Name))
	if err != nil {
		return course.Tag{}, trapUniqueErr(err, course.ErrTagExists)
	}
	return tag, nil
}

// Categories

var categoryColumns = []string{"id", "name", "slug", "subtitle", "description", "image", "parent_id"}

type categoryRow struct {
	ID          string      `db:"id"`
	Name        string      `db:"name"`
	Slug        string      `db:"slug"`
	Subtitle    string      `db:"subtitle"`
	Description string      `db:"description"`
	Image       string      `db:"image"`
	ParentID    null.String `db:"parent_id"`
}

func (r categoryRow) toCategory() course.Category {
	return course.Category{
		ID:          r.ID,
		Name:        r.Name,
		Slug:        r.Slug,
		Subtitle:    r.Subtitle,
		Description: r.Description,
		Image:       r.Image,
		ParentID:    r.ParentID.Ptr(),
	}
}

func (repo *courseRepository) QueryCategories(ctx context.Context) ([]course.Category, error) {
	var rows []categoryRow
	if err := selectRows(ctx, repo.db, &rows, psql.Select(categoryColumns...).From("categories").OrderBy("lower(name)")); err != nil {
		return nil, err
	}
	cats := make([]course.Category, len(rows))
	for i, r := range rows {
		cats[i] = r.toCategory()
	}
	return cats, nil
}

func (repo *courseRepository) GetCategory(ctx context.Context, id string) (course.Category, error) {
	var r categoryRow
	if err := get(ctx, repo.db, &r, psql.Select(categoryColumns...).From("categories").Where(sq.Eq{"id": id})); err != nil {
		return course.Category{}, trapNoRowsErr(err, course.ErrCategoryNotFound)
	}
	return r.toCategory(), nil
}

func (repo *courseRepository) CreateCategory(ctx context.Context, cat course.Category) (course.Category, error) {
	b := psql.Insert("categories").Columns(categoryColumns...).Values(
		cat.ID, cat.Name, cat.Slug, cat.Subtitle, cat.Description, cat.Image, null.StringFromPtr(cat.ParentID),
	)
	if _, err := exec(ctx, repo.db, b); err != nil {
		return course.Category{}, trapUniqueErr(err, course.ErrCategoryExists)
	}
	return cat, nil
}

func (repo *courseRepository) UpdateCategory(ctx context.Context, cat course.Category) (course.Category, error) {
	b := psql.Update("categories").SetMap(map[string]interface{}{
		"name":        cat.Name,
		"slug":        cat.Slug,
		"subtitle":    cat.Subtitle,
		"description": cat.Description,
		"image":       cat.Image,
		"parent_id":   null.StringFromPtr(cat.ParentID),
	}).Where(sq.Eq{"id": cat.ID})
	if err := execOne(ctx, repo.db, b, course.ErrCategoryNotFound); err != nil {
		return course.Category{}, trapUniqueErr(err, course.ErrCategoryExists)
	}
	return cat, nil
}

func (repo *courseRepository) DeleteCategory(ctx context.Context, id string) error {
	return execOne(ctx, repo.db, psql.Delete("categories").Where(sq.Eq{"id": id}), course.ErrCategoryNotFound)
}

// Courses

var courseSelect = psql.Select(
	"c.id", "c.title", "c.subtitle", "c.description", "c.about", "c.learn", "c.price", "c.instructor_id",
	"c.language", "c.default_access_days", "c.promo_image", "c.promo_video", "c.difficulty",
	"c.duration_minutes", "c.featured", "c.average_rating", "c.created_at", "c.updated_at",
	"ARRAY(SELECT tag_id::text FROM course_tags WHERE course_id = c.id) AS tag_ids",
	"ARRAY(SELECT category_id::text FROM course_categories WHERE course_id = c.id) AS category_ids",
	"ARRAY(SELECT prerequisite_id::text FROM course_prerequisites WHERE course_id = c.id) AS prerequisites",
).From("courses c")

type courseRow struct {
	ID                string          `db:"id"`
	Title             string          `db:"title"`
	Subtitle          string          `db:"subtitle"`
	Description       string          `db:"description"`
	About             string          `db:"about"`
	Learn             pq.StringArray  `db:"learn"`
	Price             decimal.Decimal `db:"price"`
	InstructorID      string          `db:"instructor_id"`
	Language          string          `db:"language"`
	DefaultAccessDays null.Int        `db:"default_access_days"`
	PromoImage        string          `db:"promo_image"`
	PromoVideo        string          `db:"promo_video"`
	Difficulty        string          `db:"difficulty"`
	DurationMinutes   null.Int        `db:"duration_minutes"`
	Featured          bool            `db:"featured"`
	AverageRating     float64         `db:"average_rating"`
	CreatedAt         time.Time       `db:"created_at"`
	UpdatedAt         time.Time       `db:"updated_at"`
	TagIDs            pq.StringArray  `db:"tag_ids"`
	CategoryIDs       pq.StringArray  `db:"category_ids"`
	Prerequisites     pq.StringArray  `db:"prerequisites"`
}

func (r courseRow) toCourse() course.Course {
	return course.Course{
		ID:                r.ID,
		Title:             r.Title,
		Subtitle:          r.Subtitle,
		Description:       r.Description,
		About:             r.About,
		Learn:             []string(r.Learn),
		Price:             r.Price,
		InstructorID:      r.InstructorID,
		Language:          r.Language,
		DefaultAccessDays: r.DefaultAccessDays.Ptr(),
		PromoImage:        r.PromoImage,
		PromoVideo:        r.PromoVideo,
		TagIDs:            []string(r.TagIDs),
		Difficulty:        r.Difficulty,
		DurationMinutes:   r.DurationMinutes.Ptr(),
		Prerequisites:     []string(r.Prerequisites),
		Featured:          r.Featured,
		CategoryIDs:       []string(r.CategoryIDs),
		AverageRating:     r.AverageRating,
		CreatedAt:         r.CreatedAt.UTC(),
		UpdatedAt:         r.UpdatedAt.UTC(),
	}
}

func (repo *courseRepository) QueryCourses(ctx context.Context, filter *course.QueryFilter, ordering []core.DBOrdering) ([]course.Course, error) {
	b := courseSelect
	if filter != nil {
		if filter.Search != "" {
			like := "%" + filter.Search + "%"
			b = b.Where(sq.Or{sq.ILike{"c.title": like}, sq.ILike{"c.subtitle": like}, sq.ILike{"c.description": like}})
		}
		if filter.CategoryID != "" {
			b = b.Where("EXISTS (SELECT 1 FROM course_categories cc WHERE cc.course_id = c.id AND cc.category_id = ?)", filter.CategoryID)
		}
		if filter.TagID != "" {
			b = b.Where("EXISTS (SELECT 1 FROM course_tags ct WHERE ct.course_id = c.id AND ct.tag_id = ?)", filter.TagID)
		}
		if filter.Difficulty != "" {
			b = b.Where(sq.Eq{"c.difficulty": filter.Difficulty})
		}
		if filter.Featured != nil {
			b = b.Where(sq.Eq{"c.featured": *filter.Featured})
		}
		if filter.InstructorID != "" {
			b = b.Where(sq.Eq{"c.instructor_id": filter.InstructorID})
		}
	}
	b = orderBy(b, ordering, "created_at DESC")

	var rows []courseRow
	if err := selectRows(ctx, repo.db, &rows, b); err != nil {
		return nil, err
	}
	courses := make([]course.Course, len(rows))
	for i, r := range rows {
		courses[i] = r.toCourse()
	}
	return courses, nil
}

func (repo *courseRepository) GetCourse(ctx context.Context, id string) (course.Course, error) {
	var r courseRow
	if err := get(ctx, repo.db, &r, courseSelect.Where(sq.Eq{"c.id": id})); err != nil {
		return course.Course{}, trapNoRowsErr(err, course.ErrNotFound)
	}
	return r.toCourse(), nil
}

func courseFields(crs course.Course) map[string]interface{} {
	return map[string]interface{}{
		"title":               crs.Title,
		"subtitle":            crs.Subtitle,
		"description":         crs.Description,
		"about":               crs.About,
		"learn":               pq.Array(emptyIfNil(crs.Learn)),
		"price":               crs.Price,
		"instructor_id":       crs.InstructorID,
		"language":            crs.Language,
		"default_access_days": null.IntFromPtr(crs.DefaultAccessDays),
		"promo_image":         crs.PromoImage,
		"promo_video":         crs.PromoVideo,
		"difficulty":          crs.Difficulty,
		"duration_minutes":    null.IntFromPtr(crs.DurationMinutes),
		"featured":            crs.Featured,
		"created_at":          crs.CreatedAt,
		"updated_at":          crs.UpdatedAt,
	}
}

// setCourseRelations replaces the tags, categories and prerequisites of a course.
func setCourseRelations(ctx context.Context, tx *sqlx.Tx, crs course.Course) error {
	relations := []struct {
		table, column string
		ids           []string
	}{
		{"course_tags", "tag_id", crs.TagIDs},
		{"course_categories", "category_id", crs.CategoryIDs},
		{"course_prerequisites", "prerequisite_id", crs.Prerequisites},
	}
	for _, rel := range relations {
		if _, err := exec(ctx, tx, psql.Delete(rel.table).Where(sq.Eq{"course_id": crs.ID})); err != nil {
			return pkgerrors.Wrapf(err, "clearing %s", rel.table)
		}
		if len(rel.ids) == 0 {
			continue
		}
		b := psql.Insert(rel.table).Columns("course_id", rel.column)
		for _, id := range rel.ids {
			b = b.Values(crs.ID, id)
		}
		if _, err := exec(ctx, tx, b.Suffix("ON CONFLICT DO NOTHING")); err != nil {
			return pkgerrors.Wrapf(err, "saving %s", rel.table)
		}
	}
	return nil
}

func (repo *courseRepository) CreateCourse(ctx context.Context, crs course.Course) (course.Course, error) {
	err := withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		fields := courseFields(crs)
		fields["id"] = crs.ID
		if _, err := exec(ctx, tx, psql.Insert("courses").SetMap(fields)); err != nil {
			return err
		}
		return setCourseRelations(ctx, tx, crs)
	})
	if err != nil {
		return course.Course{}, err
	}
	return crs, nil
}

func (repo *courseRepository) UpdateCourse(ctx context.Context, crs course.Course) (course.Course, error) {
	err := withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		fields := courseFields(crs)
		delete(fields, "created_at")
		if err := execOne(ctx, tx, psql.Update("courses").SetMap(fields).Where(sq.Eq{"id": crs.ID}), course.ErrNotFound); err != nil {
			return err
		}
		return setCourseRelations(ctx, tx, crs)
	})
	if err != nil {
		return course.Course{}, err
	}
	return crs, nil
}

func (repo *courseRepository) SetAverageRating(ctx context.Context, courseID string, rating float64) error {
	b := psql.Update("courses").Set("average_rating", rating).Where(sq.Eq{"id": courseID})
	return execOne(ctx, repo.db, b, course.ErrNotFound)
}

func (repo *courseRepository) DeleteCourse(ctx context.Context, id string) error {
	return execOne(ctx, repo.db, psql.Delete("courses").Where(sq.Eq{"id": id}), course.ErrNotFound)
}

// Modules

var moduleSelect = psql.Select("id", "course_id", "title", "description", `"order"`).From("modules")

type moduleRow struct {
	ID          string `db:"id"`
	CourseID    string `db:"course_id"`
	Title       string `db:"title"`
	Description string `db:"description"`
	Order       int    `db:"order"`
}

func (r moduleRow) toModule() course.Module {
	return course.Module(r)
}

func (repo *courseRepository) ListModules(ctx context.Context, courseID string) ([]course.Module, error) {
	var rows []moduleRow
	if err := selectRows(ctx, repo.db, &rows, moduleSelect.Where(sq.Eq{"course_id": courseID}).OrderBy(`"order"`, "id")); err != nil {
		return nil, err
	}
	mods := make([]course.Module, len(rows))
	for i, r := range rows {
		mods[i] = r.toModule()
	}
	return mods, nil
}

func (repo *courseRepository) GetModule(ctx context.Context, id string) (course.Module, error) {
	var r moduleRow
	if err := get(ctx, repo.db, &r, moduleSelect.Where(sq.Eq{"id": id})); err != nil {
		return course.Module{}, trapNoRowsErr(err, course.ErrModuleNotFound)
	}
	return r.toModule(), nil
}

func (repo *courseRepository) CreateModule(ctx context.Context, mod course.Module) (course.Module, error) {
	b := psql.Insert("modules").Columns("id", "course_id", "title", "description", `"order"`).
		Values(mod.ID, mod.CourseID, mod.Title, mod.Description, mod.Order)
	if _, err := exec(ctx, repo.db, b); err != nil {
		return course.Module{}, err
	}
	return mod, nil
}

func (repo *courseRepository) UpdateModule(ctx context.Context, mod course.Module) (course.Module, error) {
	b := psql.Update("modules").
		Set("title", mod.Title).
		Set("description", mod.Description).
		Set(`"order"`, mod.Order).
		Where(sq.Eq{"id": mod.ID})
	if err := execOne(ctx, repo.db, b, course.ErrModuleNotFound); err != nil {
		return course.Module{}, err
	}
	return mod, nil
}

func (repo *courseRepository) DeleteModule(ctx context.Context, id string) error {
	return execOne(ctx, repo.db, psql.Delete("modules").Where(sq.Eq{"id": id}), course.ErrModuleNotFound)
}

// Lessons

var lessonColumns = []string{
	"id", "course_id", "module_id", "title", "content", "duration_minutes",
	"video", "video_url", "hls_url", "thumbnail", `"order"`, "created_at",
}

type lessonRow struct {
	ID              string      `db:"id"`
	CourseID        string      `db:"course_id"`
	ModuleID        null.String `db:"module_id"`
	Title           string      `db:"title"`
	Content         string      `db:"content"`
	DurationMinutes null.Int    `db:"duration_minutes"`
	Video           string      `db:"video"`
	VideoURL        string      `db:"video_url"`
	HLSURL          string      `db:"hls_url"`
	Thumbnail       string      `db:"thumbnail"`
	Order           int         `db:"order"`
	CreatedAt       time.Time   `db:"created_at"`
}

func (r lessonRow) toLesson() course.Lesson {
	return course.Lesson{
		ID:              r.ID,
		CourseID:        r.CourseID,
		ModuleID:        r.ModuleID.Ptr(),
		Title:           r.Title,
		Content:         r.Content,
		DurationMinutes: r.DurationMinutes.Ptr(),
		Video:           r.Video,
		VideoURL:        r.VideoURL,
		HLSURL:          r.HLSURL,
		Thumbnail:       r.Thumbnail,
		Order:           r.Order,
		CreatedAt:       r.CreatedAt.UTC(),
	}
}

func (repo *courseRepository) ListLessons(ctx context.Context, courseID string) ([]course.Lesson, error) {
	var rows []lessonRow
	b := psql.Select(lessonColumns...).From("lessons").Where(sq.Eq{"course_id": courseID}).OrderBy(`"order"`, "created_at")
	if err := selectRows(ctx, repo.db, &rows, b); err != nil {
		return nil, err
	}
	lessons := make([]course.Lesson, len(rows))
	for i, r := range rows {
		lessons[i] = r.toLesson()
	}
	return lessons, nil
}

func (repo *courseRepository) GetLesson(ctx context.Context, id string) (course.Lesson, error) {
	var r lessonRow
	if err := get(ctx, repo.db, &r, psql.Select(lessonColumns...).From("lessons").Where(sq.Eq{"id": id})); err != nil {
		return course.Lesson{}, trapNoRowsErr(err, course.ErrLessonNotFound)
	}
	return r.toLesson(), nil
}

func (repo *courseRepository) CreateLesson(ctx context.Context, lsn course.Lesson) (course.Lesson, error) {
	b := psql.Insert("lessons").Columns(lessonColumns...).Values(
		lsn.ID, lsn.CourseID, null.StringFromPtr(lsn.ModuleID), lsn.Title, lsn.Content, null.IntFromPtr(lsn.DurationMinutes),
		lsn.Video, lsn.VideoURL, lsn.HLSURL, lsn.Thumbnail, lsn.Order, lsn.CreatedAt,
	)
	if _, err := exec(ctx, repo.db, b); err != nil {
		return course.Lesson{}, err
	}
	return lsn, nil
}

func (repo *courseRepository) UpdateLesson(ctx context.Context, lsn course.Lesson) (course.Lesson, error) {
	b := psql.Update("lessons").SetMap(map[string]interface{}{
		"module_id":        null.StringFromPtr(lsn.ModuleID),
		"title":            lsn.Title,
		"content":          lsn.Content,
		"duration_minutes": null.IntFromPtr(lsn.DurationMinutes),
		"video":            lsn.Video,
		"video_url":        lsn.VideoURL,
		"hls_url":          lsn.HLSURL,
		"thumbnail":        lsn.Thumbnail,
		`"order"`:          lsn.Order,
	}).Where(sq.Eq{"id": lsn.ID})
	if err := execOne(ctx, repo.db, b, course.ErrLessonNotFound); err != nil {
		return course.Lesson{}, err
	}
	return lsn, nil
}

func (repo *courseRepository) DeleteLesson(ctx context.Context, id string) error {
	return execOne(ctx, repo.db, psql.Delete("lessons").Where(sq.Eq{"id": id}), course.ErrLessonNotFound)
}

// Reviews

type reviewRow struct {
	ID        string    `db:"id"`
	UserID    string    `db:"user_id"`
	CourseID  string    `db:"course_id"`
	Rating    int       `db:"rating"`
	Text      string    `db:"text"`
	CreatedAt time.Time `db:"created_at"`
}

var reviewSelect = psql.Select("id", "user_id", "course_id", "rating", "text", "created_at").From("reviews")

func (r reviewRow) toReview() course.Review {
	rev := course.Review(r)
	rev.CreatedAt = rev.CreatedAt.UTC()
	return rev
}

func (repo *courseRepository) ListReviews(ctx context.Context, courseID string) ([]course.Review, error) {
	var rows []reviewRow
	if err := selectRows(ctx, repo.db, &rows, reviewSelect.Where(sq.Eq{"course_id": courseID}).OrderBy("created_at DESC")); err != nil {
		return nil, err
	}
	reviews := make([]course.Review, len(rows))
	for i, r := range rows {
		reviews[i] = r.toReview()
	}
	return reviews, nil
}

func (repo *courseRepository) GetReview(ctx context.Context, id string) (course.Review, error) {
	var r reviewRow
	if err := get(ctx, repo.db, &r, reviewSelect.Where(sq.Eq{"id": id})); err != nil {
		return course.Review{}, trapNoRowsErr(err, course.ErrReviewNotFound)
	}
	return r.toReview(), nil
}

func (repo *courseRepository) CreateReview(ctx context.Context, rev course.Review) (course.Review, error) {
	b := psql.Insert("reviews").Columns("id", "user_id", "course_id", "rating", "text", "created_at").
		Values(rev.ID, rev.UserID, rev.CourseID, rev.Rating, rev.Text, rev.CreatedAt)
	if _, err := exec(ctx, repo.db, b); err != nil {
		return course.Review{}, trapUniqueErr(err, course.ErrReviewExists)
	}
	return rev, nil
}

func (repo *courseRepository) UpdateReview(ctx context.Context, rev course.Review) (course.Review, error) {
	b := psql.Update("reviews").Set("rating", rev.Rating).Set("text", rev.Text).Where(sq.Eq{"id": rev.ID})
	if err := execOne(ctx, repo.db, b, course.ErrReviewNotFound); err != nil {
		return course.Review{}, err
	}
	return rev, nil
}

func (repo *courseRepository) DeleteReview(ctx context.Context, id string) error {
	return execOne(ctx, repo.db, psql.Delete("reviews").Where(sq.Eq{"id": id}), course.ErrReviewNotFound)
}

func (repo *courseRepository) AverageRating(ctx context.Context, courseID string) (float64, error) {
	var avg float64
	b := psql.Select("COALESCE(AVG(rating), 0)::float8").From("reviews").Where(sq.Eq{"course_id": courseID})
	err := get(ctx, repo.db, &avg, b)
	return avg, err
}

// Wishlist

type wishlistRow struct {
	ID       string    `db:"id"`
	UserID   string    `db:"user_id"`
	CourseID string    `db:"course_id"`
	AddedAt  time.Time `db:"added_at"`
}

func (repo *courseRepository) ListWishlist(ctx context.Context, userID string) ([]course.WishlistItem, error) {
	var rows []wishlistRow
	b := psql.Select("id", "user_id", "course_id", "added_at").From("wishlist_items").
		Where(sq.Eq{"user_id": userID}).OrderBy("added_at DESC")
	if err := selectRows(ctx, repo.db, &rows, b); err != nil {
		return nil, err
	}
	items := make([]course.WishlistItem, len(rows))
	for i, r := range rows {
		items[i] = course.WishlistItem(r)
		items[i].AddedAt = r.AddedAt.UTC()
	}
	return items, nil
}

func (repo *courseRepository) AddWishlistItem(ctx context.Context, item course.WishlistItem) (course.WishlistItem, error) {
	b := psql.Insert("wishlist_items").Columns("id", "user_id", "course_id", "added_at").
		Values(item.ID, item.UserID, item.CourseID, item.AddedAt)
	if _, err := exec(ctx, repo.db, b); err != nil {
		return course.WishlistItem{}, trapUniqueErr(err, course.ErrWishlistItemExists)
	}
	return item, nil
}

func (repo *courseRepository) DeleteWishlistItem(ctx context.Context, userID, id string) error {
	b := psql.Delete("wishlist_items").Where(sq.Eq{"id": id, "user_id": userID})
	return execOne(ctx, repo.db, b, course.ErrWishlistItemNotFound)
}

// Promotions

type promotionRow struct {
	ID              string    `db:"id"`
	CourseID        string    `db:"course_id"`
	DiscountPercent int       `db:"discount_percent"`
	StartDate       time.Time `db:"start_date"`
	EndDate         time.Time `db:"end_date"`
}

func (r promotionRow) toPromotion() course.Promotion {
	return course.Promotion{
		ID:              r.ID,
		CourseID:        r.CourseID,
		DiscountPercent: r.DiscountPercent,
		StartDate:       r.StartDate.UTC(),
		EndDate:         r.EndDate.UTC(),
	}
}

var promotionSelect = psql.Select("id", "course_id", "discount_percent", "start_date", "end_date").From("promotions")

func (repo *courseRepository) ListPromotions(ctx context.Context, courseID string) ([]course.Promotion, error) {
	var rows []promotionRow
	if err := selectRows(ctx, repo.db, &rows, promotionSelect.Where(sq.Eq{"course_id": courseID}).OrderBy("start_date DESC")); err != nil {
		return nil, err
	}
	promos := make([]course.Promotion, len(rows))
	for i, r := range rows {
		promos[i] = r.toPromotion()
	}
	return promos, nil
}

func (repo *courseRepository) GetPromotion(ctx context.Context, id string) (course.Promotion, error) {
	var r promotionRow
	if err := get(ctx, repo.db, &r, promotionSelect.Where(sq.Eq{"id": id})); err != nil {
		return course.Promotion{}, trapNoRowsErr(err, course.ErrPromotionNotFound)
	}
	return r.toPromotion(), nil
}

func (repo *courseRepository) CreatePromotion(ctx context.Context, promo course.Promotion) (course.Promotion, error) {
	b := psql.Insert("promotions").Columns("id", "course_id", "discount_percent", "start_date", "end_date").
		Values(promo.ID, promo.CourseID, promo.DiscountPercent, promo.StartDate, promo.EndDate)
	if _, err := exec(ctx, repo.db, b); err != nil {
		return course.Promotion{}, err
	}
	return promo, nil
}

func (repo *courseRepository) DeletePromotion(ctx context.Context, id string) error {
	return execOne(ctx, repo.db, psql.Delete("promotions").Where(sq.Eq{"id": id}), course.ErrPromotionNotFound)
}
