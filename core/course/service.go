package course

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	pkgerrors "github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/acadamier/backend/core"
)

const (
	TaskRebuildIndex   = "course.rebuild_index"
	TaskTranscodeVideo = "course.transcode_video"

	transcodeMaxRetries = 5
)

var (
	// errors
	ErrNotFound             = core.NewNotFoundError("course not found")
	ErrCategoryNotFound     = core.NewNotFoundError("category not found")
	ErrModuleNotFound       = core.NewNotFoundError("module not found")
	ErrLessonNotFound       = core.NewNotFoundError("lesson not found")
	ErrReviewNotFound       = core.NewNotFoundError("review not found")
	ErrWishlistItemNotFound = core.NewNotFoundError("wishlist item not found")
	ErrPromotionNotFound    = core.NewNotFoundError("promotion not found")

	ErrTagExists          = errors.New("a tag with this name already exists")
	ErrCategoryExists     = errors.New("a category with this name or slug already exists")
	ErrReviewExists       = errors.New("you have already reviewed this course")
	ErrWishlistItemExists = errors.New("course already in wishlist")

	errModuleCourseMismatch = errors.New("module does not belong to this course")
)

type (
	Repository interface {
		QueryTags(ctx context.Context) ([]Tag, error)
		CreateTag(ctx context.Context, tag Tag) (Tag, error)

		QueryCategories(ctx context.Context) ([]Category, error)
		GetCategory(ctx context.Context, id string) (Category, error)
		CreateCategory(ctx context.Context, cat Category) (Category, error)
		UpdateCategory(ctx context.Context, cat Category) (Category, error)
		DeleteCategory(ctx context.Context, id string) error

		// QueryCourses applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of Course.Title, Course.Subtitle or Course.Description.
		QueryCourses(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Course, error)
		GetCourse(ctx context.Context, id string) (Course, error)
		CreateCourse(ctx context.Context, crs Course) (Course, error)
		UpdateCourse(ctx context.Context, crs Course) (Course, error)
		SetAverageRating(ctx context.Context, courseID string, rating float64) error
		DeleteCourse(ctx context.Context, id string) error

		ListModules(ctx context.Context, courseID string) ([]Module, error)
		GetModule(ctx context.Context, id string) (Module, error)
		CreateModule(ctx context.Context, mod Module) (Module, error)
		UpdateModule(ctx context.Context, mod Module) (Module, error)
		DeleteModule(ctx context.Context, id string) error

		ListLessons(ctx context.Context, courseID string) ([]Lesson, error)
		GetLesson(ctx context.Context, id string) (Lesson, error)
		CreateLesson(ctx context.Context, lsn Lesson) (Lesson, error)
		UpdateLesson(ctx context.Context, lsn Lesson) (Lesson, error)
		DeleteLesson(ctx context.Context, id string) error

		// ListReviews returns the reviews of a Course, newest first.
		ListReviews(ctx context.Context, courseID string) ([]Review, error)
		GetReview(ctx context.Context, id string) (Review, error)
		CreateReview(ctx context.Context, rev Review) (Review, error)
		UpdateReview(ctx context.Context, rev Review) (Review, error)
		DeleteReview(ctx context.Context, id string) error
		// AverageRating returns the mean rating of a Course, 0 when it has no reviews.
		AverageRating(ctx context.Context, courseID string) (float64, error)

		ListWishlist(ctx context.Context, userID string) ([]WishlistItem, error)
		AddWishlistItem(ctx context.Context, item WishlistItem) (WishlistItem, error)
		DeleteWishlistItem(ctx context.Context, userID, id string) error

		// ListPromotions returns the promotions of a Course, by start date, newest first.
		ListPromotions(ctx context.Context, courseID string) ([]Promotion, error)
		GetPromotion(ctx context.Context, id string) (Promotion, error)
		CreatePromotion(ctx context.Context, promo Promotion) (Promotion, error)
		DeletePromotion(ctx context.Context, id string) error
	}

	// Transcoder converts lesson videos to HLS.
	Transcoder interface {
		// Transcode converts the video stored under the media name `src`,
		// and returns the media names of the HLS playlist and of the thumbnail.
		Transcode(ctx context.Context, lessonID, src string) (playlist, thumbnail string, err error)
	}

	// LessonListener is notified whenever a new lesson is added to a course.
	LessonListener interface {
		LessonPublished(ctx context.Context, crs Course, lsn Lesson)
	}

	Service interface {
		QueryTags(ctx context.Context) ([]Tag, error)
		CreateTag(ctx context.Context, nt NewTag) (Tag, error)

		QueryCategories(ctx context.Context) ([]Category, error)
		GetCategory(ctx context.Context, id string) (Category, error)
		CreateCategory(ctx context.Context, nc NewCategory) (Category, error)
		UpdateCategory(ctx context.Context, cat Category, nc NewCategory) (Category, error)
		DeleteCategory(ctx context.Context, id string) error

		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Course, error)
		GetByID(ctx context.Context, id string) (Course, error)
		Create(ctx context.Context, instructorID string, nc NewCourse) (Course, error)
		Update(ctx context.Context, crs Course, uc UpdateCourse) (Course, error)
		Delete(ctx context.Context, id string) error
		EffectivePrice(ctx context.Context, crs Course, at time.Time) (decimal.Decimal, error)
		RebuildIndex(ctx context.Context, courseID string) error

		ListModules(ctx context.Context, courseID string) ([]Module, error)
		GetModule(ctx context.Context, id string) (Module, error)
		CreateModule(ctx context.Context, nm NewModule) (Module, error)
		UpdateModule(ctx context.Context, mod Module, um UpdateModule) (Module, error)
		DeleteModule(ctx context.Context, id string) error

		ListLessons(ctx context.Context, courseID string) ([]Lesson, error)
		GetLesson(ctx context.Context, id string) (Lesson, error)
		CreateLesson(ctx context.Context, crs Course, nl NewLesson) (Lesson, error)
		UpdateLesson(ctx context.Context, lsn Lesson, ul UpdateLesson) (Lesson, error)
		DeleteLesson(ctx context.Context, id string) error
		UploadVideo(ctx context.Context, lsn Lesson, filename string, r io.Reader) (Lesson, error)
		TranscodeVideo(ctx context.Context, lessonID string) error

		ListReviews(ctx context.Context, courseID string) ([]Review, error)
		GetReview(ctx context.Context, id string) (Review, error)
		CreateReview(ctx context.Context, userID string, nr NewReview) (Review, error)
		UpdateReview(ctx context.Context, rev Review, ur UpdateReview) (Review, error)
		DeleteReview(ctx context.Context, rev Review) error

		ListWishlist(ctx context.Context, userID string) ([]WishlistItem, error)
		AddToWishlist(ctx context.Context, userID string, nw NewWishlistItem) (WishlistItem, error)
		RemoveFromWishlist(ctx context.Context, userID, id string) error

		ListPromotions(ctx context.Context, courseID string) ([]Promotion, error)
		GetPromotion(ctx context.Context, id string) (Promotion, error)
		CreatePromotion(ctx context.Context, np NewPromotion) (Promotion, error)
		DeletePromotion(ctx context.Context, id string) error
	}

	service struct {
		repo       Repository
		tasks      core.TaskQueue
		media      core.MediaStorage
		transcoder Transcoder
		logger     core.Logger
		sanitizer  *bluemonday.Policy
		tracer     trace.Tracer
		listeners  []LessonListener
	}
)

var _ Service = (*service)(nil)

func NewService(
	repo Repository,
	tasks core.TaskQueue,
	media core.MediaStorage,
	transcoder Transcoder,
	logger core.Logger,
	listeners ...LessonListener,
) Service {
	return &service{
		repo:       repo,
		tasks:      tasks,
		media:      media,
		transcoder: transcoder,
		logger:     logger,
		sanitizer:  bluemonday.UGCPolicy(),
		tracer:     otel.Tracer("course/service"),
		listeners:  listeners,
	}
}

// Tags

func (svc *service) QueryTags(ctx context.Context) ([]Tag, error) {
	return svc.repo.QueryTags(ctx)
}

func (svc *service) CreateTag(ctx context.Context, nt NewTag) (Tag, error) {
	tag, err := svc.repo.CreateTag(ctx, Tag{ID: uuid.NewString(), Name: nt.Name})
	if pkgerrors.Cause(err) == ErrTagExists {
		return Tag{}, core.NewValidationError(err, core.FieldError{Field: "name", Error: err.Error()})
	}
	return tag, err
}

// Categories

func (svc *service) QueryCategories(ctx context.Context) ([]Category, error) {
	return svc.repo.QueryCategories(ctx)
}

func (svc *service) GetCategory(ctx context.Context, id string) (Category, error) {
	return svc.repo.GetCategory(ctx, id)
}

func (svc *service) CreateCategory(ctx context.Context, nc NewCategory) (Category, error) {
	if err := svc.checkParentCategory(ctx, "", nc.ParentID); err != nil {
		return Category{}, err
	}
	cat, err := svc.repo.CreateCategory(ctx, Category{
		ID:          uuid.NewString(),
		Name:        nc.Name,
		Slug:        nc.Slug,
		Subtitle:    nc.Subtitle,
		Description: svc.sanitizer.Sanitize(nc.Description),
		Image:       nc.Image,
		ParentID:    nc.ParentID,
	})
	if pkgerrors.Cause(err) == ErrCategoryExists {
		return Category{}, core.NewValidationError(err, core.FieldError{Field: "name", Error: err.Error()})
	}
	return cat, err
}

func (svc *service) UpdateCategory(ctx context.Context, cat Category, nc NewCategory) (Category, error) {
	if err := svc.checkParentCategory(ctx, cat.ID, nc.ParentID); err != nil {
		return Category{}, err
	}
	cat.Name = nc.Name
	cat.Slug = nc.Slug
	cat.Subtitle = nc.Subtitle
	cat.Description = svc.sanitizer.Sanitize(nc.Description)
	cat.Image = nc.Image
	cat.ParentID = nc.ParentID

	cat, err := svc.repo.UpdateCategory(ctx, cat)
	if pkgerrors.Cause(err) == ErrCategoryExists {
		return Category{}, core.NewValidationError(err, core.FieldError{Field: "name", Error: err.Error()})
	}
	return cat, err
}

// checkParentCategory ensures the parent exists and is not the category itself or one of its descendants.
func (svc *service) checkParentCategory(ctx context.Context, catID string, parentID *string) error {
	invalidParent := func(msg string) error {
		return core.NewValidationError(errors.New(msg), core.FieldError{Field: "parent", Error: msg})
	}
	for id := parentID; id != nil; {
		if *id == catID {
			return invalidParent("a category cannot be its own ancestor")
		}
		parent, err := svc.repo.GetCategory(ctx, *id)
		if err != nil {
			if pkgerrors.Cause(err) == ErrCategoryNotFound {
				return invalidParent("parent category not found")
			}
			return pkgerrors.Wrap(err, "finding parent category")
		}
		id = parent.ParentID
	}
	return nil
}

func (svc *service) DeleteCategory(ctx context.Context, id string) error {
	return svc.repo.DeleteCategory(ctx, id)
}

// Courses

func (svc *service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Course, error) {
	traceCtx, span := svc.tracer.Start(ctx, "Query")
	defer span.End()

	ordering = core.CleanOrderings(ordering, "created_at", "price", "title", "average_rating")
	return svc.repo.QueryCourses(traceCtx, filter, ordering)
}

func (svc *service) GetByID(ctx context.Context, id string) (Course, error) {
	return svc.repo.GetCourse(ctx, id)
}

func (svc *service) Create(ctx context.Context, instructorID string, nc NewCourse) (Course, error) {
	traceCtx, span := svc.tracer.Start(ctx, "Create")
	defer span.End()

	now := time.Now().UTC()
	crs, err := svc.repo.CreateCourse(traceCtx, Course{
		ID:                uuid.NewString(),
		Title:             nc.Title,
		Subtitle:          nc.Subtitle,
		Description:       svc.sanitizer.Sanitize(nc.Description),
		About:             svc.sanitizer.Sanitize(nc.About),
		Learn:             nc.Learn,
		Price:             nc.Price.Round(2),
		InstructorID:      instructorID,
		Language:          nc.Language,
		DefaultAccessDays: nc.DefaultAccessDays,
		PromoImage:        nc.PromoImage,
		PromoVideo:        nc.PromoVideo,
		TagIDs:            nc.TagIDs,
		Difficulty:        nc.Difficulty,
		DurationMinutes:   nc.DurationMinutes,
		Prerequisites:     nc.Prerequisites,
		Featured:          nc.Featured,
		CategoryIDs:       nc.CategoryIDs,
		CreatedAt:         now,
		UpdatedAt:         now,
	})
	if err != nil {
		span.RecordError(err)
		return Course{}, pkgerrors.Wrap(err, "creating course")
	}
	svc.enqueueRebuildIndex(crs.ID)
	return crs, nil
}

func (svc *service) Update(ctx context.Context, crs Course, uc UpdateCourse) (Course, error) {
	traceCtx, span := svc.tracer.Start(ctx, "Update")
	defer span.End()

	if uc.Title != nil {
		crs.Title = *uc.Title
	}
	if uc.Subtitle != nil {
		crs.Subtitle = *uc.Subtitle
	}
	if uc.Description != nil {
		crs.Description = svc.sanitizer.Sanitize(*uc.Description)
	}
	if uc.About != nil {
		crs.About = svc.sanitizer.Sanitize(*uc.About)
	}
	if uc.Learn != nil {
		crs.Learn = uc.Learn
	}
	if uc.Price != nil {
		crs.Price = uc.Price.Round(2)
	}
	if uc.Language != nil {
		crs.Language = *uc.Language
	}
	if uc.DefaultAccessDays != nil {
		crs.DefaultAccessDays = uc.DefaultAccessDays
	}
	if uc.PromoImage != nil {
		crs.PromoImage = *uc.PromoImage
	}
	if uc.PromoVideo != nil {
		crs.PromoVideo = *uc.PromoVideo
	}
	if uc.TagIDs != nil {
		crs.TagIDs = uc.TagIDs
	}
	if uc.Difficulty != nil {
		crs.Difficulty = *uc.Difficulty
	}
	if uc.DurationMinutes != nil {
		crs.DurationMinutes = uc.DurationMinutes
	}
	if uc.Prerequisites != nil {
		for _, id := range uc.Prerequisites {
			if id == crs.ID {
				msg := "a course cannot be its own prerequisite"
				return Course{}, core.NewValidationError(errors.New(msg), core.FieldError{Field: "prerequisites", Error: msg})
			}
		}
		crs.Prerequisites = uc.Prerequisites
	}
	if uc.Featured != nil {
		crs.Featured = *uc.Featured
	}
	if uc.CategoryIDs != nil {
		crs.CategoryIDs = uc.CategoryIDs
	}
	crs.UpdatedAt = time.Now().UTC()

	crs, err := svc.repo.UpdateCourse(traceCtx, crs)
	if err != nil {
		return Course{}, pkgerrors.Wrap(err, "updating course")
	}
	svc.enqueueRebuildIndex(crs.ID)
	return crs, nil
}

func (svc *service) Delete(ctx context.Context, id string) error {
	return svc.repo.DeleteCourse(ctx, id)
}

// EffectivePrice returns the price of the course at `at`, minus the largest active promotion.
func (svc *service) EffectivePrice(ctx context.Context, crs Course, at time.Time) (decimal.Decimal, error) {
	promos, err := svc.repo.ListPromotions(ctx, crs.ID)
	if err != nil {
		return decimal.Zero, pkgerrors.Wrap(err, "listing promotions")
	}
	var discount int
	for _, p := range promos {
		if p.IsActive(at) && p.DiscountPercent > discount {
			discount = p.DiscountPercent
		}
	}
	if discount == 0 {
		return crs.Price, nil
	}
	off := crs.Price.Mul(decimal.NewFromInt(int64(discount))).Div(decimal.NewFromInt(100))
	return crs.Price.Sub(off).Round(2), nil
}

// RebuildIndex recomputes the aggregates stored on a course.
func (svc *service) RebuildIndex(ctx context.Context, courseID string) error {
	traceCtx, span := svc.tracer.Start(ctx, "RebuildIndex")
	defer span.End()

	avg, err := svc.repo.AverageRating(traceCtx, courseID)
	if err != nil {
		return pkgerrors.Wrap(err, "computing average rating")
	}
	if err = svc.repo.SetAverageRating(traceCtx, courseID, core.Round2(avg)); err != nil {
		if pkgerrors.Cause(err) == ErrNotFound {
			return nil // deleted meanwhile
		}
		return pkgerrors.Wrap(err, "setting average rating")
	}
	return nil
}

func (svc *service) enqueueRebuildIndex(courseID string) {
	svc.tasks.Enqueue(core.Task{
		Name:       TaskRebuildIndex,
		MaxRetries: 3,
		Run: func(ctx context.Context) error {
			return svc.RebuildIndex(ctx, courseID)
		},
	})
}

// Modules

func (svc *service) ListModules(ctx context.Context, courseID string) ([]Module, error) {
	return svc.repo.ListModules(ctx, courseID)
}

func (svc *service) GetModule(ctx context.Context, id string) (Module, error) {
	return svc.repo.GetModule(ctx, id)
}

func (svc *service) CreateModule(ctx context.Context, nm NewModule) (Module, error) {
	return svc.repo.CreateModule(ctx, Module{
		ID:          uuid.NewString(),
		CourseID:    nm.CourseID,
		Title:       nm.Title,
		Description: nm.Description,
		Order:       nm.Order,
	})
}

func (svc *service) UpdateModule(ctx context.Context, mod Module, um UpdateModule) (Module, error) {
	if um.Title != nil {
		mod.Title = core.CleanString(*um.Title)
	}
	if um.Description != nil {
		mod.Description = *um.Description
	}
	if um.Order != nil {
		mod.Order = *um.Order
	}
	return svc.repo.UpdateModule(ctx, mod)
}

func (svc *service) DeleteModule(ctx context.Context, id string) error {
	return svc.repo.DeleteModule(ctx, id)
}

// Lessons

func (svc *service) ListLessons(ctx context.Context, courseID string) ([]Lesson, error) {
	return svc.repo.ListLessons(ctx, courseID)
}

func (svc *service) GetLesson(ctx context.Context, id string) (Lesson, error) {
	return svc.repo.GetLesson(ctx, id)
}

func (svc *service) checkModule(ctx context.Context, courseID string, moduleID *string) error {
	if moduleID == nil {
		return nil
	}
	mod, err := svc.repo.GetModule(ctx, *moduleID)
	if err != nil {
		if pkgerrors.Cause(err) == ErrModuleNotFound {
			return core.NewValidationError(err, core.FieldError{Field: "module", Error: err.Error()})
		}
		return pkgerrors.Wrap(err, "finding module")
	}
	if mod.CourseID != courseID {
		return core.NewValidationError(errModuleCourseMismatch, core.FieldError{Field: "module", Error: errModuleCourseMismatch.Error()})
	}
	return nil
}

func (svc *service) CreateLesson(ctx context.Context, crs Course, nl NewLesson) (Lesson, error) {
	traceCtx, span := svc.tracer.Start(ctx, "CreateLesson")
	defer span.End()

	if err := svc.checkModule(traceCtx, crs.ID, nl.ModuleID); err != nil {
		return Lesson{}, err
	}
	lsn, err := svc.repo.CreateLesson(traceCtx, Lesson{
		ID:              uuid.NewString(),
		CourseID:        crs.ID,
		ModuleID:        nl.ModuleID,
		Title:           nl.Title,
		Content:         svc.sanitizer.Sanitize(nl.Content),
		DurationMinutes: nl.DurationMinutes,
		VideoURL:        nl.VideoURL,
		Order:           nl.Order,
		CreatedAt:       time.Now().UTC(),
	})
	if err != nil {
		span.RecordError(err)
		return Lesson{}, pkgerrors.Wrap(err, "creating lesson")
	}

	for _, l := range svc.listeners {
		l.LessonPublished(traceCtx, crs, lsn)
	}
	return lsn, nil
}

func (svc *service) UpdateLesson(ctx context.Context, lsn Lesson, ul UpdateLesson) (Lesson, error) {
	if ul.ModuleID != nil {
		if err := svc.checkModule(ctx, lsn.CourseID, ul.ModuleID); err != nil {
			return Lesson{}, err
		}
		lsn.ModuleID = ul.ModuleID
	}
	if ul.Title != nil {
		lsn.Title = core.CleanString(*ul.Title)
	}
	if ul.Content != nil {
		lsn.Content = svc.sanitizer.Sanitize(*ul.Content)
	}
	if ul.DurationMinutes != nil {
		lsn.DurationMinutes = ul.DurationMinutes
	}
	if ul.VideoURL != nil {
		lsn.VideoURL = *ul.VideoURL
	}
	if ul.Order != nil {
		lsn.Order = *ul.Order
	}
	return svc.repo.UpdateLesson(ctx, lsn)
}

func (svc *service) DeleteLesson(ctx context.Context, id string) error {
	return svc.repo.DeleteLesson(ctx, id)
}

// UploadVideo replaces the video file of a lesson and schedules its transcoding.
func (svc *service) UploadVideo(ctx context.Context, lsn Lesson, filename string, r io.Reader) (Lesson, error) {
	traceCtx, span := svc.tracer.Start(ctx, "UploadVideo")
	defer span.End()

	name, err := svc.media.Save(traceCtx, path.Join("videos", lsn.ID, path.Base(filename)), r)
	if err != nil {
		span.RecordError(err)
		return Lesson{}, pkgerrors.Wrap(err, "saving video")
	}
	if lsn.Video != "" && lsn.Video != name {
		if err = svc.media.Delete(traceCtx, lsn.Video); err != nil {
			svc.logger.Warn(fmt.Sprintf("course.UploadVideo: deleting %s: %v", lsn.Video, err), err)
		}
	}

	lsn.Video = name
	lsn.VideoURL = svc.media.URL(name)
	lsn.HLSURL = ""
	lsn.Thumbnail = ""
	if lsn, err = svc.repo.UpdateLesson(traceCtx, lsn); err != nil {
		return Lesson{}, pkgerrors.Wrap(err, "updating lesson")
	}

	lessonID := lsn.ID
	svc.tasks.Enqueue(core.Task{
		Name:       TaskTranscodeVideo,
		MaxRetries: transcodeMaxRetries,
		Run: func(ctx context.Context) error {
			return svc.TranscodeVideo(ctx, lessonID)
		},
	})
	return lsn, nil
}

// TranscodeVideo converts the lesson's video to HLS and stores the resulting playlist and thumbnail URLs.
func (svc *service) TranscodeVideo(ctx context.Context, lessonID string) error {
	traceCtx, span := svc.tracer.Start(ctx, "TranscodeVideo")
	defer span.End()

	lsn, err := svc.repo.GetLesson(traceCtx, lessonID)
	if err != nil {
		if pkgerrors.Cause(err) == ErrLessonNotFound {
			return nil // deleted meanwhile
		}
		return pkgerrors.Wrap(err, "finding lesson")
	}
	if lsn.Video == "" {
		return nil
	}

	playlist, thumb, err := svc.transcoder.Transcode(traceCtx, lsn.ID, lsn.Video)
	if err != nil {
		span.RecordError(err)
		return pkgerrors.Wrap(err, "transcoding video")
	}
	lsn.HLSURL = svc.media.URL(playlist)
	lsn.Thumbnail = svc.media.URL(thumb)
	_, err = svc.repo.UpdateLesson(traceCtx, lsn)
	return err
}

// Reviews

func (svc *service) ListReviews(ctx context.Context, courseID string) ([]Review, error) {
	return svc.repo.ListReviews(ctx, courseID)
}

func (svc *service) GetReview(ctx context.Context, id string) (Review, error) {
	return svc.repo.GetReview(ctx, id)
}

func (svc *service) CreateReview(ctx context.Context, userID string, nr NewReview) (Review, error) {
	rev, err := svc.repo.CreateReview(ctx, Review{
		ID:        uuid.NewString(),
		UserID:    userID,
		CourseID:  nr.CourseID,
		Rating:    nr.Rating,
		Text:      nr.Text,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		if pkgerrors.Cause(err) == ErrReviewExists {
			return Review{}, core.NewValidationError(err)
		}
		return Review{}, pkgerrors.Wrap(err, "creating review")
	}
	svc.enqueueRebuildIndex(rev.CourseID)
	return rev, nil
}

func (svc *service) UpdateReview(ctx context.Context, rev Review, ur UpdateReview) (Review, error) {
	if ur.Rating != nil {
		rev.Rating = *ur.Rating
	}
	if ur.Text != nil {
		rev.Text = core.CleanString(*ur.Text)
	}
	rev, err := svc.repo.UpdateReview(ctx, rev)
	if err != nil {
		return Review{}, pkgerrors.Wrap(err, "updating review")
	}
	svc.enqueueRebuildIndex(rev.CourseID)
	return rev, nil
}

func (svc *service) DeleteReview(ctx context.Context, rev Review) error {
	if err := svc.repo.DeleteReview(ctx, rev.ID); err != nil {
		return pkgerrors.Wrap(err, "deleting review")
	}
	svc.enqueueRebuildIndex(rev.CourseID)
	return nil
}

// Wishlist

func (svc *service) ListWishlist(ctx context.Context, userID string) ([]WishlistItem, error) {
	return svc.repo.ListWishlist(ctx, userID)
}

func (svc *service) AddToWishlist(ctx context.Context, userID string, nw NewWishlistItem) (WishlistItem, error) {
	if _, err := svc.repo.GetCourse(ctx, nw.CourseID); err != nil {
		if pkgerrors.Cause(err) == ErrNotFound {
			return WishlistItem{}, core.NewValidationError(err, core.FieldError{Field: "course", Error: err.Error()})
		}
		return WishlistItem{}, pkgerrors.Wrap(err, "finding course")
	}
	item, err := svc.repo.AddWishlistItem(ctx, WishlistItem{
		ID:       uuid.NewString(),
		UserID:   userID,
		CourseID: nw.CourseID,
		AddedAt:  time.Now().UTC(),
	})
	if pkgerrors.Cause(err) == ErrWishlistItemExists {
		return WishlistItem{}, core.NewValidationError(err)
	}
	return item, err
}

func (svc *service) RemoveFromWishlist(ctx context.Context, userID, id string) error {
	return svc.repo.DeleteWishlistItem(ctx, userID, id)
}

// Promotions

func (svc *service) ListPromotions(ctx context.Context, courseID string) ([]Promotion, error) {
	return svc.repo.ListPromotions(ctx, courseID)
}

func (svc *service) GetPromotion(ctx context.Context, id string) (Promotion, error) {
	return svc.repo.GetPromotion(ctx, id)
}

func (svc *service) CreatePromotion(ctx context.Context, np NewPromotion) (Promotion, error) {
	return svc.repo.CreatePromotion(ctx, Promotion{
		ID:              uuid.NewString(),
		CourseID:        np.CourseID,
		DiscountPercent: np.DiscountPercent,
		StartDate:       np.StartDate,
		EndDate:         np.EndDate,
	})
}

func (svc *service) DeletePromotion(ctx context.Context, id string) error {
	return svc.repo.DeletePromotion(ctx, id)
}
