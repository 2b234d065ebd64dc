package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/acadamier/backend/core"
	"github.com/acadamier/backend/core/course"
)

var courseOrderings = map[string]compareFunc[course.Course]{
	"created_at":     func(a, b course.Course) int { return compareTimes(a.CreatedAt, b.CreatedAt) },
	"price":          func(a, b course.Course) int { return a.Price.Cmp(b.Price) },
	"title":          func(a, b course.Course) int { return compareStrings(a.Title, b.Title) },
	"average_rating": func(a, b course.Course) int { return compareFloats(a.AverageRating, b.AverageRating) },
}

type courseRepository struct {
	db *DB
}

var _ course.Repository = (*courseRepository)(nil)

func NewCourseRepository(db *DB) course.Repository {
	return &courseRepository{db: db}
}

func copyCourse(crs course.Course) course.Course {
	crs.Learn = copyStrings(crs.Learn)
	crs.TagIDs = copyStrings(crs.TagIDs)
	crs.Prerequisites = copyStrings(crs.Prerequisites)
	crs.CategoryIDs = copyStrings(crs.CategoryIDs)
	return crs
}

func contains(s []string, v string) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}

func without(s []string, v string) []string {
	if !contains(s, v) {
		return s
	}
	kept := make([]string, 0, len(s)-1)
	for _, x := range s {
		if x != v {
			kept = append(kept, x)
		}
	}
	return kept
}

// Tags

func (repo *courseRepository) QueryTags(context.Context) ([]course.Tag, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	tags := values(repo.db.tags)
	sort.Slice(tags, func(i, j int) bool { return compareStrings(tags[i].Name, tags[j].Name) < 0 })
	return tags, nil
}

func (repo *courseRepository) CreateTag(_ context.Context, tag course.Tag) (course.Tag, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, t := range repo.db.tags {
		if strings.EqualFold(t.Name, tag.Name) {
			return course.Tag{}, course.ErrTagExists
		}
	}
	repo.db.tags[tag.ID] = tag
	return tag, nil
}

// Categories

func (repo *courseRepository) QueryCategories(context.Context) ([]course.Category, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	cats := values(repo.db.categories)
	sort.Slice(cats, func(i, j int) bool { return compareStrings(cats[i].Name, cats[j].Name) < 0 })
	return cats, nil
}

func (repo *courseRepository) GetCategory(_ context.Context, id string) (course.Category, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if cat, ok := repo.db.categories[id]; ok {
		return cat, nil
	}
	return course.Category{}, course.ErrCategoryNotFound
}

func (repo *courseRepository) categoryExists(cat course.Category) bool {
	for _, c := range repo.db.categories {
		if c.ID != cat.ID && (strings.EqualFold(c.Name, cat.Name) || c.Slug == cat.Slug) {
			return true
		}
	}
	return false
}

func (repo *courseRepository) CreateCategory(_ context.Context, cat course.Category) (course.Category, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if repo.categoryExists(cat) {
		return course.Category{}, course.ErrCategoryExists
	}
	repo.db.categories[cat.ID] = cat
	return cat, nil
}

func (repo *courseRepository) UpdateCategory(_ context.Context, cat course.Category) (course.Category, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.categories[cat.ID]; !ok {
		return course.Category{}, course.ErrCategoryNotFound
	}
	if repo.categoryExists(cat) {
		return course.Category{}, course.ErrCategoryExists
	}
	repo.db.categories[cat.ID] = cat
	return cat, nil
}

func (repo *courseRepository) DeleteCategory(_ context.Context, id string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.categories[id]; !ok {
		return course.ErrCategoryNotFound
	}
	delete(repo.db.categories, id)
	for cid, cat := range repo.db.categories {
		if cat.ParentID != nil && *cat.ParentID == id {
			cat.ParentID = nil
			repo.db.categories[cid] = cat
		}
	}
	for cid, crs := range repo.db.courses {
		crs.CategoryIDs = without(crs.CategoryIDs, id)
		repo.db.courses[cid] = crs
	}
	return nil
}

// Courses

func (repo *courseRepository) QueryCourses(_ context.Context, filter *course.QueryFilter, ordering []core.DBOrdering) ([]course.Course, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	courses := make([]course.Course, 0, len(repo.db.courses))
	for _, crs := range repo.db.courses {
		if filter != nil && !matchCourse(crs, filter) {
			continue
		}
		courses = append(courses, copyCourse(crs))
	}
	orderBy(courses, ordering, courseOrderings, core.DBOrdering{Field: "created_at"})
	return courses, nil
}

func matchCourse(crs course.Course, filter *course.QueryFilter) bool {
	if filter.Search != "" {
		search := strings.ToLower(filter.Search)
		if !strings.Contains(strings.ToLower(crs.Title), search) &&
			!strings.Contains(strings.ToLower(crs.Subtitle), search) &&
			!strings.Contains(strings.ToLower(crs.Description), search) {
			return false
		}
	}
	if filter.CategoryID != "" && !contains(crs.CategoryIDs, filter.CategoryID) {
		return false
	}
	if filter.TagID != "" && !contains(crs.TagIDs, filter.TagID) {
		return false
	}
	if filter.Difficulty != "" && crs.Difficulty != filter.Difficulty {
		return false
	}
	if filter.Featured != nil && crs.Featured != *filter.Featured {
		return false
	}
	if filter.InstructorID != "" && crs.InstructorID != filter.InstructorID {
		return false
	}
	return true
}

func (repo *courseRepository) GetCourse(_ context.Context, id string) (course.Course, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if crs, ok := repo.db.courses[id]; ok {
		return copyCourse(crs), nil
	}
	return course.Course{}, course.ErrNotFound
}

func (repo *courseRepository) CreateCourse(_ context.Context, crs course.Course) (course.Course, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	repo.db.courses[crs.ID] = copyCourse(crs)
	return crs, nil
}

func (repo *courseRepository) UpdateCourse(_ context.Context, crs course.Course) (course.Course, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	orig, ok := repo.db.courses[crs.ID]
	if !ok {
		return course.Course{}, course.ErrNotFound
	}
	crs.AverageRating = orig.AverageRating // owned by SetAverageRating
	repo.db.courses[crs.ID] = copyCourse(crs)
	return crs, nil
}

func (repo *courseRepository) SetAverageRating(_ context.Context, courseID string, rating float64) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	crs, ok := repo.db.courses[courseID]
	if !ok {
		return course.ErrNotFound
	}
	crs.AverageRating = rating
	repo.db.courses[courseID] = crs
	return nil
}

func (repo *courseRepository) DeleteCourse(_ context.Context, id string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.courses[id]; !ok {
		return course.ErrNotFound
	}
	delete(repo.db.courses, id)
	for cid, crs := range repo.db.courses {
		crs.Prerequisites = without(crs.Prerequisites, id)
		repo.db.courses[cid] = crs
	}
	for mid, mod := range repo.db.modules {
		if mod.CourseID == id {
			delete(repo.db.modules, mid)
		}
	}
	for lid, lsn := range repo.db.lessons {
		if lsn.CourseID == id {
			repo.db.deleteLesson(lid)
		}
	}
	for rid, rev := range repo.db.reviews {
		if rev.CourseID == id {
			delete(repo.db.reviews, rid)
		}
	}
	for wid, item := range repo.db.wishlist {
		if item.CourseID == id {
			delete(repo.db.wishlist, wid)
		}
	}
	for pid, promo := range repo.db.promotions {
		if promo.CourseID == id {
			delete(repo.db.promotions, pid)
		}
	}
	for eid, enr := range repo.db.enrollments {
		if enr.CourseID == id {
			delete(repo.db.enrollments, eid)
		}
	}
	for cid, cp := range repo.db.courseProgress {
		if cp.CourseID == id {
			delete(repo.db.courseProgress, cid)
		}
	}
	for pid, pkg := range repo.db.packages {
		if pkg.CourseID == id {
			repo.db.deletePackage(pid)
		}
	}
	return nil
}

// Modules

func (repo *courseRepository) ListModules(_ context.Context, courseID string) ([]course.Module, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	mods := make([]course.Module, 0)
	for _, mod := range repo.db.modules {
		if mod.CourseID == courseID {
			mods = append(mods, mod)
		}
	}
	sort.Slice(mods, func(i, j int) bool {
		if mods[i].Order != mods[j].Order {
			return mods[i].Order < mods[j].Order
		}
		return mods[i].ID < mods[j].ID
	})
	return mods, nil
}

func (repo *courseRepository) GetModule(_ context.Context, id string) (course.Module, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if mod, ok := repo.db.modules[id]; ok {
		return mod, nil
	}
	return course.Module{}, course.ErrModuleNotFound
}

func (repo *courseRepository) CreateModule(_ context.Context, mod course.Module) (course.Module, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.courses[mod.CourseID]; !ok {
		return course.Module{}, course.ErrNotFound
	}
	repo.db.modules[mod.ID] = mod
	return mod, nil
}

func (repo *courseRepository) UpdateModule(_ context.Context, mod course.Module) (course.Module, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.modules[mod.ID]; !ok {
		return course.Module{}, course.ErrModuleNotFound
	}
	repo.db.modules[mod.ID] = mod
	return mod, nil
}

func (repo *courseRepository) DeleteModule(_ context.Context, id string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.modules[id]; !ok {
		return course.ErrModuleNotFound
	}
	delete(repo.db.modules, id)
	for lid, lsn := range repo.db.lessons {
		if lsn.ModuleID != nil && *lsn.ModuleID == id {
			lsn.ModuleID = nil
			repo.db.lessons[lid] = lsn
		}
	}
	return nil
}

// Lessons

func (repo *courseRepository) ListLessons(_ context.Context, courseID string) ([]course.Lesson, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	lessons := make([]course.Lesson, 0)
	for _, lsn := range repo.db.lessons {
		if lsn.CourseID == courseID {
			lessons = append(lessons, lsn)
		}
	}
	sort.Slice(lessons, func(i, j int) bool {
		if lessons[i].Order != lessons[j].Order {
			return lessons[i].Order < lessons[j].Order
		}
		return lessons[i].CreatedAt.Before(lessons[j].CreatedAt)
	})
	return lessons, nil
}

func (repo *courseRepository) GetLesson(_ context.Context, id string) (course.Lesson, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if lsn, ok := repo.db.lessons[id]; ok {
		return lsn, nil
	}
	return course.Lesson{}, course.ErrLessonNotFound
}

func (repo *courseRepository) CreateLesson(_ context.Context, lsn course.Lesson) (course.Lesson, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.courses[lsn.CourseID]; !ok {
		return course.Lesson{}, course.ErrNotFound
	}
	repo.db.lessons[lsn.ID] = lsn
	return lsn, nil
}

func (repo *courseRepository) UpdateLesson(_ context.Context, lsn course.Lesson) (course.Lesson, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.lessons[lsn.ID]; !ok {
		return course.Lesson{}, course.ErrLessonNotFound
	}
	repo.db.lessons[lsn.ID] = lsn
	return lsn, nil
}

func (repo *courseRepository) DeleteLesson(_ context.Context, id string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.lessons[id]; !ok {
		return course.ErrLessonNotFound
	}
	repo.db.deleteLesson(id)
	return nil
}

// deleteLesson removes a lesson with its quizzes, progress and certifications. db.mu must be held.
func (db *DB) deleteLesson(id string) {
	delete(db.lessons, id)
	for qid, qz := range db.quizzes {
		if qz.LessonID == id {
			delete(db.quizzes, qid)
		}
	}
	for pid, lp := range db.lessonProgress {
		if lp.LessonID == id {
			delete(db.lessonProgress, pid)
		}
	}
	for cid, cert := range db.certifications {
		if cert.LessonID == id {
			delete(db.certifications, cid)
		}
	}
}

// Reviews

func (repo *courseRepository) ListReviews(_ context.Context, courseID string) ([]course.Review, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	reviews := make([]course.Review, 0)
	for _, rev := range repo.db.reviews {
		if rev.CourseID == courseID {
			reviews = append(reviews, rev)
		}
	}
	sort.Slice(reviews, func(i, j int) bool { return reviews[i].CreatedAt.After(reviews[j].CreatedAt) })
	return reviews, nil
}

func (repo *courseRepository) GetReview(_ context.Context, id string) (course.Review, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if rev, ok := repo.db.reviews[id]; ok {
		return rev, nil
	}
	return course.Review{}, course.ErrReviewNotFound
}

func (repo *courseRepository) CreateReview(_ context.Context, rev course.Review) (course.Review, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, r := range repo.db.reviews {
		if r.UserID == rev.UserID && r.CourseID == rev.CourseID {
			return course.Review{}, course.ErrReviewExists
		}
	}
	repo.db.reviews[rev.ID] = rev
	return rev, nil
}

func (repo *courseRepository) UpdateReview(_ context.Context, rev course.Review) (course.Review, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.reviews[rev.ID]; !ok {
		return course.Review{}, course.ErrReviewNotFound
	}
	repo.db.reviews[rev.ID] = rev
	return rev, nil
}

func (repo *courseRepository) DeleteReview(_ context.Context, id string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.reviews[id]; !ok {
		return course.ErrReviewNotFound
	}
	delete(repo.db.reviews, id)
	return nil
}

func (repo *courseRepository) AverageRating(_ context.Context, courseID string) (float64, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var sum, n int
	for _, rev := range repo.db.reviews {
		if rev.CourseID == courseID {
			sum += rev.Rating
			n++
		}
	}
	if n == 0 {
		return 0, nil
	}
	return float64(sum) / float64(n), nil
}

// Wishlist

func (repo *courseRepository) ListWishlist(_ context.Context, userID string) ([]course.WishlistItem, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	items := make([]course.WishlistItem, 0)
	for _, item := range repo.db.wishlist {
		if item.UserID == userID {
			items = append(items, item)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].AddedAt.After(items[j].AddedAt) })
	return items, nil
}

func (repo *courseRepository) AddWishlistItem(_ context.Context, item course.WishlistItem) (course.WishlistItem, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, it := range repo.db.wishlist {
		if it.UserID == item.UserID && it.CourseID == item.CourseID {
			return course.WishlistItem{}, course.ErrWishlistItemExists
		}
	}
	repo.db.wishlist[item.ID] = item
	return item, nil
}

func (repo *courseRepository) DeleteWishlistItem(_ context.Context, userID, id string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	item, ok := repo.db.wishlist[id]
	if !ok || item.UserID != userID {
		return course.ErrWishlistItemNotFound
	}
	delete(repo.db.wishlist, id)
	return nil
}

// Promotions

func (repo *courseRepository) ListPromotions(_ context.Context, courseID string) ([]course.Promotion, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	promos := make([]course.Promotion, 0)
	for _, promo := range repo.db.promotions {
		if promo.CourseID == courseID {
			promos = append(promos, promo)
		}
	}
	sort.Slice(promos, func(i, j int) bool { return promos[i].StartDate.After(promos[j].StartDate) })
	return promos, nil
}

func (repo *courseRepository) GetPromotion(_ context.Context, id string) (course.Promotion, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if promo, ok := repo.db.promotions[id]; ok {
		return promo, nil
	}
	return course.Promotion{}, course.ErrPromotionNotFound
}

func (repo *courseRepository) CreatePromotion(_ context.Context, promo course.Promotion) (course.Promotion, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.courses[promo.CourseID]; !ok {
		return course.Promotion{}, course.ErrNotFound
	}
	repo.db.promotions[promo.ID] = promo
	return promo, nil
}

func (repo *courseRepository) DeletePromotion(_ context.Context, id string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.promotions[id]; !ok {
		return course.ErrPromotionNotFound
	}
	delete(repo.db.promotions, id)
	return nil
}
