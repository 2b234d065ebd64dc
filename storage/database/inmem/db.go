package inmemdb

import (
	"sync"
	"time"

	"github.com/acadamier/backend/core/course"
	"github.com/acadamier/backend/core/notification"
	"github.com/acadamier/backend/core/payment"
	"github.com/acadamier/backend/core/progress"
	"github.com/acadamier/backend/core/quiz"
	"github.com/acadamier/backend/core/scorm"
	"github.com/acadamier/backend/core/team"
	"github.com/acadamier/backend/core/user"
)

// DB is an in-memory database, shared by every repository so that they can read across tables.
type DB struct {
	mu sync.RWMutex

	users         map[string]user.User
	revokedTokens map[string]time.Time

	tags        map[string]course.Tag
	categories  map[string]course.Category
	courses     map[string]course.Course
	modules     map[string]course.Module
	lessons     map[string]course.Lesson
	reviews     map[string]course.Review
	wishlist    map[string]course.WishlistItem
	promotions  map[string]course.Promotion
	quizzes     map[string]quiz.Quiz
	enrollments map[string]payment.Enrollment

	transactions     map[string]payment.Transaction
	bulkTransactions map[string]payment.BulkTransaction

	organizations map[string]team.Organization
	members       map[string]team.Member
	bulkPurchases map[string]team.BulkPurchase
	snapshots     map[string]team.AnalyticsSnapshot

	lessonProgress      map[string]progress.LessonProgress
	courseProgress      map[string]progress.CourseProgress
	scormProgress       map[string]progress.ScormProgress
	certifications      map[string]progress.Certification
	scormCertifications map[string]progress.ScormCertification

	packages map[string]scorm.Package
	scos     map[string]scorm.Sco
	runtime  map[string]scorm.RuntimeData

	notifications map[string]notification.Notification
}

func Open() *DB {
	return &DB{
		users:               make(map[string]user.User),
		revokedTokens:       make(map[string]time.Time),
		tags:                make(map[string]course.Tag),
		categories:          make(map[string]course.Category),
		courses:             make(map[string]course.Course),
		modules:             make(map[string]course.Module),
		lessons:             make(map[string]course.Lesson),
		reviews:             make(map[string]course.Review),
		wishlist:            make(map[string]course.WishlistItem),
		promotions:          make(map[string]course.Promotion),
		quizzes:             make(map[string]quiz.Quiz),
		enrollments:         make(map[string]payment.Enrollment),
		transactions:        make(map[string]payment.Transaction),
		bulkTransactions:    make(map[string]payment.BulkTransaction),
		organizations:       make(map[string]team.Organization),
		members:             make(map[string]team.Member),
		bulkPurchases:       make(map[string]team.BulkPurchase),
		snapshots:           make(map[string]team.AnalyticsSnapshot),
		lessonProgress:      make(map[string]progress.LessonProgress),
		courseProgress:      make(map[string]progress.CourseProgress),
		scormProgress:       make(map[string]progress.ScormProgress),
		certifications:      make(map[string]progress.Certification),
		scormCertifications: make(map[string]progress.ScormCertification),
		packages:            make(map[string]scorm.Package),
		scos:                make(map[string]scorm.Sco),
		runtime:             make(map[string]scorm.RuntimeData),
		notifications:       make(map[string]notification.Notification),
	}
}

// Flush empties every table.
func (db *DB) Flush() {
	fresh := Open()
	db.mu.Lock()
	defer db.mu.Unlock()
	db.users, db.revokedTokens = fresh.users, fresh.revokedTokens
	db.tags, db.categories, db.courses = fresh.tags, fresh.categories, fresh.courses
	db.modules, db.lessons, db.reviews = fresh.modules, fresh.lessons, fresh.reviews
	db.wishlist, db.promotions, db.quizzes = fresh.wishlist, fresh.promotions, fresh.quizzes
	db.enrollments, db.transactions, db.bulkTransactions = fresh.enrollments, fresh.transactions, fresh.bulkTransactions
	db.organizations, db.members = fresh.organizations, fresh.members
	db.bulkPurchases, db.snapshots = fresh.bulkPurchases, fresh.snapshots
	db.lessonProgress, db.courseProgress, db.scormProgress = fresh.lessonProgress, fresh.courseProgress, fresh.scormProgress
	db.certifications, db.scormCertifications = fresh.certifications, fresh.scormCertifications
	db.packages, db.scos, db.runtime = fresh.packages, fresh.scos, fresh.runtime
	db.notifications = fresh.notifications
}

func values[K comparable, V any](m map[K]V) []V {
	vals := make([]V, 0, len(m))
	for _, v := range m {
		vals = append(vals, v)
	}
	return vals
}

func copyStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s...)
}

func copyStringMap(m map[string]string) map[string]string {
	cp := make(map[string]string, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}
