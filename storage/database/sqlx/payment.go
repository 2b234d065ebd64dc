package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"
	"github.com/volatiletech/null/v8"

	"github.com/acadamier/backend/core/payment"
)

type paymentRepository struct {
	db *DB
}

var _ payment.Repository = (*paymentRepository)(nil)

// NewPaymentRepository also serves as the payment.EnrollmentRepository.
func NewPaymentRepository(db *DB) payment.Repository {
	return &paymentRepository{db: db}
}

// Enrollments

type enrollmentRow struct {
	ID         string    `db:"id"`
	UserID     string    `db:"user_id"`
	CourseID   string    `db:"course_id"`
	EnrolledAt time.Time `db:"enrolled_at"`
	ExpiresAt  null.Time `db:"expires_at"`
}

func (r enrollmentRow) toEnrollment() payment.Enrollment {
	enr := payment.Enrollment{ID: r.ID, UserID: r.UserID, CourseID: r.CourseID, EnrolledAt: r.EnrolledAt.UTC()}
	if r.ExpiresAt.Valid {
		exp := r.ExpiresAt.Time.UTC()
		enr.ExpiresAt = &exp
	}
	return enr
}

var enrollmentSelect = psql.Select("id", "user_id", "course_id", "enrolled_at", "expires_at").From("enrollments")

func (repo *paymentRepository) GetEnrollment(ctx context.Context, userID, courseID string) (payment.Enrollment, error) {
	var r enrollmentRow
	if err := get(ctx, repo.db, &r, enrollmentSelect.Where(sq.Eq{"user_id": userID, "course_id": courseID})); err != nil {
		return payment.Enrollment{}, trapNoRowsErr(err, payment.ErrEnrollmentNotFound)
	}
	return r.toEnrollment(), nil
}

func (repo *paymentRepository) ListEnrollments(ctx context.Context, userID string) ([]payment.Enrollment, error) {
	var rows []enrollmentRow
	if err := selectRows(ctx, repo.db, &rows, enrollmentSelect.Where(sq.Eq{"user_id": userID}).OrderBy("enrolled_at DESC")); err != nil {
		return nil, err
	}
	enrollments := make([]payment.Enrollment, len(rows))
	for i, r := range rows {
		enrollments[i] = r.toEnrollment()
	}
	return enrollments, nil
}

// CreateEnrollment returns the existing enrollment when the user is already enrolled.
func (repo *paymentRepository) CreateEnrollment(ctx context.Context, enr payment.Enrollment) (payment.Enrollment, bool, error) {
	b := psql.Insert("enrollments").Columns("id", "user_id", "course_id", "enrolled_at", "expires_at").
		Values(enr.ID, enr.UserID, enr.CourseID, enr.EnrolledAt, null.TimeFromPtr(enr.ExpiresAt)).
		Suffix("ON CONFLICT (user_id, course_id) DO NOTHING")
	n, err := exec(ctx, repo.db, b)
	if err != nil {
		return payment.Enrollment{}, false, err
	}
	if n == 0 {
		existing, err := repo.GetEnrollment(ctx, enr.UserID, enr.CourseID)
		return existing, false, err
	}
	return enr, true, nil
}

func (repo *paymentRepository) UpdateEnrollment(ctx context.Context, enr payment.Enrollment) (payment.Enrollment, error) {
	b := psql.Update("enrollments").
		Set("enrolled_at", enr.EnrolledAt).
		Set("expires_at", null.TimeFromPtr(enr.ExpiresAt)).
		Where(sq.Eq{"id": enr.ID})
	if err := execOne(ctx, repo.db, b, payment.ErrEnrollmentNotFound); err != nil {
		return payment.Enrollment{}, err
	}
	return enr, nil
}

// Transactions

type transactionRow struct {
	ID        string    `db:"id"`
	UserID    string    `db:"user_id"`
	CourseID  string    `db:"course_id"`
	Reference string    `db:"reference"`
	Amount    int64     `db:"amount"`
	Status    string    `db:"status"`
	PaidAt    null.Time `db:"paid_at"`
	CreatedAt time.Time `db:"created_at"`
}

func (r transactionRow) toTransaction() payment.Transaction {
	return payment.Transaction{
		ID:        r.ID,
		UserID:    r.UserID,
		CourseID:  r.CourseID,
		Reference: r.Reference,
		Amount:    r.Amount,
		Status:    r.Status,
		PaidAt:    utcPtr(r.PaidAt),
		CreatedAt: r.CreatedAt.UTC(),
	}
}

func utcPtr(t null.Time) *time.Time {
	if !t.Valid {
		return nil
	}
	utc := t.Time.UTC()
	return &utc
}

func (repo *paymentRepository) CreateTransaction(ctx context.Context, tx payment.Transaction) (payment.Transaction, error) {
	b := psql.Insert("transactions").
		Columns("id", "user_id", "course_id", "reference", "amount", "status", "paid_at", "created_at").
		Values(tx.ID, tx.UserID, tx.CourseID, tx.Reference, tx.Amount, tx.Status, null.TimeFromPtr(tx.PaidAt), tx.CreatedAt)
	if _, err := exec(ctx, repo.db, b); err != nil {
		return payment.Transaction{}, err
	}
	return tx, nil
}

func (repo *paymentRepository) GetTransactionByReference(ctx context.Context, ref string) (payment.Transaction, error) {
	var r transactionRow
	b := psql.Select("id", "user_id", "course_id", "reference", "amount", "status", "paid_at", "created_at").
		From("transactions").Where(sq.Eq{"reference": ref})
	if err := get(ctx, repo.db, &r, b); err != nil {
		return payment.Transaction{}, trapNoRowsErr(err, payment.ErrTransactionNotFound)
	}
	return r.toTransaction(), nil
}

// markPaid moves a row of table to success, reporting false when it already was.
func (repo *paymentRepository) markPaid(ctx context.Context, table, id string, paidAt time.Time) (bool, error) {
	b := psql.Update(table).
		Set("status", payment.StatusSuccess).
		Set("paid_at", paidAt).
		Where(sq.Eq{"id": id}).
		Where(sq.NotEq{"status": payment.StatusSuccess})
	n, err := exec(ctx, repo.db, b)
	if err != nil {
		return false, err
	}
	if n > 0 {
		return true, nil
	}
	var exists bool
	if err = get(ctx, repo.db, &exists, psql.Select().Column(sq.Expr("EXISTS (SELECT 1 FROM "+table+" WHERE id = ?)", id))); err != nil {
		return false, err
	}
	if !exists {
		return false, payment.ErrTransactionNotFound
	}
	return false, nil
}

func (repo *paymentRepository) markFailed(ctx context.Context, table, id string) error {
	b := psql.Update(table).
		Set("status", payment.StatusFailed).
		Where(sq.Eq{"id": id}).
		Where(sq.NotEq{"status": payment.StatusSuccess})
	_, err := exec(ctx, repo.db, b)
	return err
}

func (repo *paymentRepository) MarkTransactionPaid(ctx context.Context, id string, paidAt time.Time) (bool, error) {
	return repo.markPaid(ctx, "transactions", id, paidAt)
}

func (repo *paymentRepository) MarkTransactionFailed(ctx context.Context, id string) error {
	return repo.markFailed(ctx, "transactions", id)
}

// Bulk transactions

type bulkTransactionRow struct {
	ID             string         `db:"id"`
	OrganizationID string         `db:"organization_id"`
	UserID         string         `db:"user_id"`
	Seats          int            `db:"seats"`
	CourseIDs      pq.StringArray `db:"course_ids"`
	Reference      string         `db:"reference"`
	Amount         int64          `db:"amount"`
	Status         string         `db:"status"`
	PaidAt         null.Time      `db:"paid_at"`
	CreatedAt      time.Time      `db:"created_at"`
}

var bulkTransactionColumns = []string{"id", "organization_id", "user_id", "seats", "course_ids", "reference", "amount", "status", "paid_at", "created_at"}

func (repo *paymentRepository) CreateBulkTransaction(ctx context.Context, tx payment.BulkTransaction) (payment.BulkTransaction, error) {
	b := psql.Insert("bulk_transactions").Columns(bulkTransactionColumns...).Values(
		tx.ID, tx.OrganizationID, tx.UserID, tx.Seats, pq.Array(emptyIfNil(tx.CourseIDs)),
		tx.Reference, tx.Amount, tx.Status, null.TimeFromPtr(tx.PaidAt), tx.CreatedAt,
	)
	if _, err := exec(ctx, repo.db, b); err != nil {
		return payment.BulkTransaction{}, err
	}
	return tx, nil
}

func (repo *paymentRepository) GetBulkTransactionByReference(ctx context.Context, ref string) (payment.BulkTransaction, error) {
	var r bulkTransactionRow
	b := psql.Select(bulkTransactionColumns...).From("bulk_transactions").Where(sq.Eq{"reference": ref})
	if err := get(ctx, repo.db, &r, b); err != nil {
		return payment.BulkTransaction{}, trapNoRowsErr(err, payment.ErrTransactionNotFound)
	}
	return payment.BulkTransaction{
		ID:             r.ID,
		OrganizationID: r.OrganizationID,
		UserID:         r.UserID,
		Seats:          r.Seats,
		CourseIDs:      []string(r.CourseIDs),
		Reference:      r.Reference,
		Amount:         r.Amount,
		Status:         r.Status,
		PaidAt:         utcPtr(r.PaidAt),
		CreatedAt:      r.CreatedAt.UTC(),
	}, nil
}

func (repo *paymentRepository) MarkBulkTransactionPaid(ctx context.Context, id string, paidAt time.Time) (bool, error) {
	return repo.markPaid(ctx, "bulk_transactions", id, paidAt)
}

func (repo *paymentRepository) MarkBulkTransactionFailed(ctx context.Context, id string) error {
	return repo.markFailed(ctx, "bulk_transactions", id)
}
