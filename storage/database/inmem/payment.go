package inmemdb

import (
	"context"
	"sort"
	"time"

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

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	cp := *t
	return &cp
}

// Enrollments

func (repo *paymentRepository) GetEnrollment(_ context.Context, userID, courseID string) (payment.Enrollment, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, enr := range repo.db.enrollments {
		if enr.UserID == userID && enr.CourseID == courseID {
			enr.ExpiresAt = copyTime(enr.ExpiresAt)
			return enr, nil
		}
	}
	return payment.Enrollment{}, payment.ErrEnrollmentNotFound
}

func (repo *paymentRepository) ListEnrollments(_ context.Context, userID string) ([]payment.Enrollment, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	enrollments := make([]payment.Enrollment, 0)
	for _, enr := range repo.db.enrollments {
		if enr.UserID == userID {
			enr.ExpiresAt = copyTime(enr.ExpiresAt)
			enrollments = append(enrollments, enr)
		}
	}
	sort.Slice(enrollments, func(i, j int) bool { return enrollments[i].EnrolledAt.After(enrollments[j].EnrolledAt) })
	return enrollments, nil
}

func (repo *paymentRepository) CreateEnrollment(_ context.Context, enr payment.Enrollment) (payment.Enrollment, bool, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, e := range repo.db.enrollments {
		if e.UserID == enr.UserID && e.CourseID == enr.CourseID {
			e.ExpiresAt = copyTime(e.ExpiresAt)
			return e, false, nil
		}
	}
	enr.ExpiresAt = copyTime(enr.ExpiresAt)
	repo.db.enrollments[enr.ID] = enr
	return enr, true, nil
}

func (repo *paymentRepository) UpdateEnrollment(_ context.Context, enr payment.Enrollment) (payment.Enrollment, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.enrollments[enr.ID]; !ok {
		return payment.Enrollment{}, payment.ErrEnrollmentNotFound
	}
	enr.ExpiresAt = copyTime(enr.ExpiresAt)
	repo.db.enrollments[enr.ID] = enr
	return enr, nil
}

// Transactions

func (repo *paymentRepository) CreateTransaction(_ context.Context, tx payment.Transaction) (payment.Transaction, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	tx.PaidAt = copyTime(tx.PaidAt)
	repo.db.transactions[tx.ID] = tx
	return tx, nil
}

func (repo *paymentRepository) GetTransactionByReference(_ context.Context, ref string) (payment.Transaction, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, tx := range repo.db.transactions {
		if tx.Reference == ref {
			tx.PaidAt = copyTime(tx.PaidAt)
			return tx, nil
		}
	}
	return payment.Transaction{}, payment.ErrTransactionNotFound
}

func (repo *paymentRepository) MarkTransactionPaid(_ context.Context, id string, paidAt time.Time) (bool, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	tx, ok := repo.db.transactions[id]
	if !ok {
		return false, payment.ErrTransactionNotFound
	}
	if tx.Status == payment.StatusSuccess {
		return false, nil
	}
	tx.Status = payment.StatusSuccess
	tx.PaidAt = &paidAt
	repo.db.transactions[id] = tx
	return true, nil
}

func (repo *paymentRepository) MarkTransactionFailed(_ context.Context, id string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	tx, ok := repo.db.transactions[id]
	if !ok {
		return payment.ErrTransactionNotFound
	}
	if tx.Status != payment.StatusSuccess {
		tx.Status = payment.StatusFailed
		repo.db.transactions[id] = tx
	}
	return nil
}

// Bulk transactions

func copyBulkTransaction(tx payment.BulkTransaction) payment.BulkTransaction {
	tx.CourseIDs = copyStrings(tx.CourseIDs)
	tx.PaidAt = copyTime(tx.PaidAt)
	return tx
}

func (repo *paymentRepository) CreateBulkTransaction(_ context.Context, tx payment.BulkTransaction) (payment.BulkTransaction, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	repo.db.bulkTransactions[tx.ID] = copyBulkTransaction(tx)
	return tx, nil
}

func (repo *paymentRepository) GetBulkTransactionByReference(_ context.Context, ref string) (payment.BulkTransaction, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, tx := range repo.db.bulkTransactions {
		if tx.Reference == ref {
			return copyBulkTransaction(tx), nil
		}
	}
	return payment.BulkTransaction{}, payment.ErrTransactionNotFound
}

func (repo *paymentRepository) MarkBulkTransactionPaid(_ context.Context, id string, paidAt time.Time) (bool, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	tx, ok := repo.db.bulkTransactions[id]
	if !ok {
		return false, payment.ErrTransactionNotFound
	}
	if tx.Status == payment.StatusSuccess {
		return false, nil
	}
	tx.Status = payment.StatusSuccess
	tx.PaidAt = &paidAt
	repo.db.bulkTransactions[id] = tx
	return true, nil
}

func (repo *paymentRepository) MarkBulkTransactionFailed(_ context.Context, id string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	tx, ok := repo.db.bulkTransactions[id]
	if !ok {
		return payment.ErrTransactionNotFound
	}
	if tx.Status != payment.StatusSuccess {
		tx.Status = payment.StatusFailed
		repo.db.bulkTransactions[id] = tx
	}
	return nil
}
