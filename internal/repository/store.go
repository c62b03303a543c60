// Package repository provides the data access layer. Every repository is
// bound to a *gorm.DB that is either the root connection or an open
// transaction; Store.Transaction hands callers a Store bound to the latter.
package repository

import (
	"context"
	"errors"

	"keyhouse/internal/models"
	"keyhouse/internal/observability"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store groups the repositories that share one connection or transaction.
type Store struct {
	db *gorm.DB

	Applications ApplicationRepository
	Slots        SlotRepository
	Inspections  InspectionRepository
	Reschedules  RescheduleRepository
	Reviews      ReviewRepository
	Precedents   PrecedentRepository
	Loans        LoanRepository
	Payments     PaymentRepository
}

// NewStore builds a Store over db.
func NewStore(db *gorm.DB) *Store {
	return &Store{
		db:           db,
		Applications: NewApplicationRepository(db),
		Slots:        NewSlotRepository(db),
		Inspections:  NewInspectionRepository(db),
		Reschedules:  NewRescheduleRepository(db),
		Reviews:      NewReviewRepository(db),
		Precedents:   NewPrecedentRepository(db),
		Loans:        NewLoanRepository(db),
		Payments:     NewPaymentRepository(db),
	}
}

// DB returns the underlying handle.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Transaction runs fn inside a database transaction. fn must only use the
// Store it is given; the transaction commits when fn returns nil and rolls
// back otherwise.
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewStore(tx))
	})
}

// forUpdate locks selected rows until the transaction ends. SQLite ignores
// the clause; its single writer serializes transactions instead.
func forUpdate(db *gorm.DB) *gorm.DB {
	return db.Clauses(clause.Locking{Strength: "UPDATE"})
}

// isUniqueViolation checks if a DB error is a unique constraint violation.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// observe traces and times a repository call. The returned func ends the
// span; storage failures are logged against the table and the span.
func observe(ctx context.Context, operation, table string) (context.Context, func(error)) {
	done := observability.TrackQuery(operation, table)
	ctx, span := observability.GetTraceLayer().TraceRepositoryMethod(ctx, operation, table)
	return ctx, func(err error) {
		done()
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordErrorInContext(ctx, err)
			observability.NewRepoLogger(table, nil).LogError(ctx, err, operation)
		}
		span.End()
	}
}

// first loads a single row by primary key, mapping "no rows" to NotFound.
func first[T any](ctx context.Context, db *gorm.DB, resource string, id interface{}) (*T, error) {
	ctx, end := observe(ctx, "first", resource)
	var out T
	err := db.WithContext(ctx).Where("id = ?", id).First(&out).Error
	end(err)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError(resource, id)
		}
		return nil, models.NewInternalError(err)
	}
	return &out, nil
}

// firstForUpdate is first with a row lock.
func firstForUpdate[T any](ctx context.Context, db *gorm.DB, resource string, id interface{}) (*T, error) {
	return first[T](ctx, forUpdate(db), resource, id)
}
