package student

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"rosterd/internal/metrics"
	"rosterd/internal/storage"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"
)

type Repository interface {
	GetAll(ctx context.Context) ([]Student, error)
	GetByID(ctx context.Context, id int) (*Student, error)
	UpsertBatch(ctx context.Context, candidates []Candidate) (*ImportReport, error)
	Update(ctx context.Context, student *Student) error
	Delete(ctx context.Context, id int) error
	ReconcileSequence(ctx context.Context) error
}

type repository struct {
	connector *storage.Connector
	metrics   *metrics.Metrics
}

func NewRepository(connector *storage.Connector, m *metrics.Metrics) Repository {
	return &repository{
		connector: connector,
		metrics:   m,
	}
}

func (r *repository) GetAll(ctx context.Context) ([]Student, error) {
	db, err := r.connector.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	start := time.Now()
	var students []Student
	err = db.NewSelect().
		Model(&students).
		Order("id ASC").
		Scan(ctx)

	r.metrics.RecordQuery(ctx, "select", time.Since(start), err)

	return students, err
}

func (r *repository) GetByID(ctx context.Context, id int) (*Student, error) {
	db, err := r.connector.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	start := time.Now()
	student := new(Student)
	err = db.NewSelect().Model(student).Where("id = ?", id).Scan(ctx)

	r.metrics.RecordQuery(ctx, "select", time.Since(start), err)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return student, nil
}

// UpsertBatch merges candidates into the table in input order, keyed on
// email. Each row is its own autocommitted statement: a constraint
// violation (usually a phone number owned by another record) is recorded
// in the report and the remaining rows still go through.
func (r *repository) UpsertBatch(ctx context.Context, candidates []Candidate) (*ImportReport, error) {
	db, err := r.connector.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	report := &ImportReport{}
	for i, c := range candidates {
		rec := &Student{
			Name:        c.Name,
			Age:         c.Age,
			ClassLabel:  c.ClassLabel,
			Email:       c.Email,
			PhoneNumber: c.PhoneNumber,
		}

		start := time.Now()
		_, err := db.NewInsert().
			Model(rec).
			On("CONFLICT (email) DO UPDATE").
			Set("name = EXCLUDED.name").
			Set("age = EXCLUDED.age").
			Set("class_label = EXCLUDED.class_label").
			Set("phone_number = EXCLUDED.phone_number").
			Set("updated_at = CURRENT_TIMESTAMP").
			Exec(ctx)

		r.metrics.RecordQuery(ctx, "upsert", time.Since(start), err)

		if err != nil {
			report.Failures = append(report.Failures, RowFailure{
				Row:    i + 1,
				Email:  c.Email,
				Reason: failureReason(err),
			})
			continue
		}
		report.Upserted++
	}
	return report, nil
}

func (r *repository) Update(ctx context.Context, student *Student) error {
	db, err := r.connector.Acquire(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	student.UpdatedAt = time.Now()

	start := time.Now()
	result, err := db.NewUpdate().Model(student).WherePK().Exec(ctx)

	r.metrics.RecordQuery(ctx, "update", time.Since(start), err)

	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id int) error {
	db, err := r.connector.Acquire(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	start := time.Now()
	student := &Student{ID: id}
	result, err := db.NewDelete().Model(student).WherePK().Exec(ctx)

	r.metrics.RecordQuery(ctx, "delete", time.Since(start), err)

	if err != nil {
		return err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	// The delete is not complete until the id sequence matches the
	// surviving rows. Not transactional with the delete: a concurrent
	// insert between the two statements can move MAX(id).
	return r.reconcileSequence(ctx, db)
}

// ReconcileSequence resets the id sequence to the current MAX(id) so the
// next insert gets max+1. On an empty table the sequence is rewound so
// the next insert gets 1.
func (r *repository) ReconcileSequence(ctx context.Context) error {
	db, err := r.connector.Acquire(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	return r.reconcileSequence(ctx, db)
}

func (r *repository) reconcileSequence(ctx context.Context, db *bun.DB) error {
	start := time.Now()
	_, err := db.ExecContext(ctx, `
		SELECT setval(
			pg_get_serial_sequence('students', 'id'),
			COALESCE((SELECT MAX(id) FROM students), 1),
			EXISTS (SELECT 1 FROM students)
		)`)

	r.metrics.RecordQuery(ctx, "reconcile", time.Since(start), err)

	if err != nil {
		return fmt.Errorf("%w: %v", ErrReconcile, err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) {
		// SQLSTATE 23505: unique_violation
		return pgErr.Field('C') == "23505"
	}
	return false
}

func failureReason(err error) string {
	if isUniqueViolation(err) {
		return "unique constraint violation"
	}
	return err.Error()
}
