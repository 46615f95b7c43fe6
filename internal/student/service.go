package student

import (
	"context"
	"errors"
	"log/slog"
)

var (
	ErrNotFound     = errors.New("student not found")
	ErrConflict     = errors.New("email or phone number already in use")
	ErrInvalidInput = errors.New("invalid input")
	ErrReconcile    = errors.New("sequence reconciliation failed")
)

// EventPublisher emits roster change events. Implemented by the NATS
// producer; may be nil, in which case no events are sent.
type EventPublisher interface {
	Publish(ctx context.Context, value interface{}) error
}

// RosterEvent describes a mutation of the roster table.
type RosterEvent struct {
	Action string `json:"action"` // imported, updated or deleted
	ID     int    `json:"id,omitempty"`
	Email  string `json:"email,omitempty"`
	Count  int    `json:"count,omitempty"`
}

type Service interface {
	ImportStudents(ctx context.Context, candidates []Candidate) (*ImportReport, error)
	ListStudents(ctx context.Context) ([]Student, error)
	GetStudentByID(ctx context.Context, id int) (*Student, error)
	UpdateStudent(ctx context.Context, student *Student) error
	DeleteStudent(ctx context.Context, id int) error
}

type service struct {
	repo      Repository
	publisher EventPublisher
	logger    *slog.Logger
}

func NewService(repo Repository, publisher EventPublisher, logger *slog.Logger) Service {
	return &service{
		repo:      repo,
		publisher: publisher,
		logger:    logger,
	}
}

func (s *service) ImportStudents(ctx context.Context, candidates []Candidate) (*ImportReport, error) {
	if len(candidates) == 0 {
		return nil, ErrInvalidInput
	}

	report, err := s.repo.UpsertBatch(ctx, candidates)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, RosterEvent{Action: "imported", Count: report.Upserted})
	return report, nil
}

func (s *service) ListStudents(ctx context.Context) ([]Student, error) {
	return s.repo.GetAll(ctx)
}

func (s *service) GetStudentByID(ctx context.Context, id int) (*Student, error) {
	if id <= 0 {
		return nil, ErrInvalidInput
	}
	return s.repo.GetByID(ctx, id)
}

func (s *service) UpdateStudent(ctx context.Context, student *Student) error {
	if student.ID <= 0 {
		return ErrInvalidInput
	}
	if err := s.repo.Update(ctx, student); err != nil {
		return err
	}

	s.publish(ctx, RosterEvent{Action: "updated", ID: student.ID, Email: student.Email})
	return nil
}

func (s *service) DeleteStudent(ctx context.Context, id int) error {
	if id <= 0 {
		return ErrInvalidInput
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.publish(ctx, RosterEvent{Action: "deleted", ID: id})
	return nil
}

func (s *service) publish(ctx context.Context, event RosterEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		// Events are advisory; a broker outage must not fail the mutation.
		s.logger.WarnContext(ctx, "failed to publish roster event", "action", event.Action, "error", err)
	}
}
