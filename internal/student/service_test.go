package student_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	"rosterd/internal/student"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	student.Repository
	deleted []int
	updated []student.Student
	report  *student.ImportReport
}

func (f *fakeRepo) UpsertBatch(ctx context.Context, candidates []student.Candidate) (*student.ImportReport, error) {
	if f.report != nil {
		return f.report, nil
	}
	return &student.ImportReport{Upserted: len(candidates)}, nil
}

func (f *fakeRepo) Update(ctx context.Context, s *student.Student) error {
	f.updated = append(f.updated, *s)
	return nil
}

func (f *fakeRepo) Delete(ctx context.Context, id int) error {
	f.deleted = append(f.deleted, id)
	return nil
}

type fakePublisher struct {
	events []student.RosterEvent
	err    error
}

func (f *fakePublisher) Publish(ctx context.Context, value interface{}) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, value.(student.RosterEvent))
	return nil
}

func newTestService(repo student.Repository, pub student.EventPublisher) student.Service {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	return student.NewService(repo, pub, logger)
}

func TestService_InvalidInput(t *testing.T) {
	svc := newTestService(&fakeRepo{}, nil)
	ctx := context.Background()

	_, err := svc.ImportStudents(ctx, nil)
	assert.ErrorIs(t, err, student.ErrInvalidInput)

	_, err = svc.GetStudentByID(ctx, 0)
	assert.ErrorIs(t, err, student.ErrInvalidInput)

	err = svc.UpdateStudent(ctx, &student.Student{ID: -1})
	assert.ErrorIs(t, err, student.ErrInvalidInput)

	err = svc.DeleteStudent(ctx, 0)
	assert.ErrorIs(t, err, student.ErrInvalidInput)
}

func TestService_PublishesEvents(t *testing.T) {
	repo := &fakeRepo{}
	pub := &fakePublisher{}
	svc := newTestService(repo, pub)
	ctx := context.Background()

	report, err := svc.ImportStudents(ctx, []student.Candidate{
		{Name: "Alice", Age: 20, Email: "alice@example.com", PhoneNumber: "111"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Upserted)

	require.NoError(t, svc.UpdateStudent(ctx, &student.Student{ID: 3, Email: "alice@example.com"}))
	require.NoError(t, svc.DeleteStudent(ctx, 3))

	require.Len(t, pub.events, 3)
	assert.Equal(t, student.RosterEvent{Action: "imported", Count: 1}, pub.events[0])
	assert.Equal(t, student.RosterEvent{Action: "updated", ID: 3, Email: "alice@example.com"}, pub.events[1])
	assert.Equal(t, student.RosterEvent{Action: "deleted", ID: 3}, pub.events[2])
}

func TestService_PublisherFailureDoesNotFailMutation(t *testing.T) {
	repo := &fakeRepo{}
	pub := &fakePublisher{err: errors.New("broker down")}
	svc := newTestService(repo, pub)

	err := svc.DeleteStudent(context.Background(), 7)
	assert.NoError(t, err)
	assert.Equal(t, []int{7}, repo.deleted)
}
