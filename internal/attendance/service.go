package attendance

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// CreateSessionInput is the payload for creating a session.
type CreateSessionInput struct {
	SlotID string `json:"slot_id" validate:"required,uuid4"`
	Date   string `json:"date" validate:"required,datetime=2006-01-02"`
	Notes  string `json:"notes"`
}

// Service coordinates the session lifecycle over the repository.
type Service struct {
	repo     *Repository
	validate *validator.Validate
}

// NewService creates a service backed by a repository.
func NewService(repo *Repository) *Service {
	return &Service{repo: repo, validate: validator.New()}
}

// Create validates input and inserts a not_started session.
func (s *Service) Create(ctx context.Context, in CreateSessionInput) (Session, error) {
	if err := s.validate.Struct(in); err != nil {
		return Session{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return s.repo.CreateSession(ctx, in.SlotID, in.Date, in.Notes)
}

// Start materializes the roster and moves the session to in_progress.
func (s *Service) Start(ctx context.Context, id string) (Session, error) {
	return s.repo.StartSession(ctx, id)
}

// Get returns a session by id.
func (s *Service) Get(ctx context.Context, id string) (Session, error) {
	return s.repo.GetSession(ctx, id)
}

// List returns sessions matching the filters. teacherID comes from the
// authenticated caller, never from ambient state.
func (s *Service) List(ctx context.Context, date, classID, teacherID string, limit, offset int) ([]Session, error) {
	return s.repo.ListSessions(ctx, date, classID, teacherID, limit, offset)
}

// Records returns the session roster.
func (s *Service) Records(ctx context.Context, sessionID string) ([]Record, error) {
	return s.repo.ListRecords(ctx, sessionID)
}

// Mark validates every status and writes all marks in one transaction.
func (s *Service) Mark(ctx context.Context, sessionID string, marks []Mark) error {
	for _, m := range marks {
		if m.StudentID == "" {
			return fmt.Errorf("%w: empty student id", ErrInvalidStatus)
		}
		if !m.Status.Valid() {
			return fmt.Errorf("%w: %q", ErrInvalidStatus, m.Status)
		}
	}
	return s.repo.BulkMark(ctx, sessionID, marks)
}

// Complete finalizes an in_progress session.
func (s *Service) Complete(ctx context.Context, id string) (Session, error) {
	return s.repo.CompleteSession(ctx, id)
}

// Delete removes a session and its records.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.repo.DeleteSession(ctx, id)
}
