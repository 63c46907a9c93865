package services

import (
	"context"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/schoolhub/backend/internal/platform/logger"
	"github.com/schoolhub/backend/internal/platform/sendgrid"
	"github.com/schoolhub/backend/internal/repos"
	"github.com/schoolhub/backend/internal/types"
	"github.com/schoolhub/backend/internal/utils"
)

// Mailer is the slice of the mail client the assignment flow needs.
type Mailer interface {
	Send(ctx context.Context, msg sendgrid.Message) error
}

type AssignmentInput struct {
	CourseID uuid.UUID
	Title    string
	Brief    string
	DueAt    *time.Time
}

type GradeInput struct {
	Grade    int
	Feedback string
}

type AssignmentService interface {
	PublishAssignment(ctx context.Context, authorID uuid.UUID, input AssignmentInput) (*types.Assignment, error)
	ListByCourse(ctx context.Context, courseID uuid.UUID) ([]*types.Assignment, error)
	SubmitWork(ctx context.Context, assignmentID, studentID uuid.UUID, file io.Reader, filename string) (*types.Submission, error)
	ListSubmissions(ctx context.Context, assignmentID uuid.UUID) ([]*types.Submission, error)
	GradeSubmission(ctx context.Context, submissionID uuid.UUID, input GradeInput) (*types.Submission, error)
	DeleteAssignment(ctx context.Context, assignmentID uuid.UUID) error
}

type assignmentService struct {
	db             *gorm.DB
	log            *logger.Logger
	assignmentRepo repos.AssignmentRepo
	submissionRepo repos.SubmissionRepo
	courseRepo     repos.CourseRepo
	userRepo       repos.UserRepo
	uploader       AvatarUploader
	mailer         Mailer
}

func NewAssignmentService(
	db *gorm.DB,
	baseLog *logger.Logger,
	assignmentRepo repos.AssignmentRepo,
	submissionRepo repos.SubmissionRepo,
	courseRepo repos.CourseRepo,
	userRepo repos.UserRepo,
	uploader AvatarUploader,
	mailer Mailer,
) AssignmentService {
	return &assignmentService{
		db:             db,
		log:            baseLog.With("service", "AssignmentService"),
		assignmentRepo: assignmentRepo,
		submissionRepo: submissionRepo,
		courseRepo:     courseRepo,
		userRepo:       userRepo,
		uploader:       uploader,
		mailer:         mailer,
	}
}

func (s *assignmentService) PublishAssignment(ctx context.Context, authorID uuid.UUID, input AssignmentInput) (*types.Assignment, error) {
	title := utils.ParseInputString(input.Title)
	if title == "" {
		return nil, fmt.Errorf("assignment title is required")
	}
	courses, err := s.courseRepo.GetByIDs(ctx, nil, []uuid.UUID{input.CourseID})
	if err != nil {
		return nil, fmt.Errorf("failed to look up course: %w", err)
	}
	if len(courses) == 0 {
		return nil, fmt.Errorf("course %s not found", input.CourseID)
	}

	assignment := &types.Assignment{
		ID:       uuid.New(),
		CourseID: input.CourseID,
		AuthorID: authorID,
		Title:    title,
		Brief:    utils.ParseInputString(input.Brief),
		DueAt:    input.DueAt,
	}
	if _, err := s.assignmentRepo.Create(ctx, nil, []*types.Assignment{assignment}); err != nil {
		return nil, fmt.Errorf("failed to create assignment: %w", err)
	}
	s.log.Info("assignment published", "assignment_id", assignment.ID, "course_id", assignment.CourseID)
	return assignment, nil
}

func (s *assignmentService) ListByCourse(ctx context.Context, courseID uuid.UUID) ([]*types.Assignment, error) {
	return s.assignmentRepo.GetByCourseIDs(ctx, nil, []uuid.UUID{courseID})
}

// SubmitWork stores the student's file and upserts their submission. A
// resubmission before grading replaces the previous file reference.
func (s *assignmentService) SubmitWork(ctx context.Context, assignmentID, studentID uuid.UUID, file io.Reader, filename string) (*types.Submission, error) {
	if file == nil {
		return nil, fmt.Errorf("submission file is required")
	}
	assignments, err := s.assignmentRepo.GetByIDs(ctx, nil, []uuid.UUID{assignmentID})
	if err != nil {
		return nil, fmt.Errorf("failed to look up assignment: %w", err)
	}
	if len(assignments) == 0 {
		return nil, fmt.Errorf("assignment %s not found", assignmentID)
	}
	assignment := assignments[0]
	if assignment.DueAt != nil && time.Now().After(*assignment.DueAt) {
		return nil, fmt.Errorf("assignment %s is past its due date", assignmentID)
	}

	key := fmt.Sprintf("submissions/%s/%s/%s-%s", assignmentID, studentID, uuid.New(), filename)
	contentType := mime.TypeByExtension(filepath.Ext(filename))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	url, err := s.uploader.UploadRaw(ctx, key, contentType, file)
	if err != nil {
		return nil, fmt.Errorf("failed to upload submission: %w", err)
	}

	existing, err := s.submissionRepo.GetByAssignmentAndStudent(ctx, nil, assignmentID, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up submission: %w", err)
	}
	now := time.Now().UTC()
	if existing != nil {
		if existing.GradedAt != nil {
			return nil, fmt.Errorf("submission already graded")
		}
		if err := s.submissionRepo.UpdateFields(ctx, nil, existing.ID, map[string]interface{}{
			"file_url":     url,
			"storage_key":  key,
			"submitted_at": now,
		}); err != nil {
			return nil, fmt.Errorf("failed to update submission: %w", err)
		}
		existing.FileURL = url
		existing.StorageKey = key
		existing.SubmittedAt = now
		return existing, nil
	}

	submission := &types.Submission{
		ID:           uuid.New(),
		AssignmentID: assignmentID,
		StudentID:    studentID,
		FileURL:      url,
		StorageKey:   key,
		SubmittedAt:  now,
	}
	if _, err := s.submissionRepo.Create(ctx, nil, []*types.Submission{submission}); err != nil {
		return nil, fmt.Errorf("failed to create submission: %w", err)
	}
	return submission, nil
}

func (s *assignmentService) ListSubmissions(ctx context.Context, assignmentID uuid.UUID) ([]*types.Submission, error) {
	return s.submissionRepo.GetByAssignmentIDs(ctx, nil, []uuid.UUID{assignmentID})
}

// GradeSubmission records the grade then emails the student. The mail is
// best effort, a send failure never rolls the grade back.
func (s *assignmentService) GradeSubmission(ctx context.Context, submissionID uuid.UUID, input GradeInput) (*types.Submission, error) {
	if input.Grade < 0 || input.Grade > 100 {
		return nil, fmt.Errorf("grade must be between 0 and 100")
	}
	submissions, err := s.submissionRepo.GetByIDs(ctx, nil, []uuid.UUID{submissionID})
	if err != nil {
		return nil, fmt.Errorf("failed to look up submission: %w", err)
	}
	if len(submissions) == 0 {
		return nil, fmt.Errorf("submission %s not found", submissionID)
	}
	submission := submissions[0]

	now := time.Now().UTC()
	grade := input.Grade
	feedback := utils.ParseInputString(input.Feedback)
	if err := s.submissionRepo.UpdateFields(ctx, nil, submission.ID, map[string]interface{}{
		"grade":     grade,
		"feedback":  feedback,
		"graded_at": now,
	}); err != nil {
		return nil, fmt.Errorf("failed to record grade: %w", err)
	}
	submission.Grade = &grade
	submission.Feedback = feedback
	submission.GradedAt = &now

	s.notifyGraded(ctx, submission)
	return submission, nil
}

func (s *assignmentService) notifyGraded(ctx context.Context, submission *types.Submission) {
	if s.mailer == nil {
		return
	}
	students, err := s.userRepo.GetByIDs(ctx, nil, []uuid.UUID{submission.StudentID})
	if err != nil || len(students) == 0 {
		s.log.Warn("skipping grade notification, student lookup failed", "student_id", submission.StudentID, "error", err)
		return
	}
	student := students[0]

	subject := "Your submission has been graded"
	body := fmt.Sprintf("Hi %s,\n\nYour submission received a grade of %d/100.", student.FirstName, *submission.Grade)
	if submission.Feedback != "" {
		body += "\n\nFeedback:\n" + submission.Feedback
	}
	if err := s.mailer.Send(ctx, sendgrid.Message{
		ToEmail:  student.Email,
		ToName:   student.FirstName + " " + student.LastName,
		Subject:  subject,
		TextBody: body,
	}); err != nil {
		s.log.Warn("failed to send grade notification", "submission_id", submission.ID, "error", err)
	}
}

func (s *assignmentService) DeleteAssignment(ctx context.Context, assignmentID uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		submissions, err := s.submissionRepo.GetByAssignmentIDs(ctx, tx, []uuid.UUID{assignmentID})
		if err != nil {
			return fmt.Errorf("failed to list submissions: %w", err)
		}
		submissionIDs := make([]uuid.UUID, 0, len(submissions))
		for _, sub := range submissions {
			submissionIDs = append(submissionIDs, sub.ID)
		}
		if err := s.submissionRepo.SoftDeleteByIDs(ctx, tx, submissionIDs); err != nil {
			return fmt.Errorf("failed to delete submissions: %w", err)
		}
		if err := s.assignmentRepo.SoftDeleteByIDs(ctx, tx, []uuid.UUID{assignmentID}); err != nil {
			return fmt.Errorf("failed to delete assignment: %w", err)
		}
		return nil
	})
}
