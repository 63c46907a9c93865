package services

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/schoolhub/backend/internal/platform/logger"
	"github.com/schoolhub/backend/internal/platform/sendgrid"
	"github.com/schoolhub/backend/internal/repos"
	"github.com/schoolhub/backend/internal/types"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	t.Cleanup(log.Sync)
	return log
}

// The fakes embed the repo interfaces so only the methods a test exercises
// need overriding; calling anything else panics and fails the test loudly.

type fakeAssignmentRepo struct {
	repos.AssignmentRepo
	assignments []*types.Assignment
	created     []*types.Assignment
}

func (f *fakeAssignmentRepo) Create(ctx context.Context, tx *gorm.DB, assignments []*types.Assignment) ([]*types.Assignment, error) {
	f.created = append(f.created, assignments...)
	f.assignments = append(f.assignments, assignments...)
	return assignments, nil
}

func (f *fakeAssignmentRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.Assignment, error) {
	var out []*types.Assignment
	for _, a := range f.assignments {
		for _, id := range ids {
			if a.ID == id {
				out = append(out, a)
			}
		}
	}
	return out, nil
}

type fakeSubmissionRepo struct {
	repos.SubmissionRepo
	submissions []*types.Submission
	updates     map[uuid.UUID]map[string]interface{}
	createErr   error
}

func (f *fakeSubmissionRepo) Create(ctx context.Context, tx *gorm.DB, submissions []*types.Submission) ([]*types.Submission, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.submissions = append(f.submissions, submissions...)
	return submissions, nil
}

func (f *fakeSubmissionRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.Submission, error) {
	var out []*types.Submission
	for _, s := range f.submissions {
		for _, id := range ids {
			if s.ID == id {
				out = append(out, s)
			}
		}
	}
	return out, nil
}

func (f *fakeSubmissionRepo) GetByAssignmentAndStudent(ctx context.Context, tx *gorm.DB, assignmentID, studentID uuid.UUID) (*types.Submission, error) {
	for _, s := range f.submissions {
		if s.AssignmentID == assignmentID && s.StudentID == studentID {
			return s, nil
		}
	}
	return nil, nil
}

func (f *fakeSubmissionRepo) UpdateFields(ctx context.Context, tx *gorm.DB, submissionID uuid.UUID, fields map[string]interface{}) error {
	if f.updates == nil {
		f.updates = map[uuid.UUID]map[string]interface{}{}
	}
	f.updates[submissionID] = fields
	return nil
}

type fakeCourseLookup struct {
	repos.CourseRepo
	courses []*types.Course
}

func (f *fakeCourseLookup) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.Course, error) {
	var out []*types.Course
	for _, c := range f.courses {
		for _, id := range ids {
			if c.ID == id {
				out = append(out, c)
			}
		}
	}
	return out, nil
}

type fakeUserLookup struct {
	repos.UserRepo
	users []*types.User
}

func (f *fakeUserLookup) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.User, error) {
	var out []*types.User
	for _, u := range f.users {
		for _, id := range ids {
			if u.ID == id {
				out = append(out, u)
			}
		}
	}
	return out, nil
}

type fakeUploader struct {
	keys      []string
	uploadErr error
}

func (f *fakeUploader) UploadRaw(ctx context.Context, key, contentType string, r io.Reader) (string, error) {
	if f.uploadErr != nil {
		return "", f.uploadErr
	}
	f.keys = append(f.keys, key)
	return "https://cdn.example.com/" + key, nil
}

type fakeMailer struct {
	sent    []sendgrid.Message
	sendErr error
}

func (f *fakeMailer) Send(ctx context.Context, msg sendgrid.Message) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, msg)
	return nil
}

type assignmentFixture struct {
	svc         AssignmentService
	assignments *fakeAssignmentRepo
	submissions *fakeSubmissionRepo
	uploader    *fakeUploader
	mailer      *fakeMailer
	courseID    uuid.UUID
	student     *types.User
}

func newAssignmentFixture(t *testing.T) *assignmentFixture {
	t.Helper()
	course := &types.Course{ID: uuid.New(), Title: "Mathematics", Year: 2026}
	student := &types.User{ID: uuid.New(), Email: "student@example.com", FirstName: "Ada", LastName: "Lovelace"}
	assignments := &fakeAssignmentRepo{}
	submissions := &fakeSubmissionRepo{}
	uploader := &fakeUploader{}
	mailer := &fakeMailer{}
	svc := NewAssignmentService(
		nil, testLogger(t),
		assignments, submissions,
		&fakeCourseLookup{courses: []*types.Course{course}},
		&fakeUserLookup{users: []*types.User{student}},
		uploader, mailer,
	)
	return &assignmentFixture{
		svc:         svc,
		assignments: assignments,
		submissions: submissions,
		uploader:    uploader,
		mailer:      mailer,
		courseID:    course.ID,
		student:     student,
	}
}

func TestPublishAssignmentRequiresExistingCourse(t *testing.T) {
	fx := newAssignmentFixture(t)

	_, err := fx.svc.PublishAssignment(context.Background(), uuid.New(), AssignmentInput{
		CourseID: uuid.New(),
		Title:    "Homework 1",
	})
	if err == nil {
		t.Fatalf("expected error for unknown course")
	}
	if len(fx.assignments.created) != 0 {
		t.Fatalf("no assignment should be created: got=%d", len(fx.assignments.created))
	}

	a, err := fx.svc.PublishAssignment(context.Background(), uuid.New(), AssignmentInput{
		CourseID: fx.courseID,
		Title:    "  Homework 1  ",
	})
	if err != nil {
		t.Fatalf("PublishAssignment: %v", err)
	}
	if a.Title != "Homework 1" {
		t.Fatalf("title should be trimmed: got=%q", a.Title)
	}
}

func TestSubmitWorkUploadsThenCreatesSubmission(t *testing.T) {
	fx := newAssignmentFixture(t)
	assignment := &types.Assignment{ID: uuid.New(), CourseID: fx.courseID, Title: "Essay"}
	fx.assignments.assignments = append(fx.assignments.assignments, assignment)

	sub, err := fx.svc.SubmitWork(context.Background(), assignment.ID, fx.student.ID, strings.NewReader("work"), "essay.pdf")
	if err != nil {
		t.Fatalf("SubmitWork: %v", err)
	}
	if len(fx.uploader.keys) != 1 {
		t.Fatalf("upload count: want=1 got=%d", len(fx.uploader.keys))
	}
	if sub.FileURL == "" || sub.StorageKey == "" {
		t.Fatalf("submission should carry file url and storage key: %+v", sub)
	}
	if len(fx.submissions.submissions) != 1 {
		t.Fatalf("stored submissions: want=1 got=%d", len(fx.submissions.submissions))
	}
}

func TestSubmitWorkResubmissionReplacesFile(t *testing.T) {
	fx := newAssignmentFixture(t)
	assignment := &types.Assignment{ID: uuid.New(), CourseID: fx.courseID, Title: "Essay"}
	fx.assignments.assignments = append(fx.assignments.assignments, assignment)

	first, err := fx.svc.SubmitWork(context.Background(), assignment.ID, fx.student.ID, strings.NewReader("v1"), "essay.pdf")
	if err != nil {
		t.Fatalf("first SubmitWork: %v", err)
	}
	second, err := fx.svc.SubmitWork(context.Background(), assignment.ID, fx.student.ID, strings.NewReader("v2"), "essay.pdf")
	if err != nil {
		t.Fatalf("second SubmitWork: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("resubmission should keep the same submission id")
	}
	if len(fx.submissions.submissions) != 1 {
		t.Fatalf("stored submissions: want=1 got=%d", len(fx.submissions.submissions))
	}
	if fx.submissions.updates[first.ID] == nil {
		t.Fatalf("resubmission should update the existing row")
	}
}

func TestSubmitWorkRejectsPastDueDate(t *testing.T) {
	fx := newAssignmentFixture(t)
	due := time.Now().Add(-time.Hour)
	assignment := &types.Assignment{ID: uuid.New(), CourseID: fx.courseID, Title: "Essay", DueAt: &due}
	fx.assignments.assignments = append(fx.assignments.assignments, assignment)

	if _, err := fx.svc.SubmitWork(context.Background(), assignment.ID, fx.student.ID, strings.NewReader("late"), "essay.pdf"); err == nil {
		t.Fatalf("expected error for past-due submission")
	}
	if len(fx.uploader.keys) != 0 {
		t.Fatalf("nothing should be uploaded for a past-due assignment")
	}
}

func TestGradeSubmissionSendsNotification(t *testing.T) {
	fx := newAssignmentFixture(t)
	sub := &types.Submission{ID: uuid.New(), AssignmentID: uuid.New(), StudentID: fx.student.ID}
	fx.submissions.submissions = append(fx.submissions.submissions, sub)

	graded, err := fx.svc.GradeSubmission(context.Background(), sub.ID, GradeInput{Grade: 87, Feedback: "Solid work"})
	if err != nil {
		t.Fatalf("GradeSubmission: %v", err)
	}
	if graded.Grade == nil || *graded.Grade != 87 {
		t.Fatalf("grade: want=87 got=%v", graded.Grade)
	}
	if graded.GradedAt == nil {
		t.Fatalf("graded_at should be set")
	}
	if len(fx.mailer.sent) != 1 {
		t.Fatalf("notification count: want=1 got=%d", len(fx.mailer.sent))
	}
	msg := fx.mailer.sent[0]
	if msg.ToEmail != fx.student.Email {
		t.Fatalf("notification recipient: want=%s got=%s", fx.student.Email, msg.ToEmail)
	}
	if !strings.Contains(msg.TextBody, "87") || !strings.Contains(msg.TextBody, "Solid work") {
		t.Fatalf("notification body missing grade or feedback: %q", msg.TextBody)
	}
}

func TestGradeSubmissionSurvivesMailFailure(t *testing.T) {
	fx := newAssignmentFixture(t)
	fx.mailer.sendErr = errors.New("smtp down")
	sub := &types.Submission{ID: uuid.New(), AssignmentID: uuid.New(), StudentID: fx.student.ID}
	fx.submissions.submissions = append(fx.submissions.submissions, sub)

	graded, err := fx.svc.GradeSubmission(context.Background(), sub.ID, GradeInput{Grade: 60})
	if err != nil {
		t.Fatalf("grade should succeed even when mail fails: %v", err)
	}
	if graded.Grade == nil || *graded.Grade != 60 {
		t.Fatalf("grade: want=60 got=%v", graded.Grade)
	}
}

func TestGradeSubmissionRejectsOutOfRange(t *testing.T) {
	fx := newAssignmentFixture(t)
	sub := &types.Submission{ID: uuid.New(), AssignmentID: uuid.New(), StudentID: fx.student.ID}
	fx.submissions.submissions = append(fx.submissions.submissions, sub)

	if _, err := fx.svc.GradeSubmission(context.Background(), sub.ID, GradeInput{Grade: 101}); err == nil {
		t.Fatalf("expected error for grade above 100")
	}
	if len(fx.submissions.updates) != 0 {
		t.Fatalf("no update should be recorded for an invalid grade")
	}
}
