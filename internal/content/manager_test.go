package content

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/schoolhub/backend/internal/platform/logger"
	"github.com/schoolhub/backend/internal/types"
)

type updateCall struct {
	courseID uuid.UUID
	fields   map[string]interface{}
}

type fakeCourseStore struct {
	mu      sync.Mutex
	courses []*types.Course

	creates []uuid.UUID
	updates []updateCall
	deletes []uuid.UUID

	getAllErr error
	createErr error
	updateErr error
	deleteErr error
}

func (f *fakeCourseStore) GetAll(ctx context.Context) ([]*types.Course, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getAllErr != nil {
		return nil, f.getAllErr
	}
	out := make([]*types.Course, len(f.courses))
	copy(out, f.courses)
	return out, nil
}

func (f *fakeCourseStore) GetByYear(ctx context.Context, year int) ([]*types.Course, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*types.Course
	for _, c := range f.courses {
		if c.Year == year {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeCourseStore) Create(ctx context.Context, course *types.Course) (uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return uuid.Nil, f.createErr
	}
	id := uuid.New()
	f.creates = append(f.creates, id)
	return id, nil
}

func (f *fakeCourseStore) Update(ctx context.Context, courseID uuid.UUID, fields map[string]interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	f.updates = append(f.updates, updateCall{courseID: courseID, fields: fields})
	return nil
}

func (f *fakeCourseStore) Delete(ctx context.Context, courseID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deletes = append(f.deletes, courseID)
	return nil
}

func (f *fakeCourseStore) updateCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.updates)
}

func (f *fakeCourseStore) lastUpdate(t *testing.T) updateCall {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.updates) == 0 {
		t.Fatalf("expected at least one update call")
	}
	return f.updates[len(f.updates)-1]
}

type fakeFileStore struct {
	mu      sync.Mutex
	uploads []string
	deletes []string

	uploadErr    error
	deleteErrFor map[string]error
	result       *UploadResult
}

func (f *fakeFileStore) upload(filename string) (*UploadResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.uploadErr != nil {
		return nil, f.uploadErr
	}
	f.uploads = append(f.uploads, filename)
	if f.result != nil {
		res := *f.result
		return &res, nil
	}
	return &UploadResult{
		URL:         "https://bucket/" + filename,
		StoragePath: "objects/" + filename,
		Type:        "application/octet-stream",
		UploadedAt:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}, nil
}

func (f *fakeFileStore) delete(storagePath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.deleteErrFor[storagePath]; err != nil {
		return err
	}
	f.deletes = append(f.deletes, storagePath)
	return nil
}

func (f *fakeFileStore) deleteAttempts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.deletes)
}

func sectionsOf(t *testing.T, call updateCall) []types.Section {
	t.Helper()
	raw, ok := call.fields["content"]
	if !ok {
		t.Fatalf("update call has no content field: %v", call.fields)
	}
	jt, ok := raw.(datatypes.JSONType[[]types.Section])
	if !ok {
		t.Fatalf("content field has unexpected type %T", raw)
	}
	return jt.Data()
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	return log
}

func seedCourse(title string, sections ...types.Section) *types.Course {
	c := &types.Course{ID: uuid.New(), Title: title, Year: 2024, Author: "Prof. Doe"}
	c.SetSections(sections)
	return c
}

func newTestManager(t *testing.T, courses ...*types.Course) (*Manager, *fakeCourseStore, *testFiles) {
	t.Helper()
	store := &fakeCourseStore{courses: courses}
	files := &testFiles{fake: &fakeFileStore{deleteErrFor: map[string]error{}}}
	m := NewManager(testLogger(t), store, files, nil)
	if err := m.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	return m, store, files
}

// testFiles adapts fakeFileStore to the FileStore interface.
type testFiles struct {
	fake *fakeFileStore
}

func (tf *testFiles) Upload(ctx context.Context, r io.Reader, filename string, courseID uuid.UUID, sectionTitle string) (*UploadResult, error) {
	return tf.fake.upload(filename)
}

func (tf *testFiles) Delete(ctx context.Context, storagePath string) error {
	return tf.fake.delete(storagePath)
}

func TestCardClickToggles(t *testing.T) {
	m, _, _ := newTestManager(t, seedCourse("Algebra", types.Section{Title: "S1", Files: []types.FileItem{}}))

	m.CardClick("Algebra")
	if got := m.Snapshot().ExpandedCard; got != "Algebra" {
		t.Fatalf("expanded: want=%q got=%q", "Algebra", got)
	}
	m.CardClick("Algebra")
	if got := m.Snapshot().ExpandedCard; got != "" {
		t.Fatalf("expanded after second click: want empty got=%q", got)
	}
	m.CardClick("Unknown")
	if got := m.Snapshot().ExpandedCard; got != "" {
		t.Fatalf("expanded after unknown click: want empty got=%q", got)
	}
}

func TestLoadIsIdempotent(t *testing.T) {
	c := seedCourse("Algebra", types.Section{Title: "S1", Files: []types.FileItem{{Name: "a", URL: "u"}}})
	m, _, _ := newTestManager(t, c)

	first := m.Courses()
	if err := m.Load(context.Background()); err != nil {
		t.Fatalf("second Load: %v", err)
	}
	second := m.Courses()

	if len(first) != len(second) {
		t.Fatalf("course count changed: want=%d got=%d", len(first), len(second))
	}
	a, b := first[0].Sections(), second[0].Sections()
	if len(a) != len(b) || a[0].Title != b[0].Title || len(a[0].Files) != len(b[0].Files) {
		t.Fatalf("content changed between loads: %v vs %v", a, b)
	}
}

func TestLoadFailureLeavesCoursesEmpty(t *testing.T) {
	store := &fakeCourseStore{getAllErr: errors.New("boom")}
	m := NewManager(testLogger(t), store, &testFiles{fake: &fakeFileStore{}}, nil)
	if err := m.Load(context.Background()); err == nil {
		t.Fatalf("Load: expected error")
	}
	if got := len(m.Courses()); got != 0 {
		t.Fatalf("courses after failed load: want=0 got=%d", got)
	}
}

func TestCreateCourseSynthesizesSections(t *testing.T) {
	m, store, _ := newTestManager(t)

	m.OpenAddCourse()
	course, err := m.SubmitCourse(context.Background(), CourseInput{Title: "Physics", Year: 2024, Modules: 3, Author: "Prof. Roe"})
	if err != nil {
		t.Fatalf("SubmitCourse: %v", err)
	}
	if len(store.creates) != 1 {
		t.Fatalf("create calls: want=1 got=%d", len(store.creates))
	}
	sections := course.Sections()
	if len(sections) != 3 || course.Modules != 3 {
		t.Fatalf("sections/modules: want 3/3 got %d/%d", len(sections), course.Modules)
	}
	for i, s := range sections {
		want := fmt.Sprintf("Section %d", i+1)
		if s.Title != want {
			t.Fatalf("section %d title: want=%q got=%q", i, want, s.Title)
		}
		if s.Files == nil || len(s.Files) != 0 {
			t.Fatalf("section %d files: want empty list got %v", i, s.Files)
		}
	}
	if got := len(m.Courses()); got != 1 {
		t.Fatalf("local course count: want=1 got=%d", got)
	}
}

func TestEditCourseDoesNotResizeContent(t *testing.T) {
	c := seedCourse("Algebra", types.Section{Title: "S1", Files: []types.FileItem{}})
	m, store, _ := newTestManager(t, c)

	if err := m.OpenEditCourse(c.ID); err != nil {
		t.Fatalf("OpenEditCourse: %v", err)
	}
	updated, err := m.SubmitCourse(context.Background(), CourseInput{Title: "Algebra II", Year: 2025, Modules: 5, Author: "Prof. Doe"})
	if err != nil {
		t.Fatalf("SubmitCourse: %v", err)
	}

	call := store.lastUpdate(t)
	if _, ok := call.fields["content"]; ok {
		t.Fatalf("edit must not patch content, got fields %v", call.fields)
	}
	if call.fields["modules"] != 5 {
		t.Fatalf("modules field: want=5 got=%v", call.fields["modules"])
	}
	if got := len(updated.Sections()); got != 1 {
		t.Fatalf("sections resized on edit: want=1 got=%d", got)
	}
	if updated.Title != "Algebra II" || updated.Year != 2025 {
		t.Fatalf("descriptive fields not replaced: %+v", updated)
	}
}

func TestAddSectionPatchesContentAndModules(t *testing.T) {
	c := seedCourse("Algebra", types.Section{Title: "S1", Files: []types.FileItem{}})
	m, store, _ := newTestManager(t, c)
	m.CardClick("Algebra")

	if err := m.SubmitSection(context.Background(), "S2"); err != nil {
		t.Fatalf("SubmitSection: %v", err)
	}

	call := store.lastUpdate(t)
	sections := sectionsOf(t, call)
	if len(sections) != 2 || sections[0].Title != "S1" || sections[1].Title != "S2" {
		t.Fatalf("patched sections: %v", sections)
	}
	if len(sections[1].Files) != 0 {
		t.Fatalf("new section files: want empty got %v", sections[1].Files)
	}
	if call.fields["modules"] != 2 {
		t.Fatalf("modules field: want=2 got=%v", call.fields["modules"])
	}

	local := m.Courses()[0]
	if local.Modules != len(local.Sections()) || local.Modules != 2 {
		t.Fatalf("local invariant: modules=%d sections=%d", local.Modules, len(local.Sections()))
	}
}

func TestAddSectionRejectsDuplicateTitle(t *testing.T) {
	c := seedCourse("Algebra", types.Section{Title: "S1", Files: []types.FileItem{}})
	m, store, _ := newTestManager(t, c)
	m.CardClick("Algebra")

	if err := m.SubmitSection(context.Background(), "S1"); !errors.Is(err, ErrDuplicateSection) {
		t.Fatalf("SubmitSection: want ErrDuplicateSection got %v", err)
	}
	if store.updateCount() != 0 {
		t.Fatalf("update calls after rejected add: want=0 got=%d", store.updateCount())
	}
}

func TestAddSectionWithoutExpandedCourse(t *testing.T) {
	m, store, _ := newTestManager(t, seedCourse("Algebra"))

	if err := m.SubmitSection(context.Background(), "S1"); !errors.Is(err, ErrNoCourseExpanded) {
		t.Fatalf("SubmitSection: want ErrNoCourseExpanded got %v", err)
	}
	if store.updateCount() != 0 {
		t.Fatalf("update calls: want=0 got=%d", store.updateCount())
	}
}

func TestRenameSectionRejectsCollision(t *testing.T) {
	c := seedCourse("Algebra",
		types.Section{Title: "S1", Files: []types.FileItem{}},
		types.Section{Title: "S2", Files: []types.FileItem{}},
	)
	m, store, _ := newTestManager(t, c)
	m.CardClick("Algebra")

	if err := m.RenameSection(context.Background(), "S2", "S1"); !errors.Is(err, ErrDuplicateSection) {
		t.Fatalf("RenameSection: want ErrDuplicateSection got %v", err)
	}
	if store.updateCount() != 0 {
		t.Fatalf("update calls: want=0 got=%d", store.updateCount())
	}

	if err := m.RenameSection(context.Background(), "S2", "S3"); err != nil {
		t.Fatalf("RenameSection: %v", err)
	}
	sections := sectionsOf(t, store.lastUpdate(t))
	if sections[1].Title != "S3" {
		t.Fatalf("renamed section title: want=%q got=%q", "S3", sections[1].Title)
	}
}

func TestAddFileSuccess(t *testing.T) {
	c := seedCourse("Algebra", types.Section{Title: "S1", Files: []types.FileItem{}})
	m, store, files := newTestManager(t, c)
	files.fake.result = &UploadResult{
		URL:         "u",
		StoragePath: "p",
		Type:        "t",
		UploadedAt:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	m.CardClick("Algebra")
	if err := m.OpenAddFile("S1"); err != nil {
		t.Fatalf("OpenAddFile: %v", err)
	}
	err := m.SubmitFile(context.Background(), FileInput{Name: "Notes", Filename: "notes.pdf", File: strings.NewReader("x")})
	if err != nil {
		t.Fatalf("SubmitFile: %v", err)
	}

	sections := sectionsOf(t, store.lastUpdate(t))
	if len(sections[0].Files) != 1 {
		t.Fatalf("patched files: want=1 got=%d", len(sections[0].Files))
	}
	f := sections[0].Files[0]
	if f.Name != "Notes" || f.URL != "u" || f.Type != "t" || f.StoragePath != "p" {
		t.Fatalf("file item mismatch: %+v", f)
	}
	if f.UploadedAt == nil || !f.UploadedAt.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("uploaded_at mismatch: %v", f.UploadedAt)
	}

	local := m.Courses()[0]
	if len(local.Sections()[0].Files) != 1 {
		t.Fatalf("local state missing file")
	}
	if local.Modules != len(local.Sections()) {
		t.Fatalf("local invariant: modules=%d sections=%d", local.Modules, len(local.Sections()))
	}
}

func TestAddFileDefaultsToUploadedName(t *testing.T) {
	c := seedCourse("Algebra", types.Section{Title: "S1", Files: []types.FileItem{}})
	m, store, _ := newTestManager(t, c)
	m.CardClick("Algebra")
	if err := m.OpenAddFile("S1"); err != nil {
		t.Fatalf("OpenAddFile: %v", err)
	}
	if err := m.SubmitFile(context.Background(), FileInput{Filename: "syllabus.pdf", File: strings.NewReader("x")}); err != nil {
		t.Fatalf("SubmitFile: %v", err)
	}
	sections := sectionsOf(t, store.lastUpdate(t))
	if got := sections[0].Files[0].Name; got != "syllabus.pdf" {
		t.Fatalf("default name: want=%q got=%q", "syllabus.pdf", got)
	}
}

func TestAddFileMissingPayloadIsRejectedBeforeUpload(t *testing.T) {
	c := seedCourse("Algebra", types.Section{Title: "S1", Files: []types.FileItem{}})
	m, store, files := newTestManager(t, c)
	m.CardClick("Algebra")
	if err := m.OpenAddFile("S1"); err != nil {
		t.Fatalf("OpenAddFile: %v", err)
	}

	if err := m.SubmitFile(context.Background(), FileInput{Name: "Notes"}); !errors.Is(err, ErrMissingFile) {
		t.Fatalf("SubmitFile: want ErrMissingFile got %v", err)
	}
	if len(files.fake.uploads) != 0 || store.updateCount() != 0 {
		t.Fatalf("remote calls after precondition failure: uploads=%d updates=%d", len(files.fake.uploads), store.updateCount())
	}
}

func TestAddFileUploadFailureAborts(t *testing.T) {
	c := seedCourse("Algebra", types.Section{Title: "S1", Files: []types.FileItem{}})
	m, store, files := newTestManager(t, c)
	files.fake.uploadErr = errors.New("bucket down")
	m.CardClick("Algebra")
	if err := m.OpenAddFile("S1"); err != nil {
		t.Fatalf("OpenAddFile: %v", err)
	}

	err := m.SubmitFile(context.Background(), FileInput{Name: "Notes", Filename: "n.pdf", File: strings.NewReader("x")})
	if err == nil {
		t.Fatalf("SubmitFile: expected error")
	}
	if store.updateCount() != 0 {
		t.Fatalf("document patched despite upload failure")
	}
	if got := len(m.Courses()[0].Sections()[0].Files); got != 0 {
		t.Fatalf("local files after failed upload: want=0 got=%d", got)
	}
}

func TestAddFilePatchFailureCompensatesUpload(t *testing.T) {
	c := seedCourse("Algebra", types.Section{Title: "S1", Files: []types.FileItem{}})
	m, store, files := newTestManager(t, c)
	store.updateErr = errors.New("patch rejected")
	files.fake.result = &UploadResult{URL: "u", StoragePath: "p", Type: "t", UploadedAt: time.Now()}

	m.CardClick("Algebra")
	if err := m.OpenAddFile("S1"); err != nil {
		t.Fatalf("OpenAddFile: %v", err)
	}
	err := m.SubmitFile(context.Background(), FileInput{Name: "Notes", Filename: "n.pdf", File: strings.NewReader("x")})
	if err == nil {
		t.Fatalf("SubmitFile: expected error")
	}
	if len(files.fake.deletes) != 1 || files.fake.deletes[0] != "p" {
		t.Fatalf("compensating delete: want [p] got %v", files.fake.deletes)
	}
	if got := len(m.Courses()[0].Sections()[0].Files); got != 0 {
		t.Fatalf("local state changed despite failed patch")
	}
}

func TestAddFileCompensationFailureIsDistinct(t *testing.T) {
	c := seedCourse("Algebra", types.Section{Title: "S1", Files: []types.FileItem{}})
	m, store, files := newTestManager(t, c)
	store.updateErr = errors.New("patch rejected")
	files.fake.result = &UploadResult{URL: "u", StoragePath: "p", Type: "t", UploadedAt: time.Now()}
	files.fake.deleteErrFor["p"] = errors.New("delete also down")

	m.CardClick("Algebra")
	if err := m.OpenAddFile("S1"); err != nil {
		t.Fatalf("OpenAddFile: %v", err)
	}
	err := m.SubmitFile(context.Background(), FileInput{Name: "Notes", Filename: "n.pdf", File: strings.NewReader("x")})
	var comp *ErrCompensationFailed
	if !errors.As(err, &comp) {
		t.Fatalf("SubmitFile: want ErrCompensationFailed got %v", err)
	}
	if comp.StoragePath != "p" {
		t.Fatalf("orphaned path: want=%q got=%q", "p", comp.StoragePath)
	}
}

func TestDeleteFileWithoutStoragePath(t *testing.T) {
	c := seedCourse("Algebra", types.Section{
		Title: "S1",
		Files: []types.FileItem{{Name: "legacy", URL: "u"}},
	})
	m, store, files := newTestManager(t, c)
	m.CardClick("Algebra")

	if err := m.DeleteFile(context.Background(), "S1", 0); !errors.Is(err, ErrMissingStoragePath) {
		t.Fatalf("DeleteFile: want ErrMissingStoragePath got %v", err)
	}
	if files.fake.deleteAttempts() != 0 || store.updateCount() != 0 {
		t.Fatalf("remote calls after refusal: deletes=%d updates=%d", files.fake.deleteAttempts(), store.updateCount())
	}
	if got := len(m.Courses()[0].Sections()[0].Files); got != 1 {
		t.Fatalf("content changed: want 1 file got %d", got)
	}
}

func TestDeleteFileStorageFirstThenPatch(t *testing.T) {
	c := seedCourse("Algebra", types.Section{
		Title: "S1",
		Files: []types.FileItem{{Name: "a", URL: "u", StoragePath: "p1"}},
	})
	m, store, files := newTestManager(t, c)
	m.CardClick("Algebra")

	if err := m.DeleteFile(context.Background(), "S1", 0); err != nil {
		t.Fatalf("DeleteFile: %v", err)
	}
	if len(files.fake.deletes) != 1 || files.fake.deletes[0] != "p1" {
		t.Fatalf("storage deletes: want [p1] got %v", files.fake.deletes)
	}
	sections := sectionsOf(t, store.lastUpdate(t))
	if len(sections[0].Files) != 0 {
		t.Fatalf("patched files: want empty got %v", sections[0].Files)
	}
}

func TestDeleteFileStorageFailureAbortsPatch(t *testing.T) {
	c := seedCourse("Algebra", types.Section{
		Title: "S1",
		Files: []types.FileItem{{Name: "a", URL: "u", StoragePath: "p1"}},
	})
	m, store, files := newTestManager(t, c)
	files.fake.deleteErrFor["p1"] = errors.New("locked")
	m.CardClick("Algebra")

	if err := m.DeleteFile(context.Background(), "S1", 0); err == nil {
		t.Fatalf("DeleteFile: expected error")
	}
	if store.updateCount() != 0 {
		t.Fatalf("document patched despite storage failure")
	}
	if got := len(m.Courses()[0].Sections()[0].Files); got != 1 {
		t.Fatalf("metadata changed: want 1 file got %d", got)
	}
}

func TestDeleteSectionContinuesPastStorageFailures(t *testing.T) {
	c := seedCourse("Algebra", types.Section{
		Title: "S1",
		Files: []types.FileItem{
			{Name: "a", StoragePath: "p1"},
			{Name: "b", StoragePath: "p2"},
			{Name: "c", StoragePath: "p3"},
		},
	})
	m, store, files := newTestManager(t, c)
	files.fake.deleteErrFor["p2"] = errors.New("transient")
	m.CardClick("Algebra")

	if err := m.DeleteSection(context.Background(), "S1"); err != nil {
		t.Fatalf("DeleteSection: %v", err)
	}
	// p1 and p3 deleted, p2 attempted but failed.
	if got := files.fake.deleteAttempts(); got != 2 {
		t.Fatalf("successful deletes: want=2 got=%d", got)
	}
	call := store.lastUpdate(t)
	sections := sectionsOf(t, call)
	if len(sections) != 0 || call.fields["modules"] != 0 {
		t.Fatalf("section not removed: sections=%v modules=%v", sections, call.fields["modules"])
	}
	local := m.Courses()[0]
	if local.Modules != 0 || len(local.Sections()) != 0 {
		t.Fatalf("local state: modules=%d sections=%d", local.Modules, len(local.Sections()))
	}
}

func TestDeleteCourseBestEffort(t *testing.T) {
	c := seedCourse("Algebra", types.Section{
		Title: "S1",
		Files: []types.FileItem{{Name: "a", StoragePath: "p1"}},
	})
	m, store, files := newTestManager(t, c)
	files.fake.deleteErrFor["p1"] = errors.New("gone already")
	m.CardClick("Algebra")

	if err := m.DeleteCourse(context.Background(), c.ID); err != nil {
		t.Fatalf("DeleteCourse: %v", err)
	}
	if len(store.deletes) != 1 || store.deletes[0] != c.ID {
		t.Fatalf("course document delete: want [%s] got %v", c.ID, store.deletes)
	}
	if got := len(m.Courses()); got != 0 {
		t.Fatalf("local courses after delete: want=0 got=%d", got)
	}
	if got := m.Snapshot().ExpandedCard; got != "" {
		t.Fatalf("expanded card not cleared: %q", got)
	}
}

func TestDeleteCourseDocumentFailureKeepsLocalState(t *testing.T) {
	c := seedCourse("Algebra", types.Section{Title: "S1", Files: []types.FileItem{}})
	m, store, _ := newTestManager(t, c)
	store.deleteErr = errors.New("store down")

	if err := m.DeleteCourse(context.Background(), c.ID); err == nil {
		t.Fatalf("DeleteCourse: expected error")
	}
	if got := len(m.Courses()); got != 1 {
		t.Fatalf("local courses: want=1 got=%d", got)
	}
}

func TestModalSubmitRoutesAndCloses(t *testing.T) {
	c := seedCourse("Algebra", types.Section{Title: "S1", Files: []types.FileItem{}})
	m, store, _ := newTestManager(t, c)
	m.CardClick("Algebra")

	if err := m.OpenAddSection(); err != nil {
		t.Fatalf("OpenAddSection: %v", err)
	}
	if err := m.ModalSubmit(context.Background(), ModalValues{Section: &SectionInput{Title: "S2"}}); err != nil {
		t.Fatalf("ModalSubmit: %v", err)
	}
	st := m.Snapshot()
	if st.IsModalOpen || st.ModalType != ModalNone || st.ActiveSectionTitle != "" {
		t.Fatalf("modal state not cleared after success: %+v", st)
	}

	// A failing submit leaves the modal open for retry.
	store.updateErr = errors.New("store down")
	if err := m.OpenAddSection(); err != nil {
		t.Fatalf("OpenAddSection: %v", err)
	}
	if err := m.ModalSubmit(context.Background(), ModalValues{Section: &SectionInput{Title: "S3"}}); err == nil {
		t.Fatalf("ModalSubmit: expected error")
	}
	if !m.Snapshot().IsModalOpen {
		t.Fatalf("modal closed despite failed submit")
	}
}

func TestConcurrentAddSectionsBothLand(t *testing.T) {
	c := seedCourse("Algebra", types.Section{Title: "S1", Files: []types.FileItem{}})
	m, store, _ := newTestManager(t, c)
	m.CardClick("Algebra")

	var wg sync.WaitGroup
	errs := make([]error, 2)
	titles := []string{"S2", "S3"}
	for i := range titles {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = m.SubmitSection(context.Background(), titles[i])
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("SubmitSection %q: %v", titles[i], err)
		}
	}
	local := m.Courses()[0]
	if len(local.Sections()) != 3 || local.Modules != 3 {
		t.Fatalf("lost update: sections=%d modules=%d", len(local.Sections()), local.Modules)
	}
	if store.updateCount() != 2 {
		t.Fatalf("update calls: want=2 got=%d", store.updateCount())
	}
	final := sectionsOf(t, store.lastUpdate(t))
	if len(final) != 3 {
		t.Fatalf("final patch sections: want=3 got=%d", len(final))
	}
}

func TestFileUploadIgnoresCompetingCardSelection(t *testing.T) {
	algebra := seedCourse("Algebra", types.Section{Title: "S1", Files: []types.FileItem{}})
	biology := seedCourse("Biology", types.Section{Title: "S1", Files: []types.FileItem{}})
	m, store, _ := newTestManager(t, algebra, biology)

	// Another session navigates to Biology between this caller resolving
	// Algebra and submitting the upload.
	m.CardClick("Biology")

	in := FileInput{Filename: "notes.pdf", File: strings.NewReader("x")}
	if err := m.SubmitFileFor(context.Background(), algebra.ID, "S1", in); err != nil {
		t.Fatalf("SubmitFileFor: %v", err)
	}

	if got := store.lastUpdate(t).courseID; got != algebra.ID {
		t.Fatalf("patch target: want=%s got=%s", algebra.ID, got)
	}
	for _, c := range m.Courses() {
		files := c.Sections()[0].Files
		switch c.ID {
		case algebra.ID:
			if len(files) != 1 {
				t.Fatalf("Algebra/S1 files: want=1 got=%d", len(files))
			}
		case biology.ID:
			if len(files) != 0 {
				t.Fatalf("Biology/S1 files: want=0 got=%d", len(files))
			}
		}
	}
}

func TestConcurrentUploadsToDistinctCoursesStaySeparate(t *testing.T) {
	algebra := seedCourse("Algebra", types.Section{Title: "S1", Files: []types.FileItem{}})
	biology := seedCourse("Biology", types.Section{Title: "S1", Files: []types.FileItem{}})
	m, store, _ := newTestManager(t, algebra, biology)

	targets := []*types.Course{algebra, biology}
	var wg sync.WaitGroup
	errs := make([]error, len(targets))
	for i, c := range targets {
		wg.Add(1)
		go func(i int, c *types.Course) {
			defer wg.Done()
			in := FileInput{Filename: fmt.Sprintf("f%d.pdf", i), File: strings.NewReader("x")}
			errs[i] = m.SubmitFileFor(context.Background(), c.ID, "S1", in)
		}(i, c)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("SubmitFileFor %s: %v", targets[i].Title, err)
		}
	}
	if store.updateCount() != 2 {
		t.Fatalf("update calls: want=2 got=%d", store.updateCount())
	}
	for _, c := range m.Courses() {
		if got := len(c.Sections()[0].Files); got != 1 {
			t.Fatalf("%s/S1 files: want=1 got=%d", c.Title, got)
		}
	}
}

func TestCoursesByYearLeavesSnapshotIntact(t *testing.T) {
	algebra := seedCourse("Algebra", types.Section{Title: "S1", Files: []types.FileItem{}})
	history := seedCourse("History", types.Section{Title: "S1", Files: []types.FileItem{}})
	history.Year = 2023
	m, _, _ := newTestManager(t, algebra, history)

	filtered, err := m.CoursesByYear(context.Background(), 2023)
	if err != nil {
		t.Fatalf("CoursesByYear: %v", err)
	}
	if len(filtered) != 1 || filtered[0].Title != "History" {
		t.Fatalf("filtered courses: %+v", filtered)
	}

	// The filtered read must not narrow the snapshot the mutation paths
	// resolve from.
	if got := len(m.Courses()); got != 2 {
		t.Fatalf("snapshot after filtered read: want=2 got=%d", got)
	}
	if err := m.SubmitSectionFor(context.Background(), algebra.ID, "S2"); err != nil {
		t.Fatalf("SubmitSectionFor after filtered read: %v", err)
	}
}
