// Package content owns every structural mutation of the course catalog:
// course, section, and file CRUD against the course store and the object
// bucket. It keeps an authoritative in-memory snapshot of the course list,
// folds the result of each successful remote call into it, and never applies
// a local change before the remote call has succeeded.
package content

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"

	"github.com/schoolhub/backend/internal/platform/logger"
	"github.com/schoolhub/backend/internal/types"
)

type ModalKind string

const (
	ModalNone    ModalKind = "none"
	ModalCourse  ModalKind = "course"
	ModalSection ModalKind = "section"
	ModalFile    ModalKind = "file"
)

// CleanupPolicy names the two storage-cleanup behaviors: Strict aborts on
// the first storage error before any metadata changes, BestEffort logs each
// failure and keeps going so the metadata removal always lands.
type CleanupPolicy int

const (
	CleanupStrict CleanupPolicy = iota
	CleanupBestEffort
)

const (
	EventCourseCreated = "course.created"
	EventCourseUpdated = "course.updated"
	EventCourseDeleted = "course.deleted"
)

// State is the read-only view the presentation layer renders from.
type State struct {
	Courses            []*types.Course
	ExpandedCard       string
	IsModalOpen        bool
	ModalType          ModalKind
	ActiveSectionTitle string
	EditingCourse      *types.Course
}

// CourseInput is the course form payload. Modules only sizes Content on
// initial creation; editing never resizes existing sections.
type CourseInput struct {
	Title       string
	Year        int
	Modules     int
	Author      string
	Description string
}

type SectionInput struct {
	Title string
}

// FileInput is the file form payload. Name is the display name and may be
// empty, in which case Filename (the uploaded file's own name) is used.
type FileInput struct {
	Name     string
	Filename string
	File     io.Reader
}

// ModalValues is the union of the three modal form shapes; ModalSubmit
// routes on the open modal's kind and requires the matching member.
type ModalValues struct {
	Course  *CourseInput
	Section *SectionInput
	File    *FileInput
}

type Manager struct {
	log   *logger.Logger
	store CourseStore
	files FileStore
	pub   Publisher

	mu            sync.Mutex
	courses       []*types.Course
	expanded      string
	modalOpen     bool
	modalType     ModalKind
	activeSection string
	editing       *types.Course

	locksMu sync.Mutex
	locks   map[uuid.UUID]*sync.Mutex
}

func NewManager(baseLog *logger.Logger, store CourseStore, files FileStore, pub Publisher) *Manager {
	return &Manager{
		log:       baseLog.With("component", "ContentManager"),
		store:     store,
		files:     files,
		pub:       pub,
		modalType: ModalNone,
		locks:     map[uuid.UUID]*sync.Mutex{},
	}
}

// Load fetches the full course list. On failure the list stays empty; the
// caller may retry by invoking Load again.
func (m *Manager) Load(ctx context.Context) error {
	courses, err := m.store.GetAll(ctx)
	if err != nil {
		m.mu.Lock()
		m.courses = nil
		m.mu.Unlock()
		m.log.Error("initial course fetch failed", "error", err)
		return fmt.Errorf("load courses: %w", err)
	}
	m.mu.Lock()
	m.courses = courses
	m.mu.Unlock()
	return nil
}

// CoursesByYear fetches the courses of one academic year straight from the
// store. The authoritative snapshot stays untouched, so a filtered read
// never narrows what the mutation paths can resolve.
func (m *Manager) CoursesByYear(ctx context.Context, year int) ([]*types.Course, error) {
	courses, err := m.store.GetByYear(ctx, year)
	if err != nil {
		m.log.Error("course fetch by year failed", "error", err, "year", year)
		return nil, fmt.Errorf("load courses for year %d: %w", year, err)
	}
	return courses, nil
}

// CardClick toggles the expanded course card. Pure local state; an unknown
// title is logged and ignored.
func (m *Manager) CardClick(title string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.expanded == title {
		m.expanded = ""
		return
	}
	if m.findByTitleLocked(title) == nil {
		m.log.Warn("card click for unknown course title", "title", title)
		return
	}
	m.expanded = title
}

func (m *Manager) OpenAddCourse() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.modalOpen = true
	m.modalType = ModalCourse
	m.editing = nil
}

func (m *Manager) OpenEditCourse(courseID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.findByIDLocked(courseID)
	if c == nil {
		return ErrCourseNotFound
	}
	m.modalOpen = true
	m.modalType = ModalCourse
	m.editing = cloneCourse(c)
	return nil
}

func (m *Manager) OpenAddSection() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := m.expandedCourseLocked(); err != nil {
		return err
	}
	m.modalOpen = true
	m.modalType = ModalSection
	return nil
}

func (m *Manager) OpenAddFile(sectionTitle string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, err := m.expandedCourseLocked()
	if err != nil {
		return err
	}
	if c.SectionIndex(sectionTitle) < 0 {
		return ErrSectionNotFound
	}
	m.modalOpen = true
	m.modalType = ModalFile
	m.activeSection = sectionTitle
	return nil
}

// CloseModal discards the in-progress form state. It does not cancel a
// remote call that is already in flight.
func (m *Manager) CloseModal() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closeModalLocked()
}

func (m *Manager) closeModalLocked() {
	m.modalOpen = false
	m.modalType = ModalNone
	m.activeSection = ""
	m.editing = nil
}

// ModalSubmit routes the submitted form values to the handler matching the
// open modal. On success the modal closes and the form state clears; on
// failure it stays open so the user can retry.
func (m *Manager) ModalSubmit(ctx context.Context, values ModalValues) error {
	m.mu.Lock()
	if !m.modalOpen {
		m.mu.Unlock()
		return ErrNoModalOpen
	}
	kind := m.modalType
	m.mu.Unlock()

	var err error
	switch kind {
	case ModalCourse:
		if values.Course == nil {
			return fmt.Errorf("course modal open but no course values submitted")
		}
		_, err = m.SubmitCourse(ctx, *values.Course)
	case ModalSection:
		if values.Section == nil {
			return fmt.Errorf("section modal open but no section values submitted")
		}
		err = m.SubmitSection(ctx, values.Section.Title)
	case ModalFile:
		if values.File == nil {
			return ErrMissingFile
		}
		err = m.SubmitFile(ctx, *values.File)
	default:
		return ErrNoModalOpen
	}
	if err != nil {
		return err
	}
	m.CloseModal()
	return nil
}

func (m *Manager) Snapshot() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	courses := make([]*types.Course, len(m.courses))
	copy(courses, m.courses)
	return State{
		Courses:            courses,
		ExpandedCard:       m.expanded,
		IsModalOpen:        m.modalOpen,
		ModalType:          m.modalType,
		ActiveSectionTitle: m.activeSection,
		EditingCourse:      m.editing,
	}
}

// Courses returns the current snapshot of the course list.
func (m *Manager) Courses() []*types.Course {
	return m.Snapshot().Courses
}

func (m *Manager) findByTitleLocked(title string) *types.Course {
	for _, c := range m.courses {
		if c.Title == title {
			return c
		}
	}
	return nil
}

func (m *Manager) findByIDLocked(id uuid.UUID) *types.Course {
	for _, c := range m.courses {
		if c.ID == id {
			return c
		}
	}
	return nil
}

// expandedCourseLocked resolves the expanded card to a persisted course.
func (m *Manager) expandedCourseLocked() (*types.Course, error) {
	if m.expanded == "" {
		return nil, ErrNoCourseExpanded
	}
	c := m.findByTitleLocked(m.expanded)
	if c == nil {
		return nil, ErrCourseNotFound
	}
	if c.ID == uuid.Nil {
		return nil, ErrCourseNotPersisted
	}
	return c, nil
}

// expandedCourse returns a deep copy of the expanded course so callers can
// mutate it freely before the remote patch.
func (m *Manager) expandedCourse() (*types.Course, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, err := m.expandedCourseLocked()
	if err != nil {
		return nil, err
	}
	return cloneCourse(c), nil
}

// courseByID returns a deep copy of the course with the given ID. The
// ID-addressed mutation paths use it instead of the expanded card, so one
// caller's navigation can never retarget another's operation.
func (m *Manager) courseByID(id uuid.UUID) (*types.Course, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.findByIDLocked(id)
	if c == nil {
		return nil, ErrCourseNotFound
	}
	return cloneCourse(c), nil
}

// replaceCourse folds a known-good mutation result into the snapshot,
// replacing the entry with the same ID. The list itself is replaced
// wholesale rather than edited in place.
func (m *Manager) replaceCourse(updated *types.Course) {
	m.mu.Lock()
	defer m.mu.Unlock()
	next := make([]*types.Course, len(m.courses))
	for i, c := range m.courses {
		if c.ID == updated.ID {
			next[i] = updated
			// Keep the expanded card pointing at the course across renames.
			if m.expanded == c.Title {
				m.expanded = updated.Title
			}
			continue
		}
		next[i] = c
	}
	m.courses = next
}

// courseLock serializes all mutations of one course; the lock is held for
// the whole read-mutate-patch cycle so two overlapping submissions cannot
// overwrite each other's content.
func (m *Manager) courseLock(id uuid.UUID) *sync.Mutex {
	m.locksMu.Lock()
	defer m.locksMu.Unlock()
	if l, ok := m.locks[id]; ok {
		return l
	}
	l := &sync.Mutex{}
	m.locks[id] = l
	return l
}

func (m *Manager) publish(event string, data map[string]interface{}) {
	if m.pub == nil {
		return
	}
	m.pub.Publish(event, data)
}

func cloneCourse(c *types.Course) *types.Course {
	cp := *c
	sections := c.Sections()
	cloned := make([]types.Section, len(sections))
	for i, s := range sections {
		files := make([]types.FileItem, len(s.Files))
		copy(files, s.Files)
		cloned[i] = types.Section{Title: s.Title, Files: files}
	}
	cp.SetSections(cloned)
	cp.Modules = c.Modules
	return &cp
}
