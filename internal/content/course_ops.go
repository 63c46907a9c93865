package content

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/schoolhub/backend/internal/types"
)

// SubmitCourse persists the course form from the open modal: editing when a
// course was opened for edit, creating otherwise.
func (m *Manager) SubmitCourse(ctx context.Context, in CourseInput) (*types.Course, error) {
	m.mu.Lock()
	editing := m.editing
	m.mu.Unlock()

	if editing != nil {
		return m.UpdateCourse(ctx, editing.ID, in)
	}
	return m.CreateCourse(ctx, in)
}

// CreateCourse persists a new course, synthesizing Modules empty sections
// titled "Section 1..N".
func (m *Manager) CreateCourse(ctx context.Context, in CourseInput) (*types.Course, error) {
	sections := make([]types.Section, in.Modules)
	for i := range sections {
		sections[i] = types.Section{
			Title: fmt.Sprintf("Section %d", i+1),
			Files: []types.FileItem{},
		}
	}

	course := &types.Course{
		Title:       in.Title,
		Year:        in.Year,
		Author:      in.Author,
		Description: in.Description,
	}
	course.SetSections(sections)

	id, err := m.store.Create(ctx, course)
	if err != nil {
		m.log.Error("create course failed", "error", err, "title", in.Title)
		return nil, fmt.Errorf("create course: %w", err)
	}
	course.ID = id

	m.mu.Lock()
	next := make([]*types.Course, len(m.courses), len(m.courses)+1)
	copy(next, m.courses)
	m.courses = append(next, course)
	m.mu.Unlock()

	m.publish(EventCourseCreated, map[string]interface{}{"course_id": id, "title": course.Title})
	return course, nil
}

// UpdateCourse replaces the descriptive fields of the course with the given
// ID but deliberately leaves the existing section tree alone (a changed
// module count never resizes content after creation).
func (m *Manager) UpdateCourse(ctx context.Context, courseID uuid.UUID, in CourseInput) (*types.Course, error) {
	lock := m.courseLock(courseID)
	lock.Lock()
	defer lock.Unlock()

	updated, err := m.courseByID(courseID)
	if err != nil {
		return nil, err
	}

	updated.Title = in.Title
	updated.Year = in.Year
	updated.Author = in.Author
	updated.Description = in.Description
	updated.Modules = in.Modules

	fields := map[string]interface{}{
		"title":       in.Title,
		"year":        in.Year,
		"modules":     in.Modules,
		"author":      in.Author,
		"description": in.Description,
	}
	if err := m.store.Update(ctx, courseID, fields); err != nil {
		m.log.Error("update course failed", "error", err, "course_id", courseID)
		return nil, fmt.Errorf("update course: %w", err)
	}

	m.replaceCourse(updated)
	m.publish(EventCourseUpdated, map[string]interface{}{"course_id": courseID, "title": updated.Title})
	return updated, nil
}

// DeleteCourse removes every stored file of the course best-effort, then
// deletes the course document. Individual storage failures are logged and
// skipped; a failed document delete leaves the course in local state.
func (m *Manager) DeleteCourse(ctx context.Context, courseID uuid.UUID) error {
	lock := m.courseLock(courseID)
	lock.Lock()
	defer lock.Unlock()

	course, err := m.courseByID(courseID)
	if err != nil {
		return err
	}

	m.cleanupFiles(ctx, course.Sections(), CleanupBestEffort)

	if err := m.store.Delete(ctx, courseID); err != nil {
		m.log.Error("delete course document failed", "error", err, "course_id", courseID)
		return fmt.Errorf("delete course: %w", err)
	}

	m.mu.Lock()
	next := make([]*types.Course, 0, len(m.courses))
	for _, c := range m.courses {
		if c.ID == courseID {
			continue
		}
		next = append(next, c)
	}
	m.courses = next
	if m.expanded == course.Title {
		m.expanded = ""
	}
	m.mu.Unlock()

	m.publish(EventCourseDeleted, map[string]interface{}{"course_id": courseID, "title": course.Title})
	return nil
}

func contentField(sections []types.Section) datatypes.JSONType[[]types.Section] {
	return datatypes.NewJSONType(sections)
}
