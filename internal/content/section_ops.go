package content

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/schoolhub/backend/internal/types"
)

// SubmitSection appends an empty section to the expanded course.
func (m *Manager) SubmitSection(ctx context.Context, title string) error {
	course, err := m.expandedCourse()
	if err != nil {
		return err
	}
	return m.SubmitSectionFor(ctx, course.ID, title)
}

// SubmitSectionFor appends an empty section to the course with the given ID
// and patches the full content array plus the recomputed module count.
// Titles are keys, so a duplicate is rejected before any remote call.
func (m *Manager) SubmitSectionFor(ctx context.Context, courseID uuid.UUID, title string) error {
	lock := m.courseLock(courseID)
	lock.Lock()
	defer lock.Unlock()

	course, err := m.courseByID(courseID)
	if err != nil {
		return err
	}
	if course.SectionIndex(title) >= 0 {
		return ErrDuplicateSection
	}

	sections := append(course.Sections(), types.Section{Title: title, Files: []types.FileItem{}})
	course.SetSections(sections)

	fields := map[string]interface{}{
		"content": contentField(sections),
		"modules": len(sections),
	}
	if err := m.store.Update(ctx, course.ID, fields); err != nil {
		m.log.Error("add section failed", "error", err, "course_id", course.ID, "section", title)
		return fmt.Errorf("add section: %w", err)
	}

	m.replaceCourse(course)
	m.publish(EventCourseUpdated, map[string]interface{}{"course_id": course.ID, "section": title})
	return nil
}

// RenameSection replaces a section title in the expanded course.
func (m *Manager) RenameSection(ctx context.Context, oldTitle, newTitle string) error {
	course, err := m.expandedCourse()
	if err != nil {
		return err
	}
	return m.RenameSectionFor(ctx, course.ID, oldTitle, newTitle)
}

// RenameSectionFor replaces the title of the matching section in the course
// with the given ID. A rename is a key change, so the new title must not
// collide with another section.
func (m *Manager) RenameSectionFor(ctx context.Context, courseID uuid.UUID, oldTitle, newTitle string) error {
	lock := m.courseLock(courseID)
	lock.Lock()
	defer lock.Unlock()

	course, err := m.courseByID(courseID)
	if err != nil {
		return err
	}
	idx := course.SectionIndex(oldTitle)
	if idx < 0 {
		return ErrSectionNotFound
	}
	if newTitle != oldTitle && course.SectionIndex(newTitle) >= 0 {
		return ErrDuplicateSection
	}

	sections := course.Sections()
	sections[idx].Title = newTitle
	course.SetSections(sections)

	fields := map[string]interface{}{"content": contentField(sections)}
	if err := m.store.Update(ctx, course.ID, fields); err != nil {
		m.log.Error("rename section failed", "error", err, "course_id", course.ID, "section", oldTitle)
		return fmt.Errorf("rename section: %w", err)
	}

	m.replaceCourse(course)
	m.publish(EventCourseUpdated, map[string]interface{}{"course_id": course.ID, "section": newTitle})
	return nil
}

// DeleteSection removes a section from the expanded course.
func (m *Manager) DeleteSection(ctx context.Context, sectionTitle string) error {
	course, err := m.expandedCourse()
	if err != nil {
		return err
	}
	return m.DeleteSectionFor(ctx, course.ID, sectionTitle)
}

// DeleteSectionFor removes the section after a best-effort cleanup of its
// stored files: individual storage failures are logged and do not keep the
// metadata removal from landing.
func (m *Manager) DeleteSectionFor(ctx context.Context, courseID uuid.UUID, sectionTitle string) error {
	lock := m.courseLock(courseID)
	lock.Lock()
	defer lock.Unlock()

	course, err := m.courseByID(courseID)
	if err != nil {
		return err
	}
	idx := course.SectionIndex(sectionTitle)
	if idx < 0 {
		return ErrSectionNotFound
	}

	sections := course.Sections()
	m.cleanupFiles(ctx, sections[idx:idx+1], CleanupBestEffort)

	sections = append(sections[:idx], sections[idx+1:]...)
	course.SetSections(sections)

	fields := map[string]interface{}{
		"content": contentField(sections),
		"modules": len(sections),
	}
	if err := m.store.Update(ctx, course.ID, fields); err != nil {
		m.log.Error("delete section failed", "error", err, "course_id", course.ID, "section", sectionTitle)
		return fmt.Errorf("delete section: %w", err)
	}

	m.replaceCourse(course)
	m.publish(EventCourseUpdated, map[string]interface{}{"course_id": course.ID, "section": sectionTitle})
	return nil
}

// cleanupFiles deletes every stored file of the given sections under the
// given policy. Files without a storage path are skipped. Under
// CleanupBestEffort all failures are logged and swallowed; under
// CleanupStrict the first failure is returned.
func (m *Manager) cleanupFiles(ctx context.Context, sections []types.Section, policy CleanupPolicy) error {
	if policy == CleanupStrict {
		for _, s := range sections {
			for _, f := range s.Files {
				if f.StoragePath == "" {
					continue
				}
				if err := m.files.Delete(ctx, f.StoragePath); err != nil {
					return fmt.Errorf("delete stored file %q: %w", f.StoragePath, err)
				}
			}
		}
		return nil
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, s := range sections {
		for _, f := range s.Files {
			if f.StoragePath == "" {
				continue
			}
			path := f.StoragePath
			g.Go(func() error {
				if err := m.files.Delete(ctx, path); err != nil {
					m.log.Warn("best-effort file cleanup failed", "error", err, "storage_path", path)
				}
				return nil
			})
		}
	}
	_ = g.Wait()
	return nil
}
