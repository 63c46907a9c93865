package content

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/schoolhub/backend/internal/types"
)

// SubmitFile uploads the pending modal file into the active section of the
// expanded course.
func (m *Manager) SubmitFile(ctx context.Context, in FileInput) error {
	m.mu.Lock()
	sectionTitle := m.activeSection
	m.mu.Unlock()
	if sectionTitle == "" {
		return ErrSectionNotFound
	}
	if in.File == nil {
		return ErrMissingFile
	}
	course, err := m.expandedCourse()
	if err != nil {
		return err
	}
	return m.SubmitFileFor(ctx, course.ID, sectionTitle, in)
}

// SubmitFileFor uploads the file to the object store, appends it to the
// named section of the course with the given ID, and patches the course's
// content array. An upload failure aborts before any metadata change. A
// patch failure after a successful upload triggers a compensating delete of
// the just-uploaded object; when that delete fails too the error reports the
// orphaned storage path.
func (m *Manager) SubmitFileFor(ctx context.Context, courseID uuid.UUID, sectionTitle string, in FileInput) error {
	if in.File == nil {
		return ErrMissingFile
	}

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

	res, err := m.files.Upload(ctx, in.File, in.Filename, course.ID, sectionTitle)
	if err != nil {
		m.log.Error("file upload failed", "error", err, "course_id", course.ID, "section", sectionTitle)
		return fmt.Errorf("upload file: %w", err)
	}

	name := in.Name
	if name == "" {
		name = in.Filename
	}
	uploadedAt := res.UploadedAt
	item := types.FileItem{
		Name:        name,
		URL:         res.URL,
		Type:        res.Type,
		UploadedAt:  &uploadedAt,
		StoragePath: res.StoragePath,
	}

	sections := course.Sections()
	sections[idx].Files = append(sections[idx].Files, item)
	course.SetSections(sections)

	fields := map[string]interface{}{"content": contentField(sections)}
	if err := m.store.Update(ctx, course.ID, fields); err != nil {
		m.log.Error("content patch failed after upload", "error", err, "course_id", course.ID, "storage_path", res.StoragePath)
		if cleanupErr := m.files.Delete(ctx, res.StoragePath); cleanupErr != nil {
			m.log.Error("compensating delete of uploaded file failed", "error", cleanupErr, "storage_path", res.StoragePath)
			return &ErrCompensationFailed{StoragePath: res.StoragePath, PatchErr: err, CleanupErr: cleanupErr}
		}
		return fmt.Errorf("attach file: %w", err)
	}

	m.replaceCourse(course)
	m.publish(EventCourseUpdated, map[string]interface{}{"course_id": course.ID, "section": sectionTitle, "file": name})
	return nil
}

// RenameFile renames a file in the expanded course.
func (m *Manager) RenameFile(ctx context.Context, sectionTitle string, fileIndex int, newName string) error {
	course, err := m.expandedCourse()
	if err != nil {
		return err
	}
	return m.RenameFileFor(ctx, course.ID, sectionTitle, fileIndex, newName)
}

// RenameFileFor replaces the display name of the file at the given position
// in the section's file list. The position is a plain index, not a stable
// key.
func (m *Manager) RenameFileFor(ctx context.Context, courseID uuid.UUID, sectionTitle string, fileIndex int, newName string) error {
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
	if fileIndex < 0 || fileIndex >= len(sections[idx].Files) {
		return ErrFileNotFound
	}

	sections[idx].Files[fileIndex].Name = newName
	course.SetSections(sections)

	fields := map[string]interface{}{"content": contentField(sections)}
	if err := m.store.Update(ctx, course.ID, fields); err != nil {
		m.log.Error("rename file failed", "error", err, "course_id", course.ID, "section", sectionTitle)
		return fmt.Errorf("rename file: %w", err)
	}

	m.replaceCourse(course)
	m.publish(EventCourseUpdated, map[string]interface{}{"course_id": course.ID, "section": sectionTitle})
	return nil
}

// DeleteFile removes a file from the expanded course.
func (m *Manager) DeleteFile(ctx context.Context, sectionTitle string, fileIndex int) error {
	course, err := m.expandedCourse()
	if err != nil {
		return err
	}
	return m.DeleteFileFor(ctx, course.ID, sectionTitle, fileIndex)
}

// DeleteFileFor removes one file, storage first: the object delete must
// succeed before the course document is touched, so metadata and storage
// never diverge on this path. A file without a storage path is refused
// outright.
func (m *Manager) DeleteFileFor(ctx context.Context, courseID uuid.UUID, sectionTitle string, fileIndex int) error {
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
	if fileIndex < 0 || fileIndex >= len(sections[idx].Files) {
		return ErrFileNotFound
	}
	file := sections[idx].Files[fileIndex]
	if file.StoragePath == "" {
		return ErrMissingStoragePath
	}

	if err := m.files.Delete(ctx, file.StoragePath); err != nil {
		m.log.Error("storage delete failed", "error", err, "storage_path", file.StoragePath)
		return fmt.Errorf("delete stored file: %w", err)
	}

	sections[idx].Files = append(sections[idx].Files[:fileIndex], sections[idx].Files[fileIndex+1:]...)
	course.SetSections(sections)

	fields := map[string]interface{}{"content": contentField(sections)}
	if err := m.store.Update(ctx, course.ID, fields); err != nil {
		m.log.Error("content patch failed after storage delete", "error", err, "course_id", course.ID)
		return fmt.Errorf("detach file: %w", err)
	}

	m.replaceCourse(course)
	m.publish(EventCourseUpdated, map[string]interface{}{"course_id": course.ID, "section": sectionTitle})
	return nil
}
