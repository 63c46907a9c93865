package content

import "errors"

// Precondition errors are detected before any remote call; when one is
// returned the course list and the remote stores are untouched.
var (
	ErrNoCourseExpanded   = errors.New("no course is currently expanded")
	ErrCourseNotFound     = errors.New("course not found")
	ErrCourseNotPersisted = errors.New("course has no id yet")
	ErrSectionNotFound    = errors.New("section not found")
	ErrFileNotFound       = errors.New("file not found")
	ErrMissingFile        = errors.New("no file payload submitted")
	ErrMissingStoragePath = errors.New("file has no storage path; refusing to delete")
	ErrDuplicateSection   = errors.New("a section with that title already exists")
	ErrNoModalOpen        = errors.New("no modal is open")
)

// ErrCompensationFailed reports that a course patch failed after a
// successful upload and the compensating storage delete failed too, leaving
// an orphaned object behind.
type ErrCompensationFailed struct {
	StoragePath string
	PatchErr    error
	CleanupErr  error
}

func (e *ErrCompensationFailed) Error() string {
	return "course patch failed and cleanup of uploaded file also failed: " +
		e.PatchErr.Error() + "; cleanup: " + e.CleanupErr.Error()
}

func (e *ErrCompensationFailed) Unwrap() error { return e.PatchErr }
