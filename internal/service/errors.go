package service

import (
	"errors"
	"fmt"
)

// Error categories. Every error returned by the progress services matches
// exactly one of them with errors.Is.
var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("not found")
	ErrOwnership  = errors.New("permission denied")
	ErrConflict   = errors.New("conflict")
	ErrStorage    = errors.New("storage unavailable")
)

var (
	ErrMissingIdentifier   = fmt.Errorf("%w: quiz, student and submission identifiers are required", ErrValidation)
	ErrAttemptScoreMissing = fmt.Errorf("%w: score or correct_answers/total_questions required", ErrValidation)
	ErrAttemptScoreInvalid = fmt.Errorf("%w: correct_answers cannot exceed total_questions", ErrValidation)
	ErrUnknownQuestion     = fmt.Errorf("%w: answer references an unknown question", ErrValidation)
	ErrInvalidGradeStatus  = fmt.Errorf("%w: status must be PASSED or FAILED", ErrValidation)

	ErrQuizNotFound             = fmt.Errorf("quiz %w", ErrNotFound)
	ErrProgressNotFound         = fmt.Errorf("progress %w", ErrNotFound)
	ErrLevel1NotConfigured      = fmt.Errorf("level 1 assistance %w", ErrNotFound)
	ErrLevel2NotConfigured      = fmt.Errorf("level 2 assistance %w", ErrNotFound)
	ErrLevel3NotConfigured      = fmt.Errorf("level 3 material %w", ErrNotFound)
	ErrLevel2SubmissionNotFound = fmt.Errorf("level 2 submission %w", ErrNotFound)
	ErrStudentNotInClass        = fmt.Errorf("student %w in quiz class", ErrNotFound)

	ErrNotQuizOwner     = fmt.Errorf("%w: teacher does not own the quiz class", ErrOwnership)
	ErrNotClassMember   = fmt.Errorf("%w: student is not enrolled in the quiz class", ErrOwnership)
	ErrNotProgressOwner = fmt.Errorf("%w: progress belongs to another student", ErrOwnership)

	ErrProgressConflict        = fmt.Errorf("%w: progress was modified concurrently, try again", ErrConflict)
	ErrProgressBusy            = fmt.Errorf("%w: progress is locked by another request, try again", ErrConflict)
	ErrProgressTimeout         = fmt.Errorf("%w: progress update timed out, try again", ErrConflict)
	ErrAssistancePending       = fmt.Errorf("%w: an assistance level must be completed first", ErrConflict)
	ErrLevelNotActive          = fmt.Errorf("%w: assistance level is not currently required", ErrConflict)
	ErrLevel2AlreadyPending    = fmt.Errorf("%w: a level 2 submission is already awaiting grading", ErrConflict)
	ErrSubmissionAlreadyGraded = fmt.Errorf("%w: submission already graded", ErrConflict)
)

// StorageError wraps a persistence failure. It matches ErrStorage.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrStorage) true for every StorageError.
func (e *StorageError) Is(target error) bool { return target == ErrStorage }

func storageError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}

// isCategorized reports whether err already carries a domain category and
// can be returned to callers unchanged.
func isCategorized(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrOwnership) ||
		errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrStorage)
}
