// Package apperror defines the domain error kinds returned by services and
// repositories. Handlers translate them to HTTP statuses; nothing below the
// handler layer knows about HTTP.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation error")
	ErrConflict   = errors.New("conflict")
	ErrForbidden  = errors.New("forbidden")

	// Membership
	ErrAlreadyMember      = errors.New("already a member")
	ErrNotMember          = errors.New("not a member")
	ErrCreatorCannotLeave = errors.New("creator cannot leave")

	// Prediction lifecycle
	ErrDuplicatePrediction   = errors.New("duplicate prediction")
	ErrFixtureAlreadyStarted = errors.New("fixture already started")
	ErrPredictionLocked      = errors.New("prediction locked")

	// Fixture completion
	ErrAlreadyCompleted = errors.New("fixture already completed")
	ErrNotCompleted     = errors.New("fixture not completed")
	ErrNoChange         = errors.New("no change")

	ErrCodeGenerationExhausted = errors.New("group code generation exhausted")
)

type AppError struct {
	Err     error  // sentinel kind, matched with errors.Is
	Message string // human-readable message
	Field   string // optional: input field that caused the error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New wraps a sentinel kind with a message.
func New(kind error, format string, args ...any) *AppError {
	return &AppError{
		Err:     kind,
		Message: fmt.Sprintf(format, args...),
	}
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

func Conflict(resource, id string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s conflict with id %s", resource, id),
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

func AlreadyMember(userID, groupID string) *AppError {
	return New(ErrAlreadyMember, "user %s is already a member of group %s", userID, groupID)
}

func NotMember(userID, groupID string) *AppError {
	return New(ErrNotMember, "user %s is not a member of group %s", userID, groupID)
}

func CreatorCannotLeave(groupID string) *AppError {
	return New(ErrCreatorCannotLeave, "the creator of group %s cannot leave it; delete the group instead", groupID)
}

func DuplicatePrediction(fixtureID int64) *AppError {
	return New(ErrDuplicatePrediction, "a prediction for fixture %d already exists in this group", fixtureID)
}

func FixtureAlreadyStarted(fixtureID int64) *AppError {
	return New(ErrFixtureAlreadyStarted, "fixture %d has already started", fixtureID)
}

func PredictionLocked(fixtureID int64) *AppError {
	return New(ErrPredictionLocked, "prediction for fixture %d is locked", fixtureID)
}

func AlreadyCompleted(fixtureID int64) *AppError {
	return New(ErrAlreadyCompleted, "fixture %d is already completed; use the correction path", fixtureID)
}

func NotCompleted(fixtureID int64) *AppError {
	return New(ErrNotCompleted, "fixture %d is not completed", fixtureID)
}

func NoChange(fixtureID int64) *AppError {
	return New(ErrNoChange, "fixture %d already has these scores", fixtureID)
}

func CodeGenerationExhausted(attempts int) *AppError {
	return New(ErrCodeGenerationExhausted, "could not allocate a unique group code after %d attempts", attempts)
}
