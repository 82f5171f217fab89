package domain

import "errors"

// Storage-level sentinels. Repositories translate backend absence indicators
// into these; services translate them into kinded service errors.
var (
	ErrUserNotFound    = errors.New("user not found")
	ErrGameNotFound    = errors.New("game not found")
	ErrSessionNotFound = errors.New("game session not found")
	ErrDuplicateUser   = errors.New("user with this email or username already exists")
	ErrDuplicateGame   = errors.New("game with this name already exists")
	ErrUserNotRanked   = errors.New("user not ranked on leaderboard")
)

// Kind classifies a service failure so the transport layer can map status
// codes without inspecting message text.
type Kind string

const (
	KindValidation         Kind = "validation_failed"
	KindNotFound           Kind = "not_found"
	KindDuplicate          Kind = "duplicate"
	KindInvalidCredentials Kind = "invalid_credentials"
	KindInternal           Kind = "internal"
)

// Error families, one per aggregate.
const (
	ServiceUser = "user"
	ServiceGame = "game"
)

// ServiceError is the single error family raised per service. Every failure
// leaving a service carries one: validation and not-found conditions directly,
// unexpected lower-layer failures wrapped with their cause preserved.
type ServiceError struct {
	Service string
	Kind    Kind
	Message string
	Cause   error
}

func (e *ServiceError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *ServiceError) Unwrap() error {
	return e.Cause
}

// NewUserError builds a user-family error with no underlying cause.
func NewUserError(kind Kind, message string) *ServiceError {
	return &ServiceError{Service: ServiceUser, Kind: kind, Message: message}
}

// NewGameError builds a game-family error with no underlying cause.
func NewGameError(kind Kind, message string) *ServiceError {
	return &ServiceError{Service: ServiceGame, Kind: kind, Message: message}
}

// WrapUserError funnels a lower-layer failure into the user error family.
// An error already belonging to the family passes through unchanged so its
// kind and message survive re-wrapping at outer call sites.
func WrapUserError(err error, message string) error {
	var se *ServiceError
	if errors.As(err, &se) && se.Service == ServiceUser {
		return err
	}
	return &ServiceError{Service: ServiceUser, Kind: KindInternal, Message: message, Cause: err}
}

// WrapGameError is the game-family counterpart of WrapUserError.
func WrapGameError(err error, message string) error {
	var se *ServiceError
	if errors.As(err, &se) && se.Service == ServiceGame {
		return err
	}
	return &ServiceError{Service: ServiceGame, Kind: KindInternal, Message: message, Cause: err}
}

// KindOf returns the kind attached to a service error, or KindInternal for
// anything else.
func KindOf(err error) Kind {
	var se *ServiceError
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindInternal
}

// IsNotFound reports whether the error carries the not-found kind.
func IsNotFound(err error) bool {
	return KindOf(err) == KindNotFound
}

// IsValidation reports whether the error carries the validation kind.
func IsValidation(err error) bool {
	return KindOf(err) == KindValidation
}

// IsDuplicate reports whether the error carries the duplicate kind.
func IsDuplicate(err error) bool {
	return KindOf(err) == KindDuplicate
}
