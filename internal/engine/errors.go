package engine

import (
	"context"
	"errors"
	"fmt"

	"stargate/internal/repo"
)

// Kind classifies every failure the engine reports.
type Kind string

const (
	KindNotFound         Kind = "not_found"
	KindInvalidReference Kind = "invalid_reference"
	KindConflict         Kind = "conflict"
	KindUnexpected       Kind = "unexpected"
)

// Subjects name what a failure is about.
const (
	SubjectPerson          = "person"
	SubjectRank            = "rank"
	SubjectDutyTitle       = "dutyTitle"
	SubjectDutyStartDate   = "dutyStartDate"
	SubjectName            = "name"
	SubjectDuplicateDuty   = "duplicateDuty"
	SubjectCurrentDuty     = "currentDuty"
	SubjectDuplicatePerson = "duplicatePerson"
	SubjectStore           = "store"
)

const (
	msgCurrentDuty     = "Person already has a current duty. Only one current duty is allowed per person."
	msgDuplicatePerson = "A person with this name already exists. Person names must be unique."
	msgUnexpected      = "An unexpected error occurred."
)

type Error struct {
	Kind    Kind
	Subject string
	// Message is safe to show to API clients.
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the Kind of err, KindUnexpected for foreign errors and ""
// for nil.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnexpected
}

// SubjectOf returns the Subject of an engine error, "" otherwise.
func SubjectOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Subject
	}
	return ""
}

func notFound(subject, format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Subject: subject, Message: fmt.Sprintf(format, args...)}
}

func invalidReference(subject, format string, args ...any) *Error {
	return &Error{Kind: KindInvalidReference, Subject: subject, Message: fmt.Sprintf(format, args...)}
}

func conflict(subject, format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Subject: subject, Message: fmt.Sprintf(format, args...)}
}

func unexpected(op string, err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{Kind: KindUnexpected, Subject: SubjectStore, Message: msgUnexpected, Err: fmt.Errorf("%s: %w", op, err)}
}

// storeError translates unique violations raised by the store into conflicts.
func storeError(op string, err error) *Error {
	switch repo.ConstraintOf(err) {
	case repo.ConstraintDutyTitleStart:
		return &Error{Kind: KindConflict, Subject: SubjectDuplicateDuty, Message: "An astronaut duty with this duty title and start date already exists.", Err: err}
	case repo.ConstraintOpenDuty:
		return &Error{Kind: KindConflict, Subject: SubjectCurrentDuty, Message: msgCurrentDuty, Err: err}
	case repo.ConstraintPersonName:
		return &Error{Kind: KindConflict, Subject: SubjectDuplicatePerson, Message: msgDuplicatePerson, Err: err}
	}
	if errors.Is(err, repo.ErrUniqueViolation) {
		return &Error{Kind: KindConflict, Subject: repo.ConstraintOf(err), Message: "The change conflicts with existing data.", Err: err}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindUnexpected, Subject: SubjectStore, Message: "The operation was canceled.", Err: err}
	}
	return unexpected(op, err)
}
