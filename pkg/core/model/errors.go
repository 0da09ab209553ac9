package model

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a domain rule violation
type ErrorKind int

const (
	KindNotAuthorized ErrorKind = iota + 1
	KindNotOwner
	KindInvalidSchedule
	KindInvalidDefinition
	KindCampNotFound
	KindCooldownActive
	KindNotEligibleDonor
	KindCampNotRegistrable
	KindAlreadyRegistered
	KindRegistrationNotFound
	KindCampFull
	KindNotRegistered
	KindDuplicateAttendance
	KindAttendanceNotFound
)

var kindMessages = map[ErrorKind]string{
	KindNotAuthorized:        "not authorized to perform this action",
	KindNotOwner:             "only the camp organizer can modify this camp",
	KindInvalidSchedule:      "camp schedule is invalid",
	KindInvalidDefinition:    "camp definition is invalid",
	KindCampNotFound:         "camp not found",
	KindCooldownActive:       "not eligible to register for new camps due to recent blood donation",
	KindNotEligibleDonor:     "only verified donors can register for camps",
	KindCampNotRegistrable:   "camp is not available for registration",
	KindAlreadyRegistered:    "already registered for this camp",
	KindRegistrationNotFound: "registration not found",
	KindCampFull:             "camp is full",
	KindNotRegistered:        "donor is not registered for this camp",
	KindDuplicateAttendance:  "attendance already recorded for this donor",
	KindAttendanceNotFound:   "attendance record not found",
}

var kindNames = map[ErrorKind]string{
	KindNotAuthorized:        "NotAuthorized",
	KindNotOwner:             "NotOwner",
	KindInvalidSchedule:      "InvalidSchedule",
	KindInvalidDefinition:    "InvalidDefinition",
	KindCampNotFound:         "CampNotFound",
	KindCooldownActive:       "CooldownActive",
	KindNotEligibleDonor:     "NotEligibleDonor",
	KindCampNotRegistrable:   "CampNotRegistrable",
	KindAlreadyRegistered:    "AlreadyRegistered",
	KindRegistrationNotFound: "RegistrationNotFound",
	KindCampFull:             "CampFull",
	KindNotRegistered:        "NotRegistered",
	KindDuplicateAttendance:  "DuplicateAttendance",
	KindAttendanceNotFound:   "AttendanceNotFound",
}

func (k ErrorKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// Message returns the default user-facing message for the kind
func (k ErrorKind) Message() string {
	return kindMessages[k]
}

// Error is a domain rule violation. Two errors match under errors.Is when their kinds match.
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Kind.Message()
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// NewError builds an Error with a formatted message; an empty format uses the kind's default message
func NewError(kind ErrorKind, format string, args ...any) *Error {
	if format == "" {
		return &Error{Kind: kind}
	}
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf extracts the ErrorKind from err, if it wraps a domain Error
func KindOf(err error) (ErrorKind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// Sentinels for errors.Is comparisons
var (
	ErrNotAuthorized        = &Error{Kind: KindNotAuthorized}
	ErrNotOwner             = &Error{Kind: KindNotOwner}
	ErrInvalidSchedule      = &Error{Kind: KindInvalidSchedule}
	ErrInvalidDefinition    = &Error{Kind: KindInvalidDefinition}
	ErrCampNotFound         = &Error{Kind: KindCampNotFound}
	ErrCooldownActive       = &Error{Kind: KindCooldownActive}
	ErrNotEligibleDonor     = &Error{Kind: KindNotEligibleDonor}
	ErrCampNotRegistrable   = &Error{Kind: KindCampNotRegistrable}
	ErrAlreadyRegistered    = &Error{Kind: KindAlreadyRegistered}
	ErrRegistrationNotFound = &Error{Kind: KindRegistrationNotFound}
	ErrCampFull             = &Error{Kind: KindCampFull}
	ErrNotRegistered        = &Error{Kind: KindNotRegistered}
	ErrDuplicateAttendance  = &Error{Kind: KindDuplicateAttendance}
	ErrAttendanceNotFound   = &Error{Kind: KindAttendanceNotFound}
)
