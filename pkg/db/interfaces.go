package db

import (
	"context"
	"errors"
	"time"

	"github.com/jakechorley/blood-camps/pkg/core/model"
)

var (
	ErrNotFound               = errors.New("record not found")
	ErrCampFull               = errors.New("camp has no available slots")
	ErrAlreadyRegistered      = errors.New("active registration already exists")
	ErrNotRegistered          = errors.New("no active registration")
	ErrDuplicateAttendance    = errors.New("attendance already recorded")
	ErrCapacityBelowOccupied  = errors.New("max donors below current registrations")
	ErrCampNotAcceptingDonors = errors.New("camp is inactive")
)

// CampStore defines the interface for camp database operations
type CampStore interface {
	InsertCamp(ctx context.Context, camp *Camp) error
	// UpdateCamp replaces the editable fields of a camp. It never touches current_donors and
	// returns ErrCapacityBelowOccupied if MaxDonors is below the occupied count at commit time.
	UpdateCamp(ctx context.Context, camp *Camp) error
	SetCampActive(ctx context.Context, campID string, active bool) error
	GetCamp(ctx context.Context, campID string) (*Camp, error)
	ListCamps(ctx context.Context) ([]Camp, error)
}

// RegistrationStore defines the interface for registration database operations.
// Implementations own current_donors: every method that changes registration status
// adjusts the counter in the same transaction.
type RegistrationStore interface {
	// ReserveAndRegister increments current_donors only while it is below max_donors and
	// inserts reg, atomically. Returns ErrCampFull, ErrAlreadyRegistered,
	// ErrCampNotAcceptingDonors or ErrNotFound without side effects.
	ReserveAndRegister(ctx context.Context, reg *Registration) error
	// CancelRegistration marks the active registration CANCELLED and recomputes
	// current_donors from the ledger. Returns ErrNotRegistered if none is active.
	CancelRegistration(ctx context.Context, campID, donorID string, at time.Time) (*Registration, error)
	GetActiveRegistration(ctx context.Context, campID, donorID string) (*Registration, error)
	ListRegistrationsByCamp(ctx context.Context, campID string) ([]Registration, error)
	ListRegistrationsByDonor(ctx context.Context, donorID string) ([]Registration, error)
	// ReconcileCampCounter sets current_donors to the number of REGISTERED rows and returns it
	ReconcileCampCounter(ctx context.Context, campID string) (int, error)
}

// AttendanceStore defines the interface for attendance database operations
type AttendanceStore interface {
	// InsertAttendance inserts a record only while an active registration exists for the same
	// camp and donor. Returns ErrNotRegistered or ErrDuplicateAttendance.
	InsertAttendance(ctx context.Context, a *Attendance) error
	GetAttendance(ctx context.Context, campID, donorID string) (*Attendance, error)
	// MarkBloodDonated sets blood_donated and notes. alreadyDonated reports the previous flag.
	MarkBloodDonated(ctx context.Context, campID, donorID, notes string) (a *Attendance, alreadyDonated bool, err error)
	ListAttendanceByCamp(ctx context.Context, campID string) ([]Attendance, error)
}

// DonationStore defines the interface for donation database operations
type DonationStore interface {
	// InsertDonation is idempotent on Donation.ID; created is false when the ID already exists
	InsertDonation(ctx context.Context, d *Donation) (created bool, err error)
	// LastCampDonation returns nil, nil when the donor has no camp donations
	LastCampDonation(ctx context.Context, donorID string) (*Donation, error)
	CountCampDonationsSince(ctx context.Context, donorID string, since time.Time) (int, error)
	// ListDonationsByDonor returns camp and ad-hoc donations, newest donation date first
	ListDonationsByDonor(ctx context.Context, donorID string) ([]Donation, error)
}

// UserDirectory is the read-only view of user accounts
type UserDirectory interface {
	GetUser(ctx context.Context, userID string) (*model.User, error)
}

// UserSync loads a roster snapshot into the directory
type UserSync interface {
	UpsertUsers(ctx context.Context, users []model.User) error
}

// Database defines the interface for all database operations.
// Both the in-memory MemDB and postgres.DB implement this interface.
type Database interface {
	CampStore
	RegistrationStore
	AttendanceStore
	DonationStore
	UserDirectory
	UserSync
}
