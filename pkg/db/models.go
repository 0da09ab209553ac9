package db

import "time"

// Camp represents a database camp record
type Camp struct {
	ID            string
	Name          string
	Description   string
	Location      string
	Date          time.Time // midnight UTC
	StartTime     string    // "15:04"
	EndTime       string    // "15:04"
	MaxDonors     int
	CurrentDonors int
	OrganizerID   string
	Active        bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// AvailableSlots returns the number of unreserved places
func (c *Camp) AvailableSlots() int {
	if c.CurrentDonors >= c.MaxDonors {
		return 0
	}
	return c.MaxDonors - c.CurrentDonors
}

type RegistrationStatus string

const (
	StatusRegistered RegistrationStatus = "REGISTERED"
	StatusCancelled  RegistrationStatus = "CANCELLED"
)

// Registration represents a database registration record
type Registration struct {
	ID           string
	CampID       string
	DonorID      string
	RegisteredAt time.Time
	Status       RegistrationStatus
	CancelledAt  *time.Time // nullable
}

// Attendance represents a database attendance record
type Attendance struct {
	ID           string
	CampID       string
	DonorID      string
	RecordedBy   string
	AttendedAt   time.Time
	BloodDonated bool
	Notes        string
}

// Donation represents a database donation record
type Donation struct {
	ID             string
	DonorID        string
	DonationDate   time.Time // midnight UTC
	IsCampDonation bool
	CampID         string // nullable
	RecordedBy     string // nullable
	CreatedAt      time.Time
}
