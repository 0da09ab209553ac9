package model

import "time"

type EventType string

const (
	EventRegistrationConfirmed EventType = "RegistrationConfirmed"
	EventAttendanceRecorded    EventType = "AttendanceRecorded"
	EventDonationRecorded      EventType = "DonationRecorded"
)

// Event is published after a state transition has been committed
type Event struct {
	Type       EventType `json:"type"`
	CampID     string    `json:"campId"`
	CampName   string    `json:"campName,omitempty"`
	DonorID    string    `json:"donorId"`
	ActorID    string    `json:"actorId,omitempty"`
	RefID      string    `json:"refId"` // registration, attendance or donation ID
	OccurredAt time.Time `json:"occurredAt"`
}
