package scheduling

import (
	"time"

	"github.com/google/uuid"

	"github.com/campusmind/appointment-scheduling/internal/timeslot"
)

type AppointmentStatus string

const (
	StatusPending         AppointmentStatus = "pending"
	StatusApproved        AppointmentStatus = "approved"
	StatusRejected        AppointmentStatus = "rejected"
	StatusStudentProposed AppointmentStatus = "student_proposed"
)

// Report statuses this core writes when mirroring negotiation progress onto
// a linked triage report. Reports are owned elsewhere and keep free-form
// statuses, so these are plain strings rather than a closed type.
const (
	ReportStatusReviewed  = "reviewed"
	ReportStatusScheduled = "scheduled"
)

type Student struct {
	ID        uuid.UUID
	Name      string
	Email     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Professional struct {
	ID        uuid.UUID
	Name      string
	Specialty *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Appointment is the aggregate root of the scheduling core. The booked
// interval [SlotStart, SlotEnd) may span several catalog slots. The
// Suggested* fields hold the student's counter-offer and are only set while
// Status is student_proposed.
type Appointment struct {
	ID             uuid.UUID
	StudentID      uuid.UUID
	ProfessionalID uuid.UUID
	Date           time.Time // calendar date, midnight UTC
	SlotStart      timeslot.TimeOfDay
	SlotEnd        timeslot.TimeOfDay
	Status         AppointmentStatus
	Notes          *string
	ReportID       *uuid.UUID

	SuggestedDate      *time.Time
	SuggestedSlotStart *timeslot.TimeOfDay
	SuggestedSlotEnd   *timeslot.TimeOfDay

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Range returns the booked interval as a slot value.
func (a *Appointment) Range() timeslot.Slot {
	return timeslot.Slot{Start: a.SlotStart, End: a.SlotEnd}
}

// HasSuggestion reports whether all counter-offer fields are populated.
func (a *Appointment) HasSuggestion() bool {
	return a.SuggestedDate != nil && a.SuggestedSlotStart != nil && a.SuggestedSlotEnd != nil
}

// EventLog is one row of the append-only transition trail. Every status
// transition the state machine owns writes one, with a JSON payload of the
// transition-specific details.
type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}

// Report is the external triage entity this core only mirrors status onto.
type Report struct {
	ID          uuid.UUID
	StudentID   uuid.UUID
	Type        string
	Description string
	Status      string
	Urgency     *string
	SubmittedAt time.Time
}
