package scheduling

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/campusmind/appointment-scheduling/internal/timeslot"
)

var (
	ErrStudentNotFound      = errors.New("student not found")
	ErrProfessionalNotFound = errors.New("professional not found")
	ErrAppointmentNotFound  = errors.New("appointment not found")
	ErrReportNotFound       = errors.New("report not found")
)

// ListOrder controls date ordering of appointment listings.
type ListOrder string

const (
	DateAscending  ListOrder = "ASC"
	DateDescending ListOrder = "DESC"
)

// OccupiedStatuses are the statuses that block overlapping bookings.
var OccupiedStatuses = []AppointmentStatus{StatusPending, StatusApproved}

// Repository contains all DB interactions needed by the service.
type Repository interface {
	GetStudentByID(ctx context.Context, id uuid.UUID) (*Student, error)
	GetProfessionalByID(ctx context.Context, id uuid.UUID) (*Professional, error)

	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)

	// Conflict checks. FindOccupied returns the professional's pending and
	// approved appointments on a date; FindConflicting narrows that to rows
	// overlapping [start, end), skipping excludeID so an appointment being
	// renegotiated does not conflict with itself (pass uuid.Nil to skip none).
	FindOccupied(ctx context.Context, professionalID uuid.UUID, date time.Time) ([]Appointment, error)
	FindConflicting(ctx context.Context, professionalID uuid.UUID, date time.Time, start, end timeslot.TimeOfDay, excludeID uuid.UUID) ([]Appointment, error)
	FindOccupiedByStudent(ctx context.Context, studentID uuid.UUID, date time.Time) ([]Appointment, error)

	// Creation and guarded transitions. The update methods are
	// compare-and-swap: they only touch a row whose status still matches the
	// expected source state and return ErrAppointmentNotFound otherwise.
	CreateAppointment(ctx context.Context, appt *Appointment) (*Appointment, error)
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error)
	StoreSuggestion(ctx context.Context, id uuid.UUID, date time.Time, start, end timeslot.TimeOfDay) (*Appointment, error)
	ApplySuggestion(ctx context.Context, id uuid.UUID) (*Appointment, error)

	// Listings
	ListByStudent(ctx context.Context, studentID uuid.UUID, statuses []AppointmentStatus, order ListOrder) ([]Appointment, error)
	ListByProfessional(ctx context.Context, professionalID uuid.UUID, statuses []AppointmentStatus, order ListOrder) ([]Appointment, error)

	// Report mirroring
	GetReportByID(ctx context.Context, id uuid.UUID) (*Report, error)
	UpdateReportStatus(ctx context.Context, id uuid.UUID, status string) error

	// Transition trail
	InsertEvent(ctx context.Context, ev EventLog) error
}
