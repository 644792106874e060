package scheduling

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	redisclient "github.com/campusmind/appointment-scheduling/internal/redis"
	"github.com/campusmind/appointment-scheduling/internal/timeslot"
)

const (
	EventAppointmentCreated  = "APPOINTMENT_CREATED"
	EventAppointmentApproved = "APPOINTMENT_APPROVED"
	EventAppointmentRejected = "APPOINTMENT_REJECTED"
	EventAlternativeProposed = "ALTERNATIVE_PROPOSED"
	EventSuggestionScheduled = "SUGGESTION_SCHEDULED"
)

var (
	ErrInvalidTimeRange           = errors.New("time range start must precede end")
	ErrInvalidInitialStatus       = errors.New("initial status must be pending or approved")
	ErrRangeUnavailable           = errors.New("requested time range is not available")
	ErrTimeConflict               = errors.New("time range conflicts with another appointment")
	ErrScheduleBusy               = errors.New("schedule is currently being booked, please retry")
	ErrInvalidStatusTransition    = errors.New("invalid status transition")
	ErrNotAppointmentStudent      = errors.New("caller is not the student on this appointment")
	ErrNotAppointmentProfessional = errors.New("caller is not the professional on this appointment")
	ErrNotReportLinked            = errors.New("appointment is not linked to a report")
	ErrNoSuggestedSchedule        = errors.New("appointment has no suggested schedule")
)

type Service struct {
	repo   Repository
	locker redisclient.Locker
}

func NewService(repo Repository, locker redisclient.Locker) *Service {
	return &Service{
		repo:   repo,
		locker: locker,
	}
}

// AvailableSlots returns the daily catalog minus every slot that overlaps a
// pending or approved appointment of the professional on that date.
func (s *Service) AvailableSlots(ctx context.Context, date time.Time, professionalID uuid.UUID) ([]timeslot.Slot, error) {
	if _, err := s.repo.GetProfessionalByID(ctx, professionalID); err != nil {
		if errors.Is(err, ErrProfessionalNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load professional: %w", err)
	}

	occupied, err := s.repo.FindOccupied(ctx, professionalID, dateOnly(date))
	if err != nil {
		return nil, fmt.Errorf("load occupied appointments: %w", err)
	}

	var available []timeslot.Slot
	for _, slot := range timeslot.DailyCatalog() {
		blocked := false
		for _, appt := range occupied {
			if slot.Overlaps(appt.Range()) {
				blocked = true
				break
			}
		}
		if !blocked {
			available = append(available, slot)
		}
	}
	return available, nil
}

// IsRangeAvailable reports whether no pending or approved appointment of the
// professional on that date overlaps [start, end).
func (s *Service) IsRangeAvailable(ctx context.Context, date time.Time, professionalID uuid.UUID, start, end timeslot.TimeOfDay) (bool, error) {
	if !start.Before(end) {
		return false, ErrInvalidTimeRange
	}
	conflicts, err := s.repo.FindConflicting(ctx, professionalID, dateOnly(date), start, end, uuid.Nil)
	if err != nil {
		return false, fmt.Errorf("check conflicts: %w", err)
	}
	return len(conflicts) == 0, nil
}

// StudentSlotsForDate returns the intervals already held by the student's own
// pending and approved appointments on a date.
func (s *Service) StudentSlotsForDate(ctx context.Context, studentID uuid.UUID, date time.Time) ([]timeslot.Slot, error) {
	occupied, err := s.repo.FindOccupiedByStudent(ctx, studentID, dateOnly(date))
	if err != nil {
		return nil, fmt.Errorf("load student appointments: %w", err)
	}

	slots := make([]timeslot.Slot, 0, len(occupied))
	for _, appt := range occupied {
		slots = append(slots, appt.Range())
	}
	return slots, nil
}

type CreateAppointmentParams struct {
	StudentID      uuid.UUID
	ProfessionalID uuid.UUID
	Date           time.Time
	Start          timeslot.TimeOfDay
	End            timeslot.TimeOfDay
	Notes          *string
	ReportID       *uuid.UUID
	Status         AppointmentStatus // defaults to pending
}

// CreateAppointment books [Start, End) for the student with the professional.
// The range is decomposed into 30-minute slots which must be consecutive and
// clear of the lunch break, and must not overlap any committed appointment of
// the professional. The conflict check and insert run under the schedule lock
// so concurrent requests for the same professional and day cannot both pass.
func (s *Service) CreateAppointment(ctx context.Context, p CreateAppointmentParams) (*Appointment, error) {
	if !p.Start.Before(p.End) {
		return nil, ErrInvalidTimeRange
	}

	if _, err := s.repo.GetStudentByID(ctx, p.StudentID); err != nil {
		if errors.Is(err, ErrStudentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load student: %w", err)
	}
	if _, err := s.repo.GetProfessionalByID(ctx, p.ProfessionalID); err != nil {
		if errors.Is(err, ErrProfessionalNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load professional: %w", err)
	}

	if err := timeslot.ValidateSelection(timeslot.SplitRange(p.Start, p.End)); err != nil {
		return nil, err
	}

	status := p.Status
	if status == "" {
		status = StatusPending
	}
	if status != StatusPending && status != StatusApproved {
		return nil, ErrInvalidInitialStatus
	}

	date := dateOnly(p.Date)

	var created *Appointment

	err := s.locker.WithScheduleLock(ctx, p.ProfessionalID, date, func(lockCtx context.Context) error {
		conflicts, err := s.repo.FindConflicting(lockCtx, p.ProfessionalID, date, p.Start, p.End, uuid.Nil)
		if err != nil {
			return fmt.Errorf("check conflicts: %w", err)
		}
		if len(conflicts) > 0 {
			return ErrRangeUnavailable
		}

		now := time.Now()
		appt, err := s.repo.CreateAppointment(lockCtx, &Appointment{
			ID:             uuid.New(),
			StudentID:      p.StudentID,
			ProfessionalID: p.ProfessionalID,
			Date:           date,
			SlotStart:      p.Start,
			SlotEnd:        p.End,
			Status:         status,
			Notes:          p.Notes,
			ReportID:       p.ReportID,
			CreatedAt:      now,
			UpdatedAt:      now,
		})
		if err != nil {
			return fmt.Errorf("create appointment: %w", err)
		}

		created = appt

		s.logEvent(lockCtx, appt.ID, EventAppointmentCreated, map[string]any{
			"student_id":      p.StudentID.String(),
			"professional_id": p.ProfessionalID.String(),
			"date":            date.Format("2006-01-02"),
			"start":           p.Start.String(),
			"end":             p.End.String(),
			"status":          string(status),
		})
		return nil
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrScheduleBusy
		}
		return nil, err
	}

	return created, nil
}

// ApproveAppointment moves a pending appointment to approved.
func (s *Service) ApproveAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load appointment: %w", err)
	}

	if err := guardPending(appt); err != nil {
		return nil, err
	}

	updated, err := s.repo.UpdateAppointmentStatus(ctx, appt.ID, StatusPending, StatusApproved)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			// Row existed a moment ago, so the status changed under us.
			return nil, ErrInvalidStatusTransition
		}
		return nil, fmt.Errorf("approve appointment: %w", err)
	}

	s.logEvent(ctx, updated.ID, EventAppointmentApproved, map[string]any{})
	return updated, nil
}

// RejectAppointment moves a pending appointment to rejected.
func (s *Service) RejectAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load appointment: %w", err)
	}

	if err := guardPending(appt); err != nil {
		return nil, err
	}

	updated, err := s.repo.UpdateAppointmentStatus(ctx, appt.ID, StatusPending, StatusRejected)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, ErrInvalidStatusTransition
		}
		return nil, fmt.Errorf("reject appointment: %w", err)
	}

	s.logEvent(ctx, updated.ID, EventAppointmentRejected, map[string]any{})
	return updated, nil
}

// StudentApprove lets the student accept a professional-proposed time on a
// report-linked appointment.
func (s *Service) StudentApprove(ctx context.Context, id, studentID uuid.UUID) error {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return fmt.Errorf("load appointment: %w", err)
	}

	if err := guardStudentResponse(appt, studentID); err != nil {
		return err
	}

	if _, err := s.repo.UpdateAppointmentStatus(ctx, appt.ID, StatusPending, StatusApproved); err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return ErrInvalidStatusTransition
		}
		return fmt.Errorf("approve appointment: %w", err)
	}

	s.logEvent(ctx, appt.ID, EventAppointmentApproved, map[string]any{
		"actor": "student",
	})
	return nil
}

// StudentProposeAlternative records the student's counter-offer on a pending
// report-linked appointment and moves it to student_proposed. The linked
// report is marked reviewed so triage views reflect that the student has
// responded.
func (s *Service) StudentProposeAlternative(ctx context.Context, id, studentID uuid.UUID, date time.Time, start, end timeslot.TimeOfDay) error {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return fmt.Errorf("load appointment: %w", err)
	}

	if err := guardStudentResponse(appt, studentID); err != nil {
		return err
	}
	if !start.Before(end) {
		return ErrInvalidTimeRange
	}
	if err := timeslot.ValidateSelection(timeslot.SplitRange(start, end)); err != nil {
		return err
	}

	proposedDate := dateOnly(date)

	err = s.locker.WithScheduleLock(ctx, appt.ProfessionalID, proposedDate, func(lockCtx context.Context) error {
		conflicts, err := s.repo.FindConflicting(lockCtx, appt.ProfessionalID, proposedDate, start, end, appt.ID)
		if err != nil {
			return fmt.Errorf("check conflicts: %w", err)
		}
		if len(conflicts) > 0 {
			return ErrTimeConflict
		}

		if _, err := s.repo.StoreSuggestion(lockCtx, appt.ID, proposedDate, start, end); err != nil {
			if errors.Is(err, ErrAppointmentNotFound) {
				return ErrInvalidStatusTransition
			}
			return fmt.Errorf("store suggestion: %w", err)
		}

		s.logEvent(lockCtx, appt.ID, EventAlternativeProposed, map[string]any{
			"date":  proposedDate.Format("2006-01-02"),
			"start": start.String(),
			"end":   end.String(),
		})
		return nil
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return ErrScheduleBusy
		}
		return err
	}

	s.mirrorReportStatus(ctx, appt, ReportStatusReviewed)
	return nil
}

// ScheduleFromSuggestion lets the professional confirm the student's
// counter-offer: the suggested date and times become the live schedule, the
// suggestion fields are cleared, the appointment is approved, and the linked
// report is marked scheduled.
func (s *Service) ScheduleFromSuggestion(ctx context.Context, id, professionalID uuid.UUID) error {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return fmt.Errorf("load appointment: %w", err)
	}

	if err := guardScheduleFromSuggestion(appt, professionalID); err != nil {
		return err
	}

	suggestedDate := dateOnly(*appt.SuggestedDate)
	start, end := *appt.SuggestedSlotStart, *appt.SuggestedSlotEnd

	err = s.locker.WithScheduleLock(ctx, professionalID, suggestedDate, func(lockCtx context.Context) error {
		conflicts, err := s.repo.FindConflicting(lockCtx, professionalID, suggestedDate, start, end, appt.ID)
		if err != nil {
			return fmt.Errorf("check conflicts: %w", err)
		}
		if len(conflicts) > 0 {
			return ErrTimeConflict
		}

		if _, err := s.repo.ApplySuggestion(lockCtx, appt.ID); err != nil {
			if errors.Is(err, ErrAppointmentNotFound) {
				return ErrInvalidStatusTransition
			}
			return fmt.Errorf("apply suggestion: %w", err)
		}

		s.logEvent(lockCtx, appt.ID, EventSuggestionScheduled, map[string]any{
			"date":  suggestedDate.Format("2006-01-02"),
			"start": start.String(),
			"end":   end.String(),
		})
		return nil
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return ErrScheduleBusy
		}
		return err
	}

	s.mirrorReportStatus(ctx, appt, ReportStatusScheduled)
	return nil
}

// StudentAppointments lists the student's pending and approved appointments,
// date ascending.
func (s *Service) StudentAppointments(ctx context.Context, studentID uuid.UUID) ([]Appointment, error) {
	appts, err := s.repo.ListByStudent(ctx, studentID, OccupiedStatuses, DateAscending)
	if err != nil {
		return nil, fmt.Errorf("list student appointments: %w", err)
	}
	return appts, nil
}

// StudentRejectedAppointments lists the student's rejected appointments,
// date descending.
func (s *Service) StudentRejectedAppointments(ctx context.Context, studentID uuid.UUID) ([]Appointment, error) {
	appts, err := s.repo.ListByStudent(ctx, studentID, []AppointmentStatus{StatusRejected}, DateDescending)
	if err != nil {
		return nil, fmt.Errorf("list student rejected appointments: %w", err)
	}
	return appts, nil
}

// StudentPendingAppointments lists the student's awaiting-review
// appointments, date descending.
func (s *Service) StudentPendingAppointments(ctx context.Context, studentID uuid.UUID) ([]Appointment, error) {
	appts, err := s.repo.ListByStudent(ctx, studentID, []AppointmentStatus{StatusPending}, DateDescending)
	if err != nil {
		return nil, fmt.Errorf("list student pending appointments: %w", err)
	}
	return appts, nil
}

// ProfessionalAppointments lists the professional's pending and approved
// appointments, date ascending.
func (s *Service) ProfessionalAppointments(ctx context.Context, professionalID uuid.UUID) ([]Appointment, error) {
	appts, err := s.repo.ListByProfessional(ctx, professionalID, OccupiedStatuses, DateAscending)
	if err != nil {
		return nil, fmt.Errorf("list professional appointments: %w", err)
	}
	return appts, nil
}

// ProfessionalPendingAppointments lists the professional's review inbox,
// date descending.
func (s *Service) ProfessionalPendingAppointments(ctx context.Context, professionalID uuid.UUID) ([]Appointment, error) {
	appts, err := s.repo.ListByProfessional(ctx, professionalID, []AppointmentStatus{StatusPending}, DateDescending)
	if err != nil {
		return nil, fmt.Errorf("list professional pending appointments: %w", err)
	}
	return appts, nil
}

// ProfessionalRejectedAppointments lists the professional's rejected
// appointments, date descending.
func (s *Service) ProfessionalRejectedAppointments(ctx context.Context, professionalID uuid.UUID) ([]Appointment, error) {
	appts, err := s.repo.ListByProfessional(ctx, professionalID, []AppointmentStatus{StatusRejected}, DateDescending)
	if err != nil {
		return nil, fmt.Errorf("list professional rejected appointments: %w", err)
	}
	return appts, nil
}

// GetAppointment retrieves an appointment by ID.
func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	return appt, nil
}

// logEvent appends one row to the transition trail. The trail is a secondary
// record, so a failed write is logged rather than failing the transition.
func (s *Service) logEvent(ctx context.Context, appointmentID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("failed to marshal event payload for %s: %v", eventType, err)
		data = nil
	}

	apptID := appointmentID

	ev := EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     time.Now(),
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		log.Printf("failed to insert event log %s for appointment %s: %v", eventType, appointmentID, err)
	}
}

// mirrorReportStatus propagates a negotiation step onto the linked triage
// report. The report is a secondary record, so a failed write is logged
// rather than failing the already-committed transition.
func (s *Service) mirrorReportStatus(ctx context.Context, appt *Appointment, status string) {
	if appt.ReportID == nil {
		return
	}
	if err := s.repo.UpdateReportStatus(ctx, *appt.ReportID, status); err != nil {
		log.Printf("failed to mirror status %q onto report %s for appointment %s: %v",
			status, appt.ReportID, appt.ID, err)
	}
}

// Transition guards. Each checks every precondition of one action against a
// freshly loaded appointment, without touching storage, so they can be
// exercised on their own.

func guardPending(a *Appointment) error {
	if a.Status != StatusPending {
		return ErrInvalidStatusTransition
	}
	return nil
}

// guardStudentResponse covers the student-side negotiation actions: the
// caller must be the appointment's student, the appointment must still be
// pending, and it must have originated from a triage report.
func guardStudentResponse(a *Appointment, studentID uuid.UUID) error {
	if a.StudentID != studentID {
		return ErrNotAppointmentStudent
	}
	if a.Status != StatusPending {
		return ErrInvalidStatusTransition
	}
	if a.ReportID == nil {
		return ErrNotReportLinked
	}
	return nil
}

func guardScheduleFromSuggestion(a *Appointment, professionalID uuid.UUID) error {
	if a.ProfessionalID != professionalID {
		return ErrNotAppointmentProfessional
	}
	if a.Status != StatusStudentProposed {
		return ErrInvalidStatusTransition
	}
	if !a.HasSuggestion() {
		return ErrNoSuggestedSchedule
	}
	return nil
}

// dateOnly strips the time-of-day component, leaving midnight UTC.
func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
