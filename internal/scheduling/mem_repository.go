package scheduling

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/campusmind/appointment-scheduling/internal/timeslot"
)

// MemRepository is an in-memory Repository with the same guarded-transition
// semantics as PgRepository. Tests and single-process development use it in
// place of Postgres.
type MemRepository struct {
	mu            sync.RWMutex
	students      map[uuid.UUID]Student
	professionals map[uuid.UUID]Professional
	appointments  map[uuid.UUID]Appointment
	reports       map[uuid.UUID]Report
	events        []EventLog
}

func NewMemRepository() *MemRepository {
	return &MemRepository{
		students:      make(map[uuid.UUID]Student),
		professionals: make(map[uuid.UUID]Professional),
		appointments:  make(map[uuid.UUID]Appointment),
		reports:       make(map[uuid.UUID]Report),
	}
}

// Seeding helpers

func (r *MemRepository) AddStudent(s Student) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.students[s.ID] = s
}

func (r *MemRepository) AddProfessional(p Professional) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.professionals[p.ID] = p
}

func (r *MemRepository) AddReport(rep Report) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports[rep.ID] = rep
}

// Interface methods

func (r *MemRepository) GetStudentByID(_ context.Context, id uuid.UUID) (*Student, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.students[id]
	if !ok {
		return nil, ErrStudentNotFound
	}
	return &s, nil
}

func (r *MemRepository) GetProfessionalByID(_ context.Context, id uuid.UUID) (*Professional, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.professionals[id]
	if !ok {
		return nil, ErrProfessionalNotFound
	}
	return &p, nil
}

func (r *MemRepository) GetAppointmentByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	return &a, nil
}

func (r *MemRepository) FindOccupied(_ context.Context, professionalID uuid.UUID, date time.Time) ([]Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []Appointment
	for _, a := range r.appointments {
		if a.ProfessionalID == professionalID && a.Date.Equal(date) && isOccupied(a.Status) {
			result = append(result, a)
		}
	}
	sortByStart(result)
	return result, nil
}

func (r *MemRepository) FindOccupiedByStudent(_ context.Context, studentID uuid.UUID, date time.Time) ([]Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []Appointment
	for _, a := range r.appointments {
		if a.StudentID == studentID && a.Date.Equal(date) && isOccupied(a.Status) {
			result = append(result, a)
		}
	}
	sortByStart(result)
	return result, nil
}

func (r *MemRepository) FindConflicting(_ context.Context, professionalID uuid.UUID, date time.Time, start, end timeslot.TimeOfDay, excludeID uuid.UUID) ([]Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	probe := timeslot.Slot{Start: start, End: end}

	var result []Appointment
	for _, a := range r.appointments {
		if a.ID == excludeID {
			continue
		}
		if a.ProfessionalID == professionalID && a.Date.Equal(date) && isOccupied(a.Status) && a.Range().Overlaps(probe) {
			result = append(result, a)
		}
	}
	sortByStart(result)
	return result, nil
}

func (r *MemRepository) CreateAppointment(_ context.Context, appt *Appointment) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *appt
	r.appointments[stored.ID] = stored
	return &stored, nil
}

func (r *MemRepository) UpdateAppointmentStatus(_ context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.appointments[id]
	if !ok || a.Status != from {
		return nil, ErrAppointmentNotFound
	}

	a.Status = to
	a.UpdatedAt = time.Now()
	r.appointments[id] = a
	return &a, nil
}

func (r *MemRepository) StoreSuggestion(_ context.Context, id uuid.UUID, date time.Time, start, end timeslot.TimeOfDay) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.appointments[id]
	if !ok || a.Status != StatusPending {
		return nil, ErrAppointmentNotFound
	}

	a.Status = StatusStudentProposed
	a.SuggestedDate = &date
	a.SuggestedSlotStart = &start
	a.SuggestedSlotEnd = &end
	a.UpdatedAt = time.Now()
	r.appointments[id] = a
	return &a, nil
}

func (r *MemRepository) ApplySuggestion(_ context.Context, id uuid.UUID) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.appointments[id]
	if !ok || a.Status != StatusStudentProposed || !a.HasSuggestion() {
		return nil, ErrAppointmentNotFound
	}

	a.Date = *a.SuggestedDate
	a.SlotStart = *a.SuggestedSlotStart
	a.SlotEnd = *a.SuggestedSlotEnd
	a.SuggestedDate = nil
	a.SuggestedSlotStart = nil
	a.SuggestedSlotEnd = nil
	a.Status = StatusApproved
	a.UpdatedAt = time.Now()
	r.appointments[id] = a
	return &a, nil
}

func (r *MemRepository) ListByStudent(_ context.Context, studentID uuid.UUID, statuses []AppointmentStatus, order ListOrder) ([]Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []Appointment
	for _, a := range r.appointments {
		if a.StudentID == studentID && statusIn(a.Status, statuses) {
			result = append(result, a)
		}
	}
	sortByDate(result, order)
	return result, nil
}

func (r *MemRepository) ListByProfessional(_ context.Context, professionalID uuid.UUID, statuses []AppointmentStatus, order ListOrder) ([]Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []Appointment
	for _, a := range r.appointments {
		if a.ProfessionalID == professionalID && statusIn(a.Status, statuses) {
			result = append(result, a)
		}
	}
	sortByDate(result, order)
	return result, nil
}

func (r *MemRepository) GetReportByID(_ context.Context, id uuid.UUID) (*Report, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rep, ok := r.reports[id]
	if !ok {
		return nil, ErrReportNotFound
	}
	return &rep, nil
}

func (r *MemRepository) UpdateReportStatus(_ context.Context, id uuid.UUID, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rep, ok := r.reports[id]
	if !ok {
		return ErrReportNotFound
	}

	rep.Status = status
	r.reports[id] = rep
	return nil
}

func (r *MemRepository) InsertEvent(_ context.Context, ev EventLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ev.ID = int64(len(r.events) + 1)
	r.events = append(r.events, ev)
	return nil
}

// EventsForAppointment returns the trail rows for one appointment in
// insertion order.
func (r *MemRepository) EventsForAppointment(id uuid.UUID) []EventLog {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []EventLog
	for _, ev := range r.events {
		if ev.AppointmentID != nil && *ev.AppointmentID == id {
			result = append(result, ev)
		}
	}
	return result
}

// Helpers

func isOccupied(s AppointmentStatus) bool {
	return s == StatusPending || s == StatusApproved
}

func statusIn(s AppointmentStatus, statuses []AppointmentStatus) bool {
	for _, candidate := range statuses {
		if s == candidate {
			return true
		}
	}
	return false
}

func sortByStart(appts []Appointment) {
	sort.Slice(appts, func(i, j int) bool {
		return appts[i].SlotStart.Before(appts[j].SlotStart)
	})
}

func sortByDate(appts []Appointment, order ListOrder) {
	sort.Slice(appts, func(i, j int) bool {
		a, b := appts[i], appts[j]
		if !a.Date.Equal(b.Date) {
			if order == DateDescending {
				return a.Date.After(b.Date)
			}
			return a.Date.Before(b.Date)
		}
		return a.SlotStart.Before(b.SlotStart)
	})
}
