package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/campusmind/appointment-scheduling/internal/timeslot"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const appointmentColumns = `
	id, student_id, professional_id, appointment_date, slot_start, slot_end,
	status, notes, report_id, suggested_date, suggested_slot_start,
	suggested_slot_end, created_at, updated_at`

// Helpers

func scanStudent(row pgx.Row) (*Student, error) {
	var s Student
	var email *string

	err := row.Scan(
		&s.ID,
		&s.Name,
		&email,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrStudentNotFound
		}
		return nil, err
	}

	s.Email = email
	return &s, nil
}

func scanProfessional(row pgx.Row) (*Professional, error) {
	var p Professional
	var specialty *string

	err := row.Scan(
		&p.ID,
		&p.Name,
		&specialty,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProfessionalNotFound
		}
		return nil, err
	}

	p.Specialty = specialty
	return &p, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var slotStart, slotEnd int
	var sugStart, sugEnd *int

	err := row.Scan(
		&a.ID,
		&a.StudentID,
		&a.ProfessionalID,
		&a.Date,
		&slotStart,
		&slotEnd,
		&a.Status,
		&a.Notes,
		&a.ReportID,
		&a.SuggestedDate,
		&sugStart,
		&sugEnd,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	a.SlotStart = timeslot.TimeOfDay(slotStart)
	a.SlotEnd = timeslot.TimeOfDay(slotEnd)
	if sugStart != nil {
		t := timeslot.TimeOfDay(*sugStart)
		a.SuggestedSlotStart = &t
	}
	if sugEnd != nil {
		t := timeslot.TimeOfDay(*sugEnd)
		a.SuggestedSlotEnd = &t
	}
	return &a, nil
}

func scanReport(row pgx.Row) (*Report, error) {
	var r Report
	var urgency *string

	err := row.Scan(
		&r.ID,
		&r.StudentID,
		&r.Type,
		&r.Description,
		&r.Status,
		&urgency,
		&r.SubmittedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrReportNotFound
		}
		return nil, err
	}

	r.Urgency = urgency
	return &r, nil
}

func statusStrings(statuses []AppointmentStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func collectAppointments(rows pgx.Rows) ([]Appointment, error) {
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Interface methods

func (r *PgRepository) GetStudentByID(ctx context.Context, id uuid.UUID) (*Student, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, email, created_at, updated_at
		FROM students
		WHERE id = $1
	`, id)
	return scanStudent(row)
}

func (r *PgRepository) GetProfessionalByID(ctx context.Context, id uuid.UUID) (*Professional, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, specialty, created_at, updated_at
		FROM professionals
		WHERE id = $1
	`, id)
	return scanProfessional(row)
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) FindOccupied(ctx context.Context, professionalID uuid.UUID, date time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE professional_id = $1
		  AND appointment_date = $2
		  AND status = ANY($3)
		ORDER BY slot_start
	`, professionalID, date, statusStrings(OccupiedStatuses))
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *PgRepository) FindOccupiedByStudent(ctx context.Context, studentID uuid.UUID, date time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE student_id = $1
		  AND appointment_date = $2
		  AND status = ANY($3)
		ORDER BY slot_start
	`, studentID, date, statusStrings(OccupiedStatuses))
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *PgRepository) FindConflicting(ctx context.Context, professionalID uuid.UUID, date time.Time, start, end timeslot.TimeOfDay, excludeID uuid.UUID) ([]Appointment, error) {
	// Half-open overlap: [slot_start, slot_end) intersects [start, end).
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE professional_id = $1
		  AND appointment_date = $2
		  AND status = ANY($3)
		  AND slot_start < $4
		  AND slot_end > $5
		  AND ($6::uuid IS NULL OR id <> $6)
		ORDER BY slot_start
	`, professionalID, date, statusStrings(OccupiedStatuses),
		end.Minutes(), start.Minutes(), nullableUUID(excludeID))
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *PgRepository) CreateAppointment(ctx context.Context, appt *Appointment) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO appointments (
			id, student_id, professional_id, appointment_date, slot_start,
			slot_end, status, notes, report_id, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
		RETURNING `+appointmentColumns+`
	`, appt.ID, appt.StudentID, appt.ProfessionalID, appt.Date,
		appt.SlotStart.Minutes(), appt.SlotEnd.Minutes(), string(appt.Status),
		appt.Notes, appt.ReportID, appt.CreatedAt)

	return scanAppointment(row)
}

func (r *PgRepository) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+appointmentColumns+`
	`, id, string(to), string(from))

	return scanAppointment(row)
}

func (r *PgRepository) StoreSuggestion(ctx context.Context, id uuid.UUID, date time.Time, start, end timeslot.TimeOfDay) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    suggested_date = $3,
		    suggested_slot_start = $4,
		    suggested_slot_end = $5,
		    updated_at = now()
		WHERE id = $1
		  AND status = $6
		RETURNING `+appointmentColumns+`
	`, id, string(StatusStudentProposed), date, start.Minutes(), end.Minutes(),
		string(StatusPending))

	return scanAppointment(row)
}

func (r *PgRepository) ApplySuggestion(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	// The suggested schedule becomes the live one in a single guarded update,
	// so a concurrent transition cannot apply it twice.
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET appointment_date = suggested_date,
		    slot_start = suggested_slot_start,
		    slot_end = suggested_slot_end,
		    suggested_date = NULL,
		    suggested_slot_start = NULL,
		    suggested_slot_end = NULL,
		    status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		  AND suggested_date IS NOT NULL
		  AND suggested_slot_start IS NOT NULL
		  AND suggested_slot_end IS NOT NULL
		RETURNING `+appointmentColumns+`
	`, id, string(StatusApproved), string(StatusStudentProposed))

	return scanAppointment(row)
}

func (r *PgRepository) ListByStudent(ctx context.Context, studentID uuid.UUID, statuses []AppointmentStatus, order ListOrder) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE student_id = $1
		  AND status = ANY($2)
		ORDER BY appointment_date `+orderClause(order)+`, slot_start
	`, studentID, statusStrings(statuses))
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *PgRepository) ListByProfessional(ctx context.Context, professionalID uuid.UUID, statuses []AppointmentStatus, order ListOrder) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE professional_id = $1
		  AND status = ANY($2)
		ORDER BY appointment_date `+orderClause(order)+`, slot_start
	`, professionalID, statusStrings(statuses))
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *PgRepository) GetReportByID(ctx context.Context, id uuid.UUID) (*Report, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, student_id, type, description, status, urgency, submitted_at
		FROM reports
		WHERE id = $1
	`, id)
	return scanReport(row)
}

func (r *PgRepository) UpdateReportStatus(ctx context.Context, id uuid.UUID, status string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE reports
		SET status = $2
		WHERE id = $1
	`, id, status)
	if err != nil {
		return fmt.Errorf("update report status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrReportNotFound
	}
	return nil
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO appointment_events (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert appointment event: %w", err)
	}
	return nil
}

// orderClause whitelists the ORDER BY direction since it is spliced into SQL.
func orderClause(order ListOrder) string {
	if order == DateDescending {
		return "DESC"
	}
	return "ASC"
}

func nullableUUID(id uuid.UUID) *uuid.UUID {
	if id == uuid.Nil {
		return nil
	}
	return &id
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
