package scheduling

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	redisclient "github.com/campusmind/appointment-scheduling/internal/redis"
	"github.com/campusmind/appointment-scheduling/internal/timeslot"
)

type fixture struct {
	repo         *MemRepository
	svc          *Service
	studentID    uuid.UUID
	professional uuid.UUID
	date         time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	repo := NewMemRepository()
	svc := NewService(repo, redisclient.NoopLocker{})

	studentID := uuid.New()
	professionalID := uuid.New()

	repo.AddStudent(Student{ID: studentID, Name: "Ada Student"})
	repo.AddProfessional(Professional{ID: professionalID, Name: "Dr. Grace"})

	return &fixture{
		repo:         repo,
		svc:          svc,
		studentID:    studentID,
		professional: professionalID,
		date:         time.Date(2026, 9, 14, 0, 0, 0, 0, time.UTC),
	}
}

func (f *fixture) book(t *testing.T, start, end timeslot.TimeOfDay, status AppointmentStatus, reportID *uuid.UUID) *Appointment {
	t.Helper()

	appt, err := f.svc.CreateAppointment(context.Background(), CreateAppointmentParams{
		StudentID:      f.studentID,
		ProfessionalID: f.professional,
		Date:           f.date,
		Start:          start,
		End:            end,
		Status:         status,
		ReportID:       reportID,
	})
	require.NoError(t, err)
	return appt
}

func (f *fixture) addReport(t *testing.T) uuid.UUID {
	t.Helper()

	id := uuid.New()
	f.repo.AddReport(Report{
		ID:          id,
		StudentID:   f.studentID,
		Type:        "stress",
		Status:      "pending",
		SubmittedAt: time.Now(),
	})
	return id
}

func TestCreateAppointmentRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	appt := f.book(t, timeslot.At(9, 0), timeslot.At(10, 0), "", nil)
	assert.Equal(t, StatusPending, appt.Status)
	assert.Equal(t, f.date, appt.Date)
	assert.False(t, appt.CreatedAt.IsZero())
	assert.Equal(t, appt.CreatedAt, appt.UpdatedAt)

	available, err := f.svc.IsRangeAvailable(ctx, f.date, f.professional, timeslot.At(9, 0), timeslot.At(10, 0))
	require.NoError(t, err)
	assert.False(t, available, "booked range must no longer be available")

	available, err = f.svc.IsRangeAvailable(ctx, f.date, f.professional, timeslot.At(10, 0), timeslot.At(10, 30))
	require.NoError(t, err)
	assert.True(t, available, "disjoint range stays available")
}

func TestAvailableSlotsFiltering(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.book(t, timeslot.At(9, 0), timeslot.At(10, 0), "", nil)

	slots, err := f.svc.AvailableSlots(ctx, f.date, f.professional)
	require.NoError(t, err)
	assert.Len(t, slots, 14, "two catalog slots are covered by the booking")

	for _, s := range slots {
		assert.False(t, s.Overlaps(timeslot.Slot{Start: timeslot.At(9, 0), End: timeslot.At(10, 0)}),
			"slot %s should have been filtered out", s)
	}

	// Idempotent with no intervening booking
	again, err := f.svc.AvailableSlots(ctx, f.date, f.professional)
	require.NoError(t, err)
	assert.Equal(t, slots, again)

	// A different date is unaffected
	otherDate := f.date.AddDate(0, 0, 1)
	slots, err = f.svc.AvailableSlots(ctx, otherDate, f.professional)
	require.NoError(t, err)
	assert.Len(t, slots, 16)
}

func TestCreateAppointmentValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		params  CreateAppointmentParams
		wantErr error
	}{
		{
			name: "inverted range",
			params: CreateAppointmentParams{
				StudentID: f.studentID, ProfessionalID: f.professional, Date: f.date,
				Start: timeslot.At(10, 0), End: timeslot.At(9, 0),
			},
			wantErr: ErrInvalidTimeRange,
		},
		{
			name: "crosses lunch break",
			params: CreateAppointmentParams{
				StudentID: f.studentID, ProfessionalID: f.professional, Date: f.date,
				Start: timeslot.At(12, 30), End: timeslot.At(13, 30),
			},
			wantErr: timeslot.ErrCrossesLunchBreak,
		},
		{
			name: "bogus initial status",
			params: CreateAppointmentParams{
				StudentID: f.studentID, ProfessionalID: f.professional, Date: f.date,
				Start: timeslot.At(9, 0), End: timeslot.At(9, 30), Status: "cancelled",
			},
			wantErr: ErrInvalidInitialStatus,
		},
		{
			name: "unknown student",
			params: CreateAppointmentParams{
				StudentID: uuid.New(), ProfessionalID: f.professional, Date: f.date,
				Start: timeslot.At(9, 0), End: timeslot.At(9, 30),
			},
			wantErr: ErrStudentNotFound,
		},
		{
			name: "unknown professional",
			params: CreateAppointmentParams{
				StudentID: f.studentID, ProfessionalID: uuid.New(), Date: f.date,
				Start: timeslot.At(9, 0), End: timeslot.At(9, 30),
			},
			wantErr: ErrProfessionalNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CreateAppointment(ctx, tt.params)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestCreateAppointmentConflict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.book(t, timeslot.At(9, 0), timeslot.At(10, 0), "", nil)

	_, err := f.svc.CreateAppointment(ctx, CreateAppointmentParams{
		StudentID: f.studentID, ProfessionalID: f.professional, Date: f.date,
		Start: timeslot.At(9, 30), End: timeslot.At(10, 30),
	})
	assert.ErrorIs(t, err, ErrRangeUnavailable)

	// Nothing was persisted by the failed attempt
	appts, err := f.svc.ProfessionalAppointments(ctx, f.professional)
	require.NoError(t, err)
	assert.Len(t, appts, 1)

	// Back-to-back with the existing booking is fine
	_, err = f.svc.CreateAppointment(ctx, CreateAppointmentParams{
		StudentID: f.studentID, ProfessionalID: f.professional, Date: f.date,
		Start: timeslot.At(10, 0), End: timeslot.At(10, 30),
	})
	assert.NoError(t, err, "touching endpoints are not a conflict")
}

func TestApproveStateMachine(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	appt := f.book(t, timeslot.At(9, 0), timeslot.At(9, 30), "", nil)

	approved, err := f.svc.ApproveAppointment(ctx, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, approved.Status)
	assert.True(t, approved.UpdatedAt.After(appt.UpdatedAt) || approved.UpdatedAt.Equal(appt.UpdatedAt))

	_, err = f.svc.ApproveAppointment(ctx, appt.ID)
	assert.ErrorIs(t, err, ErrInvalidStatusTransition, "approving twice must fail")

	_, err = f.svc.RejectAppointment(ctx, appt.ID)
	assert.ErrorIs(t, err, ErrInvalidStatusTransition, "approved appointment cannot be rejected")

	_, err = f.svc.ApproveAppointment(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
}

func TestRejectAppointment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	appt := f.book(t, timeslot.At(9, 0), timeslot.At(9, 30), "", nil)

	rejected, err := f.svc.RejectAppointment(ctx, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, rejected.Status)

	// A rejected appointment no longer blocks the range
	available, err := f.svc.IsRangeAvailable(ctx, f.date, f.professional, timeslot.At(9, 0), timeslot.At(9, 30))
	require.NoError(t, err)
	assert.True(t, available)
}

func TestStudentApprove(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	reportID := f.addReport(t)
	appt := f.book(t, timeslot.At(9, 0), timeslot.At(9, 30), "", &reportID)

	err := f.svc.StudentApprove(ctx, appt.ID, uuid.New())
	assert.ErrorIs(t, err, ErrNotAppointmentStudent)

	// Guard failure left the appointment untouched
	current, err := f.svc.GetAppointment(ctx, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, current.Status)

	err = f.svc.StudentApprove(ctx, appt.ID, f.studentID)
	require.NoError(t, err)

	current, err = f.svc.GetAppointment(ctx, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, current.Status)
}

func TestStudentApproveRequiresReportLink(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	appt := f.book(t, timeslot.At(9, 0), timeslot.At(9, 30), "", nil)

	err := f.svc.StudentApprove(ctx, appt.ID, f.studentID)
	assert.ErrorIs(t, err, ErrNotReportLinked)
}

func TestNegotiationRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	reportID := f.addReport(t)
	appt := f.book(t, timeslot.At(9, 0), timeslot.At(10, 0), "", &reportID)

	altDate := f.date.AddDate(0, 0, 2)
	err := f.svc.StudentProposeAlternative(ctx, appt.ID, f.studentID, altDate, timeslot.At(14, 0), timeslot.At(15, 0))
	require.NoError(t, err)

	current, err := f.svc.GetAppointment(ctx, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusStudentProposed, current.Status)
	require.True(t, current.HasSuggestion())
	assert.Equal(t, altDate, *current.SuggestedDate)
	assert.Equal(t, timeslot.At(14, 0), *current.SuggestedSlotStart)
	assert.Equal(t, timeslot.At(15, 0), *current.SuggestedSlotEnd)

	report, err := f.repo.GetReportByID(ctx, reportID)
	require.NoError(t, err)
	assert.Equal(t, ReportStatusReviewed, report.Status)

	err = f.svc.ScheduleFromSuggestion(ctx, appt.ID, f.professional)
	require.NoError(t, err)

	current, err = f.svc.GetAppointment(ctx, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, current.Status)
	assert.Equal(t, altDate, current.Date, "suggested date becomes the live date")
	assert.Equal(t, timeslot.At(14, 0), current.SlotStart)
	assert.Equal(t, timeslot.At(15, 0), current.SlotEnd)
	assert.False(t, current.HasSuggestion(), "suggestion fields are cleared")
	assert.Nil(t, current.SuggestedDate)

	report, err = f.repo.GetReportByID(ctx, reportID)
	require.NoError(t, err)
	assert.Equal(t, ReportStatusScheduled, report.Status)
}

func TestStudentProposeConflict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Another student already holds 9:00-10:00 with this professional.
	otherStudent := uuid.New()
	f.repo.AddStudent(Student{ID: otherStudent, Name: "Other Student"})
	_, err := f.svc.CreateAppointment(ctx, CreateAppointmentParams{
		StudentID: otherStudent, ProfessionalID: f.professional, Date: f.date,
		Start: timeslot.At(9, 0), End: timeslot.At(10, 0), Status: StatusApproved,
	})
	require.NoError(t, err)

	reportID := f.addReport(t)
	appt := f.book(t, timeslot.At(11, 0), timeslot.At(11, 30), "", &reportID)

	err = f.svc.StudentProposeAlternative(ctx, appt.ID, f.studentID, f.date, timeslot.At(9, 30), timeslot.At(10, 30))
	assert.ErrorIs(t, err, ErrTimeConflict)

	current, err := f.svc.GetAppointment(ctx, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, current.Status, "failed proposal leaves state unchanged")
}

func TestStudentProposeDoesNotConflictWithSelf(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	reportID := f.addReport(t)
	appt := f.book(t, timeslot.At(9, 0), timeslot.At(10, 0), "", &reportID)

	// Proposing a range overlapping the appointment's own current slot is fine.
	err := f.svc.StudentProposeAlternative(ctx, appt.ID, f.studentID, f.date, timeslot.At(9, 30), timeslot.At(10, 30))
	assert.NoError(t, err)
}

func TestScheduleFromSuggestionGuards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	reportID := f.addReport(t)
	appt := f.book(t, timeslot.At(9, 0), timeslot.At(10, 0), "", &reportID)

	// Not yet proposed
	err := f.svc.ScheduleFromSuggestion(ctx, appt.ID, f.professional)
	assert.ErrorIs(t, err, ErrInvalidStatusTransition)

	require.NoError(t, f.svc.StudentProposeAlternative(ctx, appt.ID, f.studentID, f.date, timeslot.At(14, 0), timeslot.At(14, 30)))

	// Wrong professional
	err = f.svc.ScheduleFromSuggestion(ctx, appt.ID, uuid.New())
	assert.ErrorIs(t, err, ErrNotAppointmentProfessional)
}

func TestScheduleBusy(t *testing.T) {
	f := newFixture(t)
	svc := NewService(f.repo, failingLocker{})

	_, err := svc.CreateAppointment(context.Background(), CreateAppointmentParams{
		StudentID: f.studentID, ProfessionalID: f.professional, Date: f.date,
		Start: timeslot.At(9, 0), End: timeslot.At(9, 30),
	})
	assert.ErrorIs(t, err, ErrScheduleBusy)
}

func TestListings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	later := f.date.AddDate(0, 0, 3)

	first := f.book(t, timeslot.At(9, 0), timeslot.At(9, 30), "", nil)
	second, err := f.svc.CreateAppointment(ctx, CreateAppointmentParams{
		StudentID: f.studentID, ProfessionalID: f.professional, Date: later,
		Start: timeslot.At(10, 0), End: timeslot.At(10, 30), Status: StatusApproved,
	})
	require.NoError(t, err)

	rejected := f.book(t, timeslot.At(11, 0), timeslot.At(11, 30), "", nil)
	_, err = f.svc.RejectAppointment(ctx, rejected.ID)
	require.NoError(t, err)

	upcoming, err := f.svc.StudentAppointments(ctx, f.studentID)
	require.NoError(t, err)
	require.Len(t, upcoming, 2)
	assert.Equal(t, first.ID, upcoming[0].ID, "upcoming sorted date ascending")
	assert.Equal(t, second.ID, upcoming[1].ID)

	rej, err := f.svc.StudentRejectedAppointments(ctx, f.studentID)
	require.NoError(t, err)
	require.Len(t, rej, 1)
	assert.Equal(t, rejected.ID, rej[0].ID)

	pending, err := f.svc.ProfessionalPendingAppointments(ctx, f.professional)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, first.ID, pending[0].ID)

	profUpcoming, err := f.svc.ProfessionalAppointments(ctx, f.professional)
	require.NoError(t, err)
	assert.Len(t, profUpcoming, 2)
}

func TestStudentSlotsForDate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.book(t, timeslot.At(9, 0), timeslot.At(10, 0), "", nil)
	f.book(t, timeslot.At(14, 0), timeslot.At(14, 30), "", nil)

	slots, err := f.svc.StudentSlotsForDate(ctx, f.studentID, f.date)
	require.NoError(t, err)
	require.Len(t, slots, 2)
	assert.Equal(t, timeslot.Slot{Start: timeslot.At(9, 0), End: timeslot.At(10, 0)}, slots[0])
	assert.Equal(t, timeslot.Slot{Start: timeslot.At(14, 0), End: timeslot.At(14, 30)}, slots[1])
}

func TestGuards(t *testing.T) {
	studentID := uuid.New()
	professionalID := uuid.New()
	reportID := uuid.New()

	base := &Appointment{
		ID:             uuid.New(),
		StudentID:      studentID,
		ProfessionalID: professionalID,
		Status:         StatusPending,
		ReportID:       &reportID,
	}

	assert.NoError(t, guardPending(base))
	assert.NoError(t, guardStudentResponse(base, studentID))

	approved := *base
	approved.Status = StatusApproved
	assert.ErrorIs(t, guardPending(&approved), ErrInvalidStatusTransition)
	assert.ErrorIs(t, guardStudentResponse(&approved, studentID), ErrInvalidStatusTransition)

	assert.ErrorIs(t, guardStudentResponse(base, uuid.New()), ErrNotAppointmentStudent)

	unlinked := *base
	unlinked.ReportID = nil
	assert.ErrorIs(t, guardStudentResponse(&unlinked, studentID), ErrNotReportLinked)

	proposed := *base
	proposed.Status = StatusStudentProposed
	assert.ErrorIs(t, guardScheduleFromSuggestion(&proposed, professionalID), ErrNoSuggestedSchedule)

	date := time.Now()
	start, end := timeslot.At(14, 0), timeslot.At(15, 0)
	proposed.SuggestedDate = &date
	proposed.SuggestedSlotStart = &start
	proposed.SuggestedSlotEnd = &end
	assert.NoError(t, guardScheduleFromSuggestion(&proposed, professionalID))
	assert.ErrorIs(t, guardScheduleFromSuggestion(&proposed, uuid.New()), ErrNotAppointmentProfessional)
}

func TestEventTrail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	reportID := f.addReport(t)
	appt := f.book(t, timeslot.At(9, 0), timeslot.At(10, 0), "", &reportID)

	altDate := f.date.AddDate(0, 0, 2)
	require.NoError(t, f.svc.StudentProposeAlternative(ctx, appt.ID, f.studentID, altDate, timeslot.At(14, 0), timeslot.At(15, 0)))
	require.NoError(t, f.svc.ScheduleFromSuggestion(ctx, appt.ID, f.professional))

	events := f.repo.EventsForAppointment(appt.ID)
	require.Len(t, events, 3)
	assert.Equal(t, EventAppointmentCreated, events[0].EventType)
	assert.Equal(t, EventAlternativeProposed, events[1].EventType)
	assert.Equal(t, EventSuggestionScheduled, events[2].EventType)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(events[1].Payload, &payload))
	assert.Equal(t, altDate.Format("2006-01-02"), payload["date"])
	assert.Equal(t, "14:00", payload["start"])
	assert.Equal(t, "15:00", payload["end"])
}

func TestEventTrailLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	approved := f.book(t, timeslot.At(9, 0), timeslot.At(9, 30), "", nil)
	_, err := f.svc.ApproveAppointment(ctx, approved.ID)
	require.NoError(t, err)

	rejected := f.book(t, timeslot.At(10, 0), timeslot.At(10, 30), "", nil)
	_, err = f.svc.RejectAppointment(ctx, rejected.ID)
	require.NoError(t, err)

	events := f.repo.EventsForAppointment(approved.ID)
	require.Len(t, events, 2)
	assert.Equal(t, EventAppointmentApproved, events[1].EventType)

	events = f.repo.EventsForAppointment(rejected.ID)
	require.Len(t, events, 2)
	assert.Equal(t, EventAppointmentRejected, events[1].EventType)

	// A refused transition must not append to the trail.
	_, err = f.svc.ApproveAppointment(ctx, rejected.ID)
	require.ErrorIs(t, err, ErrInvalidStatusTransition)
	assert.Len(t, f.repo.EventsForAppointment(rejected.ID), 2)
}

type failingLocker struct{}

func (failingLocker) WithScheduleLock(context.Context, uuid.UUID, time.Time, func(ctx context.Context) error) error {
	return redisclient.ErrLockNotAcquired
}
