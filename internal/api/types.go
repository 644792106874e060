package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/campusmind/appointment-scheduling/internal/scheduling"
)

type CreateAppointmentRequest struct {
	StudentID      string  `json:"student_id"`
	ProfessionalID string  `json:"professional_id"`
	Date           string  `json:"date"`  // YYYY-MM-DD
	Start          string  `json:"start"` // HH:MM
	End            string  `json:"end"`   // HH:MM
	Notes          *string `json:"notes,omitempty"`
	ReportID       *string `json:"report_id,omitempty"`
	Status         string  `json:"status,omitempty"`
}

type StudentApprovalRequest struct {
	StudentID string `json:"student_id"`
}

type ProposalRequest struct {
	StudentID string `json:"student_id"`
	Date      string `json:"date"`
	Start     string `json:"start"`
	End       string `json:"end"`
}

type ScheduleRequest struct {
	ProfessionalID string `json:"professional_id"`
}

type SlotResponse struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type AvailabilityResponse struct {
	Available bool `json:"available"`
}

type AppointmentResponse struct {
	ID             uuid.UUID  `json:"id"`
	StudentID      uuid.UUID  `json:"student_id"`
	ProfessionalID uuid.UUID  `json:"professional_id"`
	Date           string     `json:"date"`
	Start          string     `json:"start"`
	End            string     `json:"end"`
	Status         string     `json:"status"`
	Notes          *string    `json:"notes,omitempty"`
	ReportID       *uuid.UUID `json:"report_id,omitempty"`
	SuggestedDate  *string    `json:"suggested_date,omitempty"`
	SuggestedStart *string    `json:"suggested_start,omitempty"`
	SuggestedEnd   *string    `json:"suggested_end,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

const dateLayout = "2006-01-02"

func toAppointmentResponse(a *scheduling.Appointment) AppointmentResponse {
	resp := AppointmentResponse{
		ID:             a.ID,
		StudentID:      a.StudentID,
		ProfessionalID: a.ProfessionalID,
		Date:           a.Date.Format(dateLayout),
		Start:          a.SlotStart.String(),
		End:            a.SlotEnd.String(),
		Status:         string(a.Status),
		Notes:          a.Notes,
		ReportID:       a.ReportID,
		CreatedAt:      a.CreatedAt,
		UpdatedAt:      a.UpdatedAt,
	}

	if a.SuggestedDate != nil {
		d := a.SuggestedDate.Format(dateLayout)
		resp.SuggestedDate = &d
	}
	if a.SuggestedSlotStart != nil {
		s := a.SuggestedSlotStart.String()
		resp.SuggestedStart = &s
	}
	if a.SuggestedSlotEnd != nil {
		e := a.SuggestedSlotEnd.String()
		resp.SuggestedEnd = &e
	}
	return resp
}

func toAppointmentResponses(appts []scheduling.Appointment) []AppointmentResponse {
	out := make([]AppointmentResponse, 0, len(appts))
	for i := range appts {
		out = append(out, toAppointmentResponse(&appts[i]))
	}
	return out
}
