package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/campusmind/appointment-scheduling/internal/scheduling"
	"github.com/campusmind/appointment-scheduling/internal/timeslot"
)

func listAvailableSlotsHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		professionalID, ok := parseUUIDParam(w, r, "id", "professional id")
		if !ok {
			return
		}
		date, ok := parseDateQuery(w, r)
		if !ok {
			return
		}

		slots, err := svc.AvailableSlots(r.Context(), date, professionalID)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toSlotResponses(slots))
	}
}

func rangeAvailabilityHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		professionalID, ok := parseUUIDParam(w, r, "id", "professional id")
		if !ok {
			return
		}
		date, ok := parseDateQuery(w, r)
		if !ok {
			return
		}

		start, err := timeslot.Parse(r.URL.Query().Get("start"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_start", "start must be HH:MM")
			return
		}
		end, err := timeslot.Parse(r.URL.Query().Get("end"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_end", "end must be HH:MM")
			return
		}

		available, err := svc.IsRangeAvailable(r.Context(), date, professionalID, start, end)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, AvailabilityResponse{Available: available})
	}
}

func studentSlotsHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		studentID, ok := parseUUIDParam(w, r, "id", "student id")
		if !ok {
			return
		}
		date, ok := parseDateQuery(w, r)
		if !ok {
			return
		}

		slots, err := svc.StudentSlotsForDate(r.Context(), studentID, date)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toSlotResponses(slots))
	}
}

func createAppointmentHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		studentID, err := uuid.Parse(req.StudentID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_student_id", "student_id must be a valid UUID")
			return
		}
		professionalID, err := uuid.Parse(req.ProfessionalID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_professional_id", "professional_id must be a valid UUID")
			return
		}
		date, err := time.Parse(dateLayout, req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
			return
		}
		start, err := timeslot.Parse(req.Start)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_start", "start must be HH:MM")
			return
		}
		end, err := timeslot.Parse(req.End)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_end", "end must be HH:MM")
			return
		}

		params := scheduling.CreateAppointmentParams{
			StudentID:      studentID,
			ProfessionalID: professionalID,
			Date:           date,
			Start:          start,
			End:            end,
			Notes:          req.Notes,
			Status:         scheduling.AppointmentStatus(req.Status),
		}

		if req.ReportID != nil {
			reportID, err := uuid.Parse(*req.ReportID)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_report_id", "report_id must be a valid UUID")
				return
			}
			params.ReportID = &reportID
		}

		appt, err := svc.CreateAppointment(r.Context(), params)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
	}
}

func getAppointmentHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseUUIDParam(w, r, "id", "appointment id")
		if !ok {
			return
		}

		appt, err := svc.GetAppointment(r.Context(), id)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func approveAppointmentHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseUUIDParam(w, r, "id", "appointment id")
		if !ok {
			return
		}

		appt, err := svc.ApproveAppointment(r.Context(), id)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func rejectAppointmentHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseUUIDParam(w, r, "id", "appointment id")
		if !ok {
			return
		}

		appt, err := svc.RejectAppointment(r.Context(), id)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func studentApprovalHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseUUIDParam(w, r, "id", "appointment id")
		if !ok {
			return
		}

		var req StudentApprovalRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		studentID, err := uuid.Parse(req.StudentID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_student_id", "student_id must be a valid UUID")
			return
		}

		if err := svc.StudentApprove(r.Context(), id, studentID); err != nil {
			handleServiceError(w, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func proposalHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseUUIDParam(w, r, "id", "appointment id")
		if !ok {
			return
		}

		var req ProposalRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		studentID, err := uuid.Parse(req.StudentID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_student_id", "student_id must be a valid UUID")
			return
		}
		date, err := time.Parse(dateLayout, req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
			return
		}
		start, err := timeslot.Parse(req.Start)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_start", "start must be HH:MM")
			return
		}
		end, err := timeslot.Parse(req.End)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_end", "end must be HH:MM")
			return
		}

		if err := svc.StudentProposeAlternative(r.Context(), id, studentID, date, start, end); err != nil {
			handleServiceError(w, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func scheduleHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseUUIDParam(w, r, "id", "appointment id")
		if !ok {
			return
		}

		var req ScheduleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		professionalID, err := uuid.Parse(req.ProfessionalID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_professional_id", "professional_id must be a valid UUID")
			return
		}

		if err := svc.ScheduleFromSuggestion(r.Context(), id, professionalID); err != nil {
			handleServiceError(w, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func listStudentAppointmentsHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		studentID, ok := parseUUIDParam(w, r, "id", "student id")
		if !ok {
			return
		}

		var appts []scheduling.Appointment
		var err error

		switch view := r.URL.Query().Get("view"); view {
		case "", "upcoming":
			appts, err = svc.StudentAppointments(r.Context(), studentID)
		case "pending":
			appts, err = svc.StudentPendingAppointments(r.Context(), studentID)
		case "rejected":
			appts, err = svc.StudentRejectedAppointments(r.Context(), studentID)
		default:
			writeError(w, http.StatusBadRequest, "invalid_view", "view must be upcoming, pending or rejected")
			return
		}
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponses(appts))
	}
}

func listProfessionalAppointmentsHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		professionalID, ok := parseUUIDParam(w, r, "id", "professional id")
		if !ok {
			return
		}

		var appts []scheduling.Appointment
		var err error

		switch view := r.URL.Query().Get("view"); view {
		case "", "upcoming":
			appts, err = svc.ProfessionalAppointments(r.Context(), professionalID)
		case "pending":
			appts, err = svc.ProfessionalPendingAppointments(r.Context(), professionalID)
		case "rejected":
			appts, err = svc.ProfessionalRejectedAppointments(r.Context(), professionalID)
		default:
			writeError(w, http.StatusBadRequest, "invalid_view", "view must be upcoming, pending or rejected")
			return
		}
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponses(appts))
	}
}

// Helpers

func parseUUIDParam(w http.ResponseWriter, r *http.Request, name, label string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_"+name, label+" must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func parseDateQuery(w http.ResponseWriter, r *http.Request) (time.Time, bool) {
	date, err := time.Parse(dateLayout, r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
		return time.Time{}, false
	}
	return date, true
}

func toSlotResponses(slots []timeslot.Slot) []SlotResponse {
	out := make([]SlotResponse, 0, len(slots))
	for _, s := range slots {
		out = append(out, SlotResponse{Start: s.Start.String(), End: s.End.String()})
	}
	return out
}

func handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, scheduling.ErrStudentNotFound):
		writeError(w, http.StatusNotFound, "student_not_found", err.Error())
	case errors.Is(err, scheduling.ErrProfessionalNotFound):
		writeError(w, http.StatusNotFound, "professional_not_found", err.Error())
	case errors.Is(err, scheduling.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, scheduling.ErrReportNotFound):
		writeError(w, http.StatusNotFound, "report_not_found", err.Error())
	case errors.Is(err, scheduling.ErrInvalidInitialStatus):
		writeError(w, http.StatusBadRequest, "invalid_status", err.Error())
	case errors.Is(err, scheduling.ErrInvalidTimeRange):
		writeError(w, http.StatusBadRequest, "invalid_time_range", err.Error())
	case errors.Is(err, timeslot.ErrNotConsecutive):
		writeError(w, http.StatusBadRequest, "slots_not_consecutive", err.Error())
	case errors.Is(err, timeslot.ErrCrossesLunchBreak):
		writeError(w, http.StatusBadRequest, "slots_cross_lunch_break", err.Error())
	case errors.Is(err, scheduling.ErrRangeUnavailable):
		writeError(w, http.StatusBadRequest, "range_unavailable", err.Error())
	case errors.Is(err, scheduling.ErrNotAppointmentStudent),
		errors.Is(err, scheduling.ErrNotAppointmentProfessional):
		writeError(w, http.StatusForbidden, "not_a_party", err.Error())
	case errors.Is(err, scheduling.ErrInvalidStatusTransition):
		writeError(w, http.StatusConflict, "invalid_status_transition", err.Error())
	case errors.Is(err, scheduling.ErrNotReportLinked):
		writeError(w, http.StatusConflict, "not_report_linked", err.Error())
	case errors.Is(err, scheduling.ErrNoSuggestedSchedule):
		writeError(w, http.StatusConflict, "no_suggested_schedule", err.Error())
	case errors.Is(err, scheduling.ErrTimeConflict):
		writeError(w, http.StatusConflict, "time_conflict", err.Error())
	case errors.Is(err, scheduling.ErrScheduleBusy):
		writeError(w, http.StatusConflict, "schedule_busy", "schedule is currently being booked, please retry shortly")
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
