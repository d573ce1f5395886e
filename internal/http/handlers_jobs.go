package http

import (
	"errors"
	"net/http"
	"strings"

	"usaha/internal/core"
	"usaha/internal/log"
	"usaha/internal/schedule"
)

type occurrencesResponse struct {
	Date        string            `json:"date,omitempty"`
	Occurrences []core.Occurrence `json:"occurrences"`
}

// sessionExpiredBody tells the client to sign in again while still
// returning the job that was saved without its calendar event.
type sessionExpiredBody struct {
	Error string   `json:"error"`
	Job   core.Job `json:"job"`
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	st, id, ok := s.businessFor(w, r, log.OpList)
	if !ok {
		return
	}
	b, found := st.Business(id)
	if !found {
		NotFoundError("business not found").Write(w)
		return
	}
	NewJSONResponse().JSON(occurrencesResponse{Occurrences: schedule.TemplateList(b.Jobs)}).Write(w)
}

// handleSchedule lists the occurrences on ?date=, today when absent. An
// unparsable date yields an empty list.
func (s *Server) handleSchedule(w http.ResponseWriter, r *http.Request) {
	st, id, ok := s.businessFor(w, r, log.OpRead)
	if !ok {
		return
	}
	b, found := st.Business(id)
	if !found {
		NotFoundError("business not found").Write(w)
		return
	}
	date := strings.TrimSpace(r.URL.Query().Get("date"))
	if date == "" {
		date = core.DateOf(s.now().In(s.loc)).String()
	}
	NewJSONResponse().JSON(occurrencesResponse{
		Date:        date,
		Occurrences: schedule.OccurrencesOnDate(b.Jobs, date),
	}).Write(w)
}

func (s *Server) handleAddJob(w http.ResponseWriter, r *http.Request) {
	st, id, ok := s.businessFor(w, r, log.OpCreate)
	if !ok {
		return
	}
	var req jobRequest
	if err := decodeBody(w, r, s.validate, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	j, err := req.toJob("")
	if err != nil {
		writeError(w, r, "add_job", err)
		return
	}
	saved, err := st.AddJob(r.Context(), id, j, req.SyncCalendar)
	s.writeJobResult(w, r, "add_job", http.StatusCreated, saved, err)
}

func (s *Server) handleUpdateJob(w http.ResponseWriter, r *http.Request) {
	st, id, ok := s.businessFor(w, r, log.OpUpdate)
	if !ok {
		return
	}
	var req jobRequest
	if err := decodeBody(w, r, s.validate, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	j, err := req.toJob(r.PathValue("jobID"))
	if err != nil {
		writeError(w, r, "update_job", err)
		return
	}
	saved, err := st.UpdateJob(r.Context(), id, j, req.SyncCalendar)
	s.writeJobResult(w, r, "update_job", http.StatusOK, saved, err)
}

// writeJobResult answers a job write. An expired calendar session still
// saved the job, so the 401 carries it.
func (s *Server) writeJobResult(w http.ResponseWriter, r *http.Request, op string, status int, saved core.Job, err error) {
	switch {
	case err == nil:
		NewJSONResponse().Status(status).JSON(saved).Write(w)
	case errors.Is(err, core.ErrSessionExpired) && saved.ID != "":
		log.FromContext(r.Context()).InfoContext(r.Context(), "Calendar session expired",
			log.NewFields().WithOperation(op).WithJob("", saved.ID).WithErrorType(log.ErrorTypeAuth).ToSlice()...)
		NewJSONResponse().Status(http.StatusUnauthorized).
			JSON(sessionExpiredBody{Error: SessionExpiredMessage, Job: saved}).Write(w)
	default:
		writeError(w, r, op, err)
	}
}

func (s *Server) handleDeleteJob(w http.ResponseWriter, r *http.Request) {
	st, id, ok := s.businessFor(w, r, log.OpDelete)
	if !ok {
		return
	}
	if err := st.DeleteJob(r.Context(), id, r.PathValue("jobID")); err != nil {
		writeError(w, r, "delete_job", err)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

func (s *Server) handleToggleJob(w http.ResponseWriter, r *http.Request) {
	st, id, ok := s.businessFor(w, r, log.OpToggle)
	if !ok {
		return
	}
	var req toggleRequest
	if err := decodeOptionalBody(w, r, s.validate, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	j, err := st.ToggleJob(r.Context(), id, r.PathValue("jobID"), req.Date)
	if err != nil {
		writeError(w, r, log.OpToggle, err)
		return
	}
	NewJSONResponse().JSON(j).Write(w)
}

func (s *Server) handleDetachJob(w http.ResponseWriter, r *http.Request) {
	st, id, ok := s.businessFor(w, r, log.OpDetach)
	if !ok {
		return
	}
	var req detachRequest
	if err := decodeBody(w, r, s.validate, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	edit, err := req.toEdit()
	if err != nil {
		writeError(w, r, log.OpDetach, err)
		return
	}
	standalone, err := st.DetachOccurrence(r.Context(), id, r.PathValue("jobID"), req.Date, edit)
	if err != nil {
		writeError(w, r, log.OpDetach, err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).JSON(standalone).Write(w)
}
