package http

import (
	"fmt"
	"net/http"

	"usaha/internal/calendar"
	"usaha/internal/core"
	"usaha/internal/log"
	"usaha/internal/reminder"
	"usaha/internal/report"
	"usaha/internal/store"
)

type reportResponse struct {
	Rows   []report.Row  `json:"rows"`
	Totals report.Row    `json:"totals"`
	Years  []string      `json:"years"`
	Filter report.Filter `json:"filter"`
}

type remindersResponse struct {
	Reminders []reminder.Event `json:"reminders"`
}

// reportKeyPrefix scopes cached reports to one business of one owner.
func reportKeyPrefix(owner store.Owner, businessID string) string {
	kind := "user:"
	if owner.Guest {
		kind = "guest:"
	}
	return kind + owner.Key + "|" + businessID + "|"
}

// handleReport aggregates realized income and expenses. Results are cached
// per store revision, so any write invalidates them.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	st, id, ok := s.businessFor(w, r, log.OpReport)
	if !ok {
		return
	}
	f := parseReportFilter(r.URL.Query())
	key := fmt.Sprintf("%s%d|%s|%s|%d-%d", reportKeyPrefix(st.Owner(), id), st.Revision(),
		f.Granularity, f.Year, f.StartMonth, f.EndMonth)
	if cached, hit := s.reportCache.Get(key); hit {
		s.metrics.ObserveCache("report", true)
		NewJSONResponse().JSON(cached).Write(w)
		return
	}
	s.metrics.ObserveCache("report", false)

	b, found := st.Business(id)
	if !found {
		NotFoundError("business not found").Write(w)
		return
	}
	rows := report.BuildForBusiness(b, f)
	resp := reportResponse{
		Rows:   rows,
		Totals: report.Totals(rows),
		Years:  report.AvailableYears(b.Jobs, b.OtherIncomes, b.OtherExpenses),
		Filter: f,
	}
	s.reportCache.Set(key, resp)
	NewJSONResponse().JSON(resp).Write(w)
}

// handleReminders previews the reminders due now without marking them.
func (s *Server) handleReminders(w http.ResponseWriter, r *http.Request) {
	st, id, ok := s.businessFor(w, r, log.OpScan)
	if !ok {
		return
	}
	b, found := st.Business(id)
	if !found {
		NotFoundError("business not found").Write(w)
		return
	}
	notified, err := st.Notified(r.Context())
	if err != nil {
		writeError(w, r, log.OpScan, err)
		return
	}
	events := reminder.FindDueInBusiness(b, s.now().In(s.loc), s.lookahead, notified)
	if events == nil {
		events = []reminder.Event{}
	}
	NewJSONResponse().JSON(remindersResponse{Reminders: events}).Write(w)
}

// handleAckReminders records reminders the client delivered itself.
func (s *Server) handleAckReminders(w http.ResponseWriter, r *http.Request) {
	st, id, ok := s.businessFor(w, r, log.OpMark)
	if !ok {
		return
	}
	if _, found := st.Business(id); !found {
		NotFoundError("business not found").Write(w)
		return
	}
	var req ackRequest
	if err := decodeBody(w, r, s.validate, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	if err := st.MarkNotified(r.Context(), req.Keys...); err != nil {
		writeError(w, r, log.OpMark, err)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

// handleICS exports the business's occurrences between from and to.
func (s *Server) handleICS(w http.ResponseWriter, r *http.Request) {
	st, id, ok := s.businessFor(w, r, log.OpExport)
	if !ok {
		return
	}
	b, found := st.Business(id)
	if !found {
		NotFoundError("business not found").Write(w)
		return
	}
	now := s.now().In(s.loc)
	from, to, err := parseRange(r.URL.Query(), core.DateOf(now))
	if err != nil {
		UnprocessableEntityError(err.Error()).Write(w)
		return
	}
	body := calendar.ExportICS(b, from, to, s.loc, now)
	NewJSONResponse().
		Header("Content-Disposition", `attachment; filename="calendar.ics"`).
		Raw("text/calendar; charset=utf-8", []byte(body)).
		Write(w)
}
