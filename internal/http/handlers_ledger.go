package http

import (
	"net/http"

	"usaha/internal/core"
	"usaha/internal/log"
)

func (s *Server) handleAddIncome(w http.ResponseWriter, r *http.Request) {
	st, id, ok := s.businessFor(w, r, log.OpCreate)
	if !ok {
		return
	}
	in, ok := s.decodeEntry(w, r, "add_income")
	if !ok {
		return
	}
	saved, err := st.AddIncome(r.Context(), id, core.OtherIncome(in))
	if err != nil {
		writeError(w, r, "add_income", err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).JSON(saved).Write(w)
}

func (s *Server) handleUpdateIncome(w http.ResponseWriter, r *http.Request) {
	st, id, ok := s.businessFor(w, r, log.OpUpdate)
	if !ok {
		return
	}
	in, ok := s.decodeEntry(w, r, "update_income")
	if !ok {
		return
	}
	in.ID = r.PathValue("itemID")
	if err := st.UpdateIncome(r.Context(), id, core.OtherIncome(in)); err != nil {
		writeError(w, r, "update_income", err)
		return
	}
	NewJSONResponse().JSON(core.OtherIncome(in)).Write(w)
}

func (s *Server) handleDeleteIncome(w http.ResponseWriter, r *http.Request) {
	st, id, ok := s.businessFor(w, r, log.OpDelete)
	if !ok {
		return
	}
	if err := st.DeleteIncome(r.Context(), id, r.PathValue("itemID")); err != nil {
		writeError(w, r, "delete_income", err)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

func (s *Server) handleAddExpense(w http.ResponseWriter, r *http.Request) {
	st, id, ok := s.businessFor(w, r, log.OpCreate)
	if !ok {
		return
	}
	ex, ok := s.decodeEntry(w, r, "add_expense")
	if !ok {
		return
	}
	saved, err := st.AddExpense(r.Context(), id, ex)
	if err != nil {
		writeError(w, r, "add_expense", err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).JSON(saved).Write(w)
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	st, id, ok := s.businessFor(w, r, log.OpUpdate)
	if !ok {
		return
	}
	ex, ok := s.decodeEntry(w, r, "update_expense")
	if !ok {
		return
	}
	ex.ID = r.PathValue("itemID")
	if err := st.UpdateExpense(r.Context(), id, ex); err != nil {
		writeError(w, r, "update_expense", err)
		return
	}
	NewJSONResponse().JSON(ex).Write(w)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	st, id, ok := s.businessFor(w, r, log.OpDelete)
	if !ok {
		return
	}
	if err := st.DeleteExpense(r.Context(), id, r.PathValue("itemID")); err != nil {
		writeError(w, r, "delete_expense", err)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

// decodeEntry reads an income or expense body. Both share one layout.
func (s *Server) decodeEntry(w http.ResponseWriter, r *http.Request, op string) (core.OtherExpense, bool) {
	var req entryRequest
	if err := decodeBody(w, r, s.validate, &req); err != nil {
		writeDecodeError(w, err)
		return core.OtherExpense{}, false
	}
	title, d, err := req.parts()
	if err != nil {
		writeError(w, r, op, err)
		return core.OtherExpense{}, false
	}
	return core.OtherExpense{Title: title, Date: d, Amount: req.Amount}, true
}

func (s *Server) handleAddLabel(w http.ResponseWriter, r *http.Request) {
	st, id, ok := s.businessFor(w, r, log.OpCreate)
	if !ok {
		return
	}
	var req labelRequest
	if err := decodeBody(w, r, s.validate, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	l, err := st.AddLabel(r.Context(), id, core.Label{Title: sanitizeInput(req.Title), Color: sanitizeInput(req.Color)})
	if err != nil {
		writeError(w, r, "add_label", err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).JSON(l).Write(w)
}

func (s *Server) handleUpdateLabel(w http.ResponseWriter, r *http.Request) {
	st, id, ok := s.businessFor(w, r, log.OpUpdate)
	if !ok {
		return
	}
	var req labelRequest
	if err := decodeBody(w, r, s.validate, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	l := core.Label{ID: r.PathValue("itemID"), Title: sanitizeInput(req.Title), Color: sanitizeInput(req.Color)}
	if err := st.UpdateLabel(r.Context(), id, l); err != nil {
		writeError(w, r, "update_label", err)
		return
	}
	NewJSONResponse().JSON(l).Write(w)
}

// handleDeleteLabel removes the label; jobs that used it stay, untagged.
func (s *Server) handleDeleteLabel(w http.ResponseWriter, r *http.Request) {
	st, id, ok := s.businessFor(w, r, log.OpDelete)
	if !ok {
		return
	}
	if err := st.DeleteLabel(r.Context(), id, r.PathValue("itemID")); err != nil {
		writeError(w, r, "delete_label", err)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}
