package http

import (
	"net/http"

	"usaha/internal/core"
	"usaha/internal/log"
)

type businessListResponse struct {
	Businesses []core.Business `json:"businesses"`
}

func (s *Server) handleListBusinesses(w http.ResponseWriter, r *http.Request) {
	st, ok := s.storeFor(w, r, log.OpList)
	if !ok {
		return
	}
	NewJSONResponse().JSON(businessListResponse{Businesses: st.Businesses()}).Write(w)
}

func (s *Server) handleGetBusiness(w http.ResponseWriter, r *http.Request) {
	st, id, ok := s.businessFor(w, r, log.OpRead)
	if !ok {
		return
	}
	b, found := st.Business(id)
	if !found {
		NotFoundError("business not found").Write(w)
		return
	}
	NewJSONResponse().JSON(b).Write(w)
}

func (s *Server) handleCreateBusiness(w http.ResponseWriter, r *http.Request) {
	st, ok := s.storeFor(w, r, log.OpCreate)
	if !ok {
		return
	}
	var req businessRequest
	if err := decodeBody(w, r, s.validate, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	b, err := st.CreateBusiness(r.Context(), sanitizeInput(req.Name))
	if err != nil {
		writeError(w, r, "create_business", err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).JSON(b).Write(w)
}

func (s *Server) handleRenameBusiness(w http.ResponseWriter, r *http.Request) {
	st, id, ok := s.businessFor(w, r, log.OpUpdate)
	if !ok {
		return
	}
	var req businessRequest
	if err := decodeBody(w, r, s.validate, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	if err := st.RenameBusiness(r.Context(), id, sanitizeInput(req.Name)); err != nil {
		writeError(w, r, "rename_business", err)
		return
	}
	b, _ := st.Business(id)
	NewJSONResponse().JSON(b).Write(w)
}

func (s *Server) handleDeleteBusiness(w http.ResponseWriter, r *http.Request) {
	st, id, ok := s.businessFor(w, r, log.OpDelete)
	if !ok {
		return
	}
	if err := st.DeleteBusiness(r.Context(), id); err != nil {
		writeError(w, r, "delete_business", err)
		return
	}
	s.reportCache.DeletePrefix(reportKeyPrefix(st.Owner(), id))
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}
