package http

import (
	"net/http"
	"strings"

	"golang.org/x/oauth2"

	"usaha/internal/log"
	"usaha/internal/reminder"
)

type profileResponse struct {
	Email  string `json:"email"`
	ChatID int64  `json:"chatId"`
}

// handlePutCalendarToken hands the server the owner's calendar access token
// for this session. It is kept in memory only.
func (s *Server) handlePutCalendarToken(w http.ResponseWriter, r *http.Request) {
	owner, ok := signedIn(w, r)
	if !ok {
		return
	}
	if s.tokens == nil {
		ErrorResponse(http.StatusServiceUnavailable, "calendar sync is not configured").Write(w)
		return
	}
	var req tokenRequest
	if err := decodeBody(w, r, s.validate, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	tokenType := strings.TrimSpace(req.TokenType)
	if tokenType == "" {
		tokenType = "Bearer"
	}
	s.tokens.Put(owner.Key, &oauth2.Token{
		AccessToken: req.AccessToken,
		TokenType:   tokenType,
		Expiry:      req.Expiry,
	})
	log.FromContext(r.Context()).InfoContext(r.Context(), "Calendar connected",
		log.FieldOwner, owner.Key, log.FieldOperation, log.OpSync)
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

func (s *Server) handleDeleteCalendarToken(w http.ResponseWriter, r *http.Request) {
	owner, ok := signedIn(w, r)
	if !ok {
		return
	}
	if s.tokens != nil {
		s.tokens.Drop(owner.Key)
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	owner, ok := signedIn(w, r)
	if !ok {
		return
	}
	if s.profiles == nil {
		NotFoundError("profiles are not configured").Write(w)
		return
	}
	rc, err := s.profiles.Recipient(r.Context(), owner.Key)
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	NewJSONResponse().JSON(profileResponse{Email: rc.Email, ChatID: rc.ChatID}).Write(w)
}

// handlePutProfile sets where the reminder worker delivers this owner's
// reminders. Empty fields opt out of that channel.
func (s *Server) handlePutProfile(w http.ResponseWriter, r *http.Request) {
	owner, ok := signedIn(w, r)
	if !ok {
		return
	}
	if s.profiles == nil {
		NotFoundError("profiles are not configured").Write(w)
		return
	}
	var req profileRequest
	if err := decodeBody(w, r, s.validate, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	rc := reminder.Recipient{Email: strings.TrimSpace(req.Email), ChatID: req.ChatID}
	if err := s.profiles.SetProfile(r.Context(), owner.Key, rc); err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	NewJSONResponse().JSON(profileResponse{Email: rc.Email, ChatID: rc.ChatID}).Write(w)
}
