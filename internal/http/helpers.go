package http

import (
	"net/http"
	"strings"

	"usaha/internal/middleware/auth"
	"usaha/internal/store"
)

// sanitizeInput removes control characters except tab and newlines, and
// trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		if r == 127 {
			return -1
		}
		return r
	}, s)
}

// storeFor returns the request owner's store, writing the error response
// itself when it cannot.
func (s *Server) storeFor(w http.ResponseWriter, r *http.Request, op string) (*store.Store, bool) {
	owner, ok := auth.OwnerFrom(r.Context())
	if !ok {
		UnauthorizedError("missing credentials").Write(w)
		return nil, false
	}
	st, err := s.stores.For(r.Context(), owner)
	if err != nil {
		writeError(w, r, op, err)
		return nil, false
	}
	return st, true
}

// businessFor resolves the {id} path segment against the owner's store.
func (s *Server) businessFor(w http.ResponseWriter, r *http.Request, op string) (*store.Store, string, bool) {
	st, ok := s.storeFor(w, r, op)
	if !ok {
		return nil, "", false
	}
	return st, r.PathValue("id"), true
}

// signedIn rejects guests from features that need a server-side identity.
func signedIn(w http.ResponseWriter, r *http.Request) (store.Owner, bool) {
	owner, ok := auth.OwnerFrom(r.Context())
	if !ok {
		UnauthorizedError("missing credentials").Write(w)
		return store.Owner{}, false
	}
	if owner.Guest {
		ForbiddenError("sign in to use this feature").Write(w)
		return store.Owner{}, false
	}
	return owner, true
}
