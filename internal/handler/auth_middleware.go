package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"admin-auth/internal/service"
)

type TokenAuthorizer interface {
	Authorize(ctx context.Context, authorization string) service.Decision
}

type decisionKey struct{}

// RequireSession rejects requests without a valid session token and stores
// the decision on the request context.
func RequireSession(a TokenAuthorizer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			decision := a.Authorize(r.Context(), r.Header.Get("Authorization"))
			if !decision.Allow {
				respondWithError(w, http.StatusUnauthorized, msgUnauthorized)
				return
			}
			ctx := context.WithValue(r.Context(), decisionKey{}, decision)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SessionFromContext returns the decision stored by RequireSession.
func SessionFromContext(ctx context.Context) (service.Decision, bool) {
	d, ok := ctx.Value(decisionKey{}).(service.Decision)
	return d, ok
}

// SessionHandler serves GET /auth/session for the local server.
type SessionHandler struct {
	authorizer TokenAuthorizer
}

func NewSessionHandler(a TokenAuthorizer) *SessionHandler {
	return &SessionHandler{authorizer: a}
}

func (h *SessionHandler) RegisterRoutes(r chi.Router) {
	r.With(RequireSession(h.authorizer)).Get("/auth/session", h.Session)
}

func (h *SessionHandler) Session(w http.ResponseWriter, r *http.Request) {
	d, ok := SessionFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, msgUnauthorized)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{
		"email":    d.Identity,
		"token_id": d.TokenID,
	})
}
