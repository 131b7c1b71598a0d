package server

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"gitlab.ozon.dev/pupkingeorgij/returns-dashboard/internal/dashboard"
)

const sessionCookie = "returns_session"

type sessionKey struct{}

func (s *Server) sessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := ""
		if c, err := r.Cookie(sessionCookie); err == nil {
			if _, err := uuid.Parse(c.Value); err == nil {
				id = c.Value
			}
		}
		if id == "" {
			id = uuid.NewString()
		}

		sess, _ := s.sessions.GetOrCreate(id)
		http.SetCookie(w, &http.Cookie{
			Name:     sessionCookie,
			Value:    id,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey{}, sess)))
	})
}

func sessionFrom(ctx context.Context) *dashboard.Session {
	sess, _ := ctx.Value(sessionKey{}).(*dashboard.Session)
	return sess
}
