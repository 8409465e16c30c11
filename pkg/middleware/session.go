package middleware

import (
	"log/slog"
	"net/http"
	"regexp"

	"github.com/google/uuid"

	"github.com/Arya602/craft-heart-connect/pkg/httputil"
	"github.com/Arya602/craft-heart-connect/pkg/logger"
)

const (
	// SessionIDHeader identifies the shopper's cart and wishlist.
	SessionIDHeader = "X-Session-ID"
	// UserIDHeader is accepted as a session id for signed-in shoppers
	// when the gateway forwards one.
	UserIDHeader = "X-User-ID"
)

var sessionIDRe = regexp.MustCompile(`^[A-Za-z0-9_-]{8,128}$`)

// Session resolves the storefront session for the request. The id is read
// from X-Session-ID, then X-User-ID; a malformed id is rejected with 400 and
// a missing one is minted and returned in the X-Session-ID response header so
// the client can keep using it.
func Session() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(SessionIDHeader)
			if id == "" {
				id = r.Header.Get(UserIDHeader)
			}

			switch {
			case id == "":
				id = uuid.NewString()
			case !sessionIDRe.MatchString(id):
				writeBadSession(w, r)
				return
			}

			w.Header().Set(SessionIDHeader, id)
			ctx := logger.WithSessionID(r.Context(), id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SessionID returns the session id resolved by Session.
func SessionID(r *http.Request) string {
	return logger.SessionIDFromContext(r.Context())
}

// RequestLogger stores a logger enriched with correlation_id, session_id,
// trace_id and span_id in the request context. Mount it after
// RequestLogging, Tracing and Session.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			ctx = logger.NewContext(ctx, logger.WithContext(ctx, base))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeBadSession(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
		Error: &httputil.ErrorResponse{
			Code:      "INVALID_SESSION",
			Message:   "session id must be 8-128 characters of letters, digits, '-' or '_'",
			RequestID: logger.CorrelationIDFromContext(r.Context()),
		},
	})
}
