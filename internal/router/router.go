package router

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/zippora-client-go/internal/app"
	"github.com/ovaphlow/pitchfork/zippora-client-go/internal/cache"
	"github.com/ovaphlow/pitchfork/zippora-client-go/internal/session"
	"github.com/ovaphlow/pitchfork/zippora-client-go/pkg/utilities"
)

// Prefix is the root of every bridge route.
const Prefix = "/zippora-client"

// statusWriter remembers the status and body size of a bridge response.
type statusWriter struct {
	http.ResponseWriter
	status int
	size   int
}

func (w *statusWriter) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(b)
	w.size += n
	return n, err
}

// Flush lets the event stream through the wrapper.
func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// RequestIDHeader correlates a UI shell call with the bridge's log lines.
const RequestIDHeader = "X-Request-Id"

// LoggingMiddleware tags each bridge call with a request id (the shell's own,
// or a fresh snowflake id) and logs it with the route and the member the
// session belonged to when the call finished. Server errors log at warn.
func LoggingMiddleware(logger *zap.SugaredLogger, memberID func() string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := r.Header.Get(RequestIDHeader)
			if reqID == "" {
				reqID = utilities.NewRequestID()
			}
			w.Header().Set(RequestIDHeader, reqID)

			start := time.Now()
			sw := &statusWriter{ResponseWriter: w}
			next.ServeHTTP(sw, r)
			if sw.status == 0 {
				sw.status = http.StatusOK
			}

			log := logger.Debugw
			if sw.status >= http.StatusInternalServerError {
				log = logger.Warnw
			}
			log("bridge call",
				"request_id", reqID,
				"route", r.Pattern,
				"member_id", memberID(),
				"status", sw.status,
				"elapsed", time.Since(start),
				"bytes", sw.size,
			)
		})
	}
}

// SecurityHeadersMiddleware sets response headers for a bridge that only a
// local UI shell should talk to.
func SecurityHeadersMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "no-referrer")
			w.Header().Set("Cache-Control", "no-store")
			if w.Header().Get("Content-Security-Policy") == "" {
				w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none';")
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RegisterRoutes mounts the session and cache handlers of a.
func RegisterRoutes(a *app.App, logger *zap.SugaredLogger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET "+Prefix+"/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	sh := session.NewHandler(a.Session, logger)
	mux.HandleFunc("GET "+Prefix+"/session", sh.State)
	mux.HandleFunc("POST "+Prefix+"/session/login", sh.Login)
	mux.HandleFunc("POST "+Prefix+"/session/logout", sh.Logout)
	mux.HandleFunc("POST "+Prefix+"/session/vcode", sh.SendRegisterVcode)
	mux.HandleFunc("POST "+Prefix+"/session/register", sh.Register)
	mux.HandleFunc("POST "+Prefix+"/session/forgot-password", sh.ForgotPassword)
	mux.HandleFunc("POST "+Prefix+"/session/reset-password", sh.ResetPassword)
	mux.HandleFunc("POST "+Prefix+"/session/change-password", sh.ChangePassword)

	ch := cache.NewHandler(a.Cache, logger)
	mux.HandleFunc("GET "+Prefix+"/cache", ch.Snapshot)
	mux.HandleFunc("POST "+Prefix+"/cache/refresh", ch.Refresh)
	mux.HandleFunc("GET "+Prefix+"/events", ch.Events)
	mux.HandleFunc("PATCH "+Prefix+"/profile", ch.UpdateProfile)
	mux.HandleFunc("POST "+Prefix+"/profile/household", ch.AddHouseholdMember)
	mux.HandleFunc("DELETE "+Prefix+"/profile/household/{name}", ch.RemoveHouseholdMember)
	mux.HandleFunc("GET "+Prefix+"/apartments/search", ch.SearchApartments)
	mux.HandleFunc("GET "+Prefix+"/apartments/{id}/units", ch.Units)
	mux.HandleFunc("POST "+Prefix+"/apartments/{id}/subscription", ch.Subscribe)
	mux.HandleFunc("DELETE "+Prefix+"/apartments/{id}/subscription", ch.Unsubscribe)
	mux.HandleFunc("POST "+Prefix+"/scan", ch.Scan)
	mux.HandleFunc("GET "+Prefix+"/logs", ch.Logs)

	return LoggingMiddleware(logger, a.Session.MemberID)(SecurityHeadersMiddleware()(mux))
}
