// Package app is the HTTP transport: JSON in, action envelope out.
package app

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/sessions"
	"go.uber.org/zap"

	"github.com/Spok95/campus-community/internal/auth"
	"github.com/Spok95/campus-community/internal/ctxutil"
	"github.com/Spok95/campus-community/internal/metrics"
	"github.com/Spok95/campus-community/internal/service"
)

// Deps is everything the router needs.
type Deps struct {
	Auth     *auth.Service
	Groups   *service.GroupService
	Posts    *service.PostService
	Feedback *service.FeedbackService
	Sessions sessions.Store
	// Ping checks the database for /healthz.
	Ping func(ctx context.Context) error
	// LogLevel, when set, is served at /debug/loglevel (GET reads, PUT {"level":"debug"} changes).
	LogLevel http.Handler
	Log      *zap.Logger
	Loc      *time.Location
}

type api struct {
	Deps
	signups *keyLimiter
}

func NewRouter(d Deps) http.Handler {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	if d.Loc == nil {
		d.Loc = time.UTC
	}
	a := &api{Deps: d, signups: newKeyLimiter()}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, requestContext, middleware.Recoverer, instrument)

	r.Get("/healthz", a.healthz)
	r.Handle("/metrics", metrics.Handler())
	if d.LogLevel != nil {
		r.Method(http.MethodGet, "/debug/loglevel", d.LogLevel)
		r.Method(http.MethodPut, "/debug/loglevel", d.LogLevel)
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Get("/me", a.currentUser)
			r.Post("/login", a.login)
			r.Post("/signup", a.signup)
			r.Post("/logout", a.logout)
		})
		r.Route("/groups", func(r chi.Router) {
			r.Get("/", a.listApprovedGroups)
			r.Post("/", a.createGroup)
			r.Get("/pending", a.listPendingGroups)
			r.Get("/mine", a.listMyGroups)
			r.Get("/slug/{slug}", a.getGroupBySlug)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", a.getGroup)
				r.Patch("/", a.updateGroup)
				r.Delete("/", a.deleteGroup)
				r.Post("/review", a.reviewGroup)
				r.Post("/join", a.joinGroup)
				r.Post("/leave", a.leaveGroup)
				r.Get("/members", a.listMembers)
				r.Get("/posts", a.listPosts)
				r.Get("/announcements", a.listAnnouncements)
			})
		})
		r.Route("/members/{id}", func(r chi.Router) {
			r.Patch("/role", a.updateMemberRole)
			r.Delete("/", a.removeMember)
			r.Post("/approve", a.approveMember)
			r.Post("/reject", a.rejectMember)
		})
		r.Route("/posts", func(r chi.Router) {
			r.Post("/", a.createPost)
			r.Get("/by-author/{userID}", a.listPostsByAuthor)
			r.Get("/{id}", a.getPost)
			r.Patch("/{id}", a.updatePost)
			r.Delete("/{id}", a.deletePost)
			r.Post("/{id}/pin", a.togglePin)
		})
		r.Route("/feedback", func(r chi.Router) {
			r.Get("/", a.listFeedback)
			r.Post("/", a.createFeedback)
			r.Get("/stats", a.feedbackStats)
			r.Get("/export", a.exportFeedback)
			r.Get("/{id}", a.getFeedback)
			r.Delete("/{id}", a.deleteFeedback)
			r.Patch("/{id}/status", a.updateFeedbackStatus)
			r.Get("/{id}/logs", a.feedbackLogs)
		})
	})
	return r
}

// requestContext copies the request id into ctxutil so logs and Sentry events carry it.
func requestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := middleware.GetReqID(r.Context()); id != "" {
			r = r.WithContext(ctxutil.WithRequestID(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}

func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.HTTPRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	})
}

func (a *api) healthz(w http.ResponseWriter, r *http.Request) {
	if a.Ping != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 800*time.Millisecond)
		defer cancel()
		if err := a.Ping(ctx); err != nil {
			http.Error(w, "db not ok: "+err.Error(), http.StatusServiceUnavailable)
			return
		}
	}
	_, _ = w.Write([]byte("ok"))
}

func (a *api) session(w http.ResponseWriter, r *http.Request) auth.Session {
	return auth.NewCookieSession(a.Sessions, w, r)
}
