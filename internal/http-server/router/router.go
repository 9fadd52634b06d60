package router

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"timetable-service/internal/auth"
	"timetable-service/internal/config"
	timetableAllocate "timetable-service/internal/http-server/handlers/timetable/allocate"
	timetableDelete "timetable-service/internal/http-server/handlers/timetable/delete"
	timetableGet "timetable-service/internal/http-server/handlers/timetable/get"
	timetableList "timetable-service/internal/http-server/handlers/timetable/list"
	timetableUpdate "timetable-service/internal/http-server/handlers/timetable/update"
	"timetable-service/internal/http-server/middleware/session"
	"timetable-service/pkg/metrics"
	"timetable-service/pkg/middleware/mwLogger"
	"timetable-service/pkg/middleware/mwRecoverer"
	"timetable-service/pkg/response"
)

type Timetable interface {
	timetableAllocate.Allocator
	timetableList.Lister
	timetableGet.Getter
	timetableUpdate.Updater
	timetableDelete.Remover
}

func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func New(log *slog.Logger, cfg *config.Config, timetable Timetable, m *metrics.Metrics) http.Handler {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(mwLogger.New(log))
	router.Use(mwRecoverer.New(log))
	router.Use(m.Middleware)
	router.Use(CORS)

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, response.Error(response.NOT_FOUND, "route not found"))
	})
	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		render.Status(r, http.StatusMethodNotAllowed)
		render.JSON(w, r, response.Error(response.METHOD_NOT_ALLOWED, "method not allowed"))
	})

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, map[string]string{"status": "ok"})
	})
	router.Handle("/metrics", m.Handler())

	router.Route("/timetable", func(r chi.Router) {
		r.Use(session.New(log, cfg.Auth.JWTSecret, cfg.Auth.Issuer))

		r.Get("/", timetableList.New(log, timetable))
		r.Get("/{id}", timetableGet.New(log, timetable))

		r.Group(func(r chi.Router) {
			r.Use(session.RequireRole(log, auth.RoleAdmin, auth.RoleTeacher))

			r.Post("/", timetableAllocate.New(log, timetable))
			r.Patch("/{id}", timetableUpdate.New(log, timetable))
			r.Delete("/{id}", timetableDelete.New(log, timetable))
		})
	})

	return router
}
