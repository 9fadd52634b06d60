package list

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"timetable-service/api"
	"timetable-service/pkg/response"
	"timetable-service/pkg/sl"
)

type Lister interface {
	List(ctx context.Context, classID *string) ([]*api.TimetableEntry, error)
}

type Response struct {
	response.Response
	Entries []*api.TimetableEntry `json:"entries"`
}

func New(log *slog.Logger, lister Lister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.timetable.list.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var classIDPtr *string
		if classID := r.URL.Query().Get("classId"); classID != "" {
			classIDPtr = &classID
		}

		entries, err := lister.List(r.Context(), classIDPtr)
		if err != nil {
			log.Error("Failed to list timetable entries", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error(response.FAILED_REQUEST, "failed to list timetable entries"))
			return
		}

		log.Info("Timetable entries retrieved", slog.Int("count", len(entries)))

		render.JSON(w, r, Response{Entries: entries})
	}
}
