package get

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"timetable-service/api"
	"timetable-service/pkg/response"
	"timetable-service/pkg/sl"
)

type Getter interface {
	Get(ctx context.Context, id string) (*api.TimetableEntry, error)
}

type Response struct {
	response.Response
	Entry *api.TimetableEntry `json:"entry,omitempty"`
}

func New(log *slog.Logger, getter Getter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.timetable.get.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		id := chi.URLParam(r, "id")
		if id == "" {
			log.Error("id is empty")
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error(response.BAD_REQUEST, "id is required"))
			return
		}

		entry, err := getter.Get(r.Context(), id)

		if errors.Is(err, response.ErrNotFound) {
			log.Info("entry not found", slog.String("id", id))
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, response.Error(response.NOT_FOUND, "timetable entry not found"))
			return
		}

		if err != nil {
			log.Error("Failed to get timetable entry", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error(response.FAILED_REQUEST, "failed to get timetable entry"))
			return
		}

		render.JSON(w, r, Response{Entry: entry})
	}
}
